package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "state.json"), LegacyPaths{}, nil)

	snap := Empty()
	snap.Sessions["s1"] = &Session{
		Path:            "/tmp/work",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		Status:          StatusIdle,
		LastResult:      ResultSuccess,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	snap.PanelByChat["123"] = 456
	snap.PathPresets = []string{"/tmp/work"}

	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := store.Load()
	if got.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", got.Version, CurrentVersion)
	}
	if len(got.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(got.Sessions))
	}
	s1, ok := got.Sessions["s1"]
	if !ok {
		t.Fatal("session s1 missing after round-trip")
	}
	if s1.Name != "s1" {
		t.Errorf("Name = %q, want %q", s1.Name, "s1")
	}
	if s1.Path != "/tmp/work" {
		t.Errorf("Path = %q, want %q", s1.Path, "/tmp/work")
	}
	if got.PanelByChat["123"] != 456 {
		t.Errorf("PanelByChat[123] = %d, want 456", got.PanelByChat["123"])
	}
}

func TestLoadHealsRunningToIdle(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "state.json"), LegacyPaths{}, nil)

	snap := Empty()
	snap.Sessions["s1"] = &Session{Status: StatusRunning, CreatedAt: time.Now()}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := store.Load()
	if got.Sessions["s1"].Status != StatusIdle {
		t.Errorf("Status = %q, want %q (healed on load)", got.Sessions["s1"].Status, StatusIdle)
	}
}

func TestLoadMissingFileYieldsFreshInstall(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "does-not-exist.json"), LegacyPaths{}, nil)

	got := store.Load()
	if got.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", got.Version, CurrentVersion)
	}
	if len(got.Sessions) != 0 {
		t.Errorf("len(Sessions) = %d, want 0", len(got.Sessions))
	}
}

func TestLoadMalformedJSONYieldsFreshInstall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := New(path, LegacyPaths{}, nil)
	got := store.Load()
	if len(got.Sessions) != 0 {
		t.Errorf("len(Sessions) = %d, want 0 for malformed document", len(got.Sessions))
	}
}
