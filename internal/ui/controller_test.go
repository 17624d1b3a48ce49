package ui

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/config"
	"github.com/nextlevelbuilder/codexpanel/internal/panel"
	"github.com/nextlevelbuilder/codexpanel/internal/registry"
	"github.com/nextlevelbuilder/codexpanel/internal/state"
)

// fakeTransport is a no-op chat.Transport, sufficient for exercising
// Controller dispatch without a real Telegram connection (style
// matches capturingTransport in internal/runner/dispatch_test.go).
type fakeTransport struct {
	sent  []string
	edits []string
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	f.sent = append(f.sent, text)
	return 1, nil
}

func (f *fakeTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (f *fakeTransport) GetFile(ctx context.Context, fileID string) (chat.FileRef, error) {
	return chat.FileRef{}, nil
}

func (f *fakeTransport) Download(ctx context.Context, ref chat.FileRef, destPath string) error {
	return nil
}

type fakeNotifier struct{}

func (fakeNotifier) SendCompletionNotice(ctx context.Context, sessionName, workDir, prompt string) {}

func newTestController(t *testing.T) (*Controller, *registry.Registry, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	store := state.New(filepath.Join(t.TempDir(), "state.json"), state.LegacyPaths{}, nil)
	panelRenderer := panel.New(transport, nil, nil)
	reg := registry.New(store, transport, panelRenderer, fakeNotifier{}, registry.Config{
		DefaultModel:           "gpt-5.2",
		DefaultReasoningEffort: "medium",
	}, nil)
	panelRenderer.SetBindings(reg)

	cfg := &config.Config{}
	cfg.Agent.ModelPresets = config.FlexibleStringSlice{"gpt-5.2", "gpt-5.2-mini"}

	c := New(reg, panelRenderer, transport, cfg, nil)
	return c, reg, transport
}

func TestAutoDetachExemptSet(t *testing.T) {
	want := []string{"stop", "stop_no", "stop_yes", "interrupt", "detach"}
	if len(autoDetachExempt) != len(want) {
		t.Fatalf("autoDetachExempt has %d entries, want %d", len(autoDetachExempt), len(want))
	}
	for _, action := range want {
		if !autoDetachExempt[action] {
			t.Errorf("autoDetachExempt[%q] = false, want true", action)
		}
	}
}

func TestAttachNoFocusedSession(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if err := c.Dispatch(ctx, chatID, 10, "v3:attach"); err != nil {
		t.Fatalf("Dispatch(attach) error = %v", err)
	}
	s := c.stateFor(chatID)
	if s.mode != ModeSessions {
		t.Errorf("mode after attach with no focus = %v, want ModeSessions (reset)", s.mode)
	}
	if s.notice != "No session focused." {
		t.Errorf("notice = %q, want %q", s.notice, "No session focused.")
	}
}

func TestAttachSessionNoLongerExists(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeSession
	s.focus = "ghost"
	s.mu.Unlock()

	if err := c.Dispatch(ctx, chatID, 10, "v3:attach"); err != nil {
		t.Fatalf("Dispatch(attach) error = %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSessions || s.focus != "" {
		t.Errorf("mode/focus = %v/%q, want reset to sessions list", s.mode, s.focus)
	}
	if s.notice != "Session no longer exists." {
		t.Errorf("notice = %q, want %q", s.notice, "Session no longer exists.")
	}
}

func TestAttachExistingIdleSessionRendersSessionView(t *testing.T) {
	c, reg, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if _, err := reg.Create("alpha", t.TempDir()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeSession
	s.focus = "alpha"
	s.mu.Unlock()

	// attach() on a non-running session (no live stream) falls through
	// to rendering the plain session view instead of the running
	// presentation (internal/ui/controller.go attach, "strm == nil").
	if err := c.Dispatch(ctx, chatID, 10, "v3:attach"); err != nil {
		t.Fatalf("Dispatch(attach) error = %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSession || s.focus != "alpha" {
		t.Errorf("mode/focus = %v/%q, want session/alpha unchanged", s.mode, s.focus)
	}
}

func TestDetachClearsFocusAndUnregistersMapping(t *testing.T) {
	c, reg, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if _, err := reg.Create("alpha", t.TempDir()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	reg.RegisterRunMessage("alpha", chatID, 10)

	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeSession
	s.focus = "alpha"
	s.mu.Unlock()

	if err := c.Dispatch(ctx, chatID, 10, "v3:detach"); err != nil {
		t.Fatalf("Dispatch(detach) error = %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSessions || s.focus != "" {
		t.Errorf("mode/focus after detach = %v/%q, want sessions/\"\"", s.mode, s.focus)
	}
	if _, ok := reg.ResolveAttachedRunningSession(chatID, 10); ok {
		t.Error("ResolveAttachedRunningSession() ok = true after detach, want the mapping removed")
	}
}

func TestDispatchUnknownActionResetsWithNotice(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeSession
	s.focus = "alpha"
	s.mu.Unlock()

	if err := c.Dispatch(ctx, chatID, 10, "not-a-v3-payload"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSessions || s.focus != "" {
		t.Errorf("mode/focus = %v/%q, want reset to sessions", s.mode, s.focus)
	}
	if s.notice != "Unknown action." {
		t.Errorf("notice = %q, want %q", s.notice, "Unknown action.")
	}
}

func TestDispatchHomeClearsFocus(t *testing.T) {
	c, reg, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if _, err := reg.Create("alpha", t.TempDir()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeSession
	s.focus = "alpha"
	s.mu.Unlock()

	if err := c.Dispatch(ctx, chatID, 10, "v3:home"); err != nil {
		t.Fatalf("Dispatch(home) error = %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSessions || s.focus != "" {
		t.Errorf("mode/focus after home = %v/%q, want sessions/\"\"", s.mode, s.focus)
	}
}

func TestDispatchNewEntersNameMode(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if err := c.Dispatch(ctx, chatID, 10, "v3:new"); err != nil {
		t.Fatalf("Dispatch(new) error = %v", err)
	}
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeNewName {
		t.Errorf("mode after new = %v, want ModeNewName", s.mode)
	}
}

func TestDispatchModelPickAppliesPreset(t *testing.T) {
	c, reg, _ := newTestController(t)
	ctx := context.Background()
	const chatID = int64(1)

	if _, err := reg.Create("alpha", t.TempDir()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	s := c.stateFor(chatID)
	s.mu.Lock()
	s.mode = ModeModel
	s.focus = "alpha"
	s.mu.Unlock()

	if err := c.Dispatch(ctx, chatID, 10, "v3:model_pick:1"); err != nil {
		t.Fatalf("Dispatch(model_pick) error = %v", err)
	}
	e, ok := reg.Get("alpha")
	if !ok {
		t.Fatal("session disappeared")
	}
	if got := e.Snapshot().Model; got != "gpt-5.2-mini" {
		t.Errorf("Model = %q, want %q", got, "gpt-5.2-mini")
	}
}

func TestFocusedSessionReflectsState(t *testing.T) {
	c, _, _ := newTestController(t)
	const chatID = int64(1)
	if got := c.FocusedSession(chatID); got != "" {
		t.Errorf("FocusedSession() = %q, want empty before any focus", got)
	}
	s := c.stateFor(chatID)
	s.mu.Lock()
	s.focus = "alpha"
	s.mu.Unlock()
	if got := c.FocusedSession(chatID); got != "alpha" {
		t.Errorf("FocusedSession() = %q, want %q", got, "alpha")
	}
}
