package state

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store serializes and restores the persistent portion of the model.
// Writes are atomic (temp file + rename) and fully serialized by mu, so
// concurrent Save calls produce a consistent suffix-of-updates ordering
// (§4.1, §5 "State-store writes are fully serialized by a mutex").
//
// Grounded on the teacher's Manager.Save (internal/sessions/manager.go):
// same write-temp-then-rename idiom, generalized from a per-key file to a
// single whole-document file, because StateStore persists one document
// per installation rather than one file per session.
type Store struct {
	mu       sync.Mutex
	path     string
	legacy   LegacyPaths
	log      *slog.Logger
}

// LegacyPaths names the pre-namespaced runtime file locations that a
// one-time migration moves into the current layout (§11.1).
type LegacyPaths struct {
	StateFilePath string
	LogDir        string
	BotLogPath    string
}

// New constructs a Store bound to an explicit document path. No
// package-level path globals are used anywhere in this package — every
// instance is independently addressable, so tests can run concurrently
// against distinct temp directories.
func New(path string, legacy LegacyPaths, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, legacy: legacy, log: log}
}

// Save atomically persists snapshot. A write error is logged and
// non-fatal: the in-memory state remains authoritative until the next
// successful save (§4.1, §7).
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.Version = CurrentVersion
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.Error("marshal state snapshot", "err", err)
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error("create state directory", "dir", dir, "err", err)
		return err
	}

	tmp, err := os.CreateTemp(dir, "state-*.tmp")
	if err != nil {
		s.log.Error("create temp state file", "err", err)
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.log.Error("write temp state file", "err", err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.log.Error("sync temp state file", "err", err)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.log.Error("close temp state file", "err", err)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		s.log.Error("rename temp state file into place", "err", err)
		return err
	}
	cleanup = false
	return nil
}

// Load reads the persisted document, tolerantly. Any error (missing
// file, malformed JSON) yields an empty fresh-install snapshot rather
// than propagating — per §4.1 "a read error yields an empty snapshot".
// Sessions persisted as "running" are healed to "idle" (no Run survives
// a restart), and legacy log paths are rewritten under the current log
// directory.
func (s *Store) Load() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("read state file", "path", s.path, "err", err)
		}
		return Empty()
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("parse state file, treating as fresh install", "path", s.path, "err", err)
		return Empty()
	}

	if snap.Sessions == nil {
		snap.Sessions = make(map[string]*Session)
	}
	if snap.PanelByChat == nil {
		snap.PanelByChat = make(map[string]int)
	}
	if snap.PathPresets == nil {
		snap.PathPresets = []string{}
	}

	for name, sess := range snap.Sessions {
		if sess == nil {
			delete(snap.Sessions, name)
			continue
		}
		sess.Name = name
		if sess.Status == StatusRunning {
			sess.Status = StatusIdle
		}
		sess.LastStdoutLog = s.rewriteLegacyLogPath(sess.LastStdoutLog)
		sess.LastStderrLog = s.rewriteLegacyLogPath(sess.LastStderrLog)
	}

	return snap
}

// rewriteLegacyLogPath rewrites a persisted log path that lives under the
// legacy runtime directory to point under the current log directory
// (§4.1 "Legacy path rewriting").
func (s *Store) rewriteLegacyLogPath(p string) string {
	if p == "" || s.legacy.LogDir == "" {
		return p
	}
	if !strings.HasPrefix(p, s.legacy.LogDir) {
		return p
	}
	rel := strings.TrimPrefix(p, s.legacy.LogDir)
	newLogDir := filepath.Dir(s.path) + "/logs"
	return filepath.Join(newLogDir, rel)
}

// MigrateLegacyLayout performs the one-time best-effort move of
// pre-namespaced runtime files into the current layout (§11.1). It is a
// no-op if any runtime path was caller-overridden, or if the legacy
// locations don't exist, or if the current state file already exists
// (migration only applies to a genuinely fresh namespaced layout).
func MigrateLegacyLayout(legacy LegacyPaths, currentStatePath, currentLogDir, currentBotLogPath string, overridden bool, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if overridden {
		return
	}
	if _, err := os.Stat(currentStatePath); err == nil {
		return // already migrated or already namespaced
	}

	if _, err := os.Stat(legacy.StateFilePath); err == nil {
		if err := os.MkdirAll(filepath.Dir(currentStatePath), 0o755); err == nil {
			if err := os.Rename(legacy.StateFilePath, currentStatePath); err != nil {
				log.Warn("legacy state migration: rename failed", "err", err)
			} else {
				log.Info("migrated legacy state file", "from", legacy.StateFilePath, "to", currentStatePath)
			}
		}
	}

	if info, err := os.Stat(legacy.LogDir); err == nil && info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(currentLogDir), 0o755); err == nil {
			if err := os.Rename(legacy.LogDir, currentLogDir); err != nil {
				log.Warn("legacy log dir migration: rename failed", "err", err)
			} else {
				log.Info("migrated legacy log directory", "from", legacy.LogDir, "to", currentLogDir)
			}
		}
	}

	if _, err := os.Stat(legacy.BotLogPath); err == nil {
		if err := os.MkdirAll(filepath.Dir(currentBotLogPath), 0o755); err == nil {
			if err := os.Rename(legacy.BotLogPath, currentBotLogPath); err != nil {
				log.Warn("legacy bot log migration: rename failed", "err", err)
			} else {
				log.Info("migrated legacy bot log", "from", legacy.BotLogPath, "to", currentBotLogPath)
			}
		}
	}
}
