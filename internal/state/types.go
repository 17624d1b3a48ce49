// Package state implements StateStore: atomic persistence of the
// session registry, panel bindings, owner id, and path presets to a
// single on-disk JSON document (§3, §4.1, §6).
package state

import "time"

// SessionStatus mirrors the Session.Status enum (§3).
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusError   SessionStatus = "error"
	StatusStopped SessionStatus = "stopped"
)

// LastResult mirrors the Session.LastResult enum (§3).
type LastResult string

const (
	ResultNever   LastResult = "never"
	ResultSuccess LastResult = "success"
	ResultError   LastResult = "error"
	ResultStopped LastResult = "stopped"
)

// Session is the persisted subset of session state (§3, §6). Everything
// that is run-scoped (process handle, reader tasks, stream) lives
// elsewhere and is never serialized.
type Session struct {
	Name            string        `json:"-"` // map key; not duplicated in the value
	Path            string        `json:"path"`
	ThreadID        string        `json:"thread_id,omitempty"`
	Model           string        `json:"model"`
	ReasoningEffort string        `json:"reasoning_effort"`
	Status          SessionStatus `json:"status"`
	LastResult      LastResult    `json:"last_result"`
	CreatedAt       time.Time     `json:"created_at"`
	LastActive      *time.Time    `json:"last_active,omitempty"`
	LastStdoutLog   string        `json:"last_stdout_log,omitempty"`
	LastStderrLog   string        `json:"last_stderr_log,omitempty"`
	LastRunDuration float64       `json:"last_run_duration_s,omitempty"`
	PendingDelete   bool          `json:"pending_delete,omitempty"`
}

// Snapshot is the full persisted document (§6).
type Snapshot struct {
	Version      int                 `json:"version"`
	OwnerID      *int64              `json:"owner_id"`
	Sessions     map[string]*Session `json:"sessions"`
	PanelByChat  map[string]int      `json:"panel_by_chat"`
	PathPresets  []string            `json:"path_presets"`
}

// Empty returns a fresh, schema-current snapshot (the "fresh install"
// fallback used whenever load fails or the file is absent).
func Empty() Snapshot {
	return Snapshot{
		Version:     CurrentVersion,
		Sessions:    make(map[string]*Session),
		PanelByChat: make(map[string]int),
		PathPresets: []string{},
	}
}

// CurrentVersion is the schema marker written on every save (STATE_VERSION
// in the original implementation).
const CurrentVersion = 4
