// Package registry implements SessionRegistry: the in-memory session
// map, attach bookkeeping, and run orchestration glue (§4.7).
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/logsink"
	"github.com/nextlevelbuilder/codexpanel/internal/panel"
	"github.com/nextlevelbuilder/codexpanel/internal/runner"
	"github.com/nextlevelbuilder/codexpanel/internal/state"
	"github.com/nextlevelbuilder/codexpanel/internal/stream"
)

// namePattern enforces §8's boundary behavior: "Name validation rejects
// empty, >64 chars, or any character outside [A-Za-z0-9._-]".
var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

var (
	ErrInvalidName    = errors.New("registry: invalid session name")
	ErrDuplicateName  = errors.New("registry: session already exists")
	ErrInvalidPath    = errors.New("registry: invalid path")
	ErrUnknownSession = errors.New("registry: unknown session")
	ErrRunActive      = errors.New("registry: a run is active")
)

// Entry is the runtime wrapper around one session's persisted fields
// plus its live run, if any.
type Entry struct {
	mu sync.Mutex

	Name            string
	Path            string
	ThreadID        string
	Model           string
	ReasoningEffort string
	Status          string
	LastResult      string
	CreatedAt       time.Time
	LastActive      *time.Time
	LastStdoutLog   string
	LastStderrLog   string
	LastRunDuration time.Duration
	PendingDelete   bool
	LastStderrTail  []string // in-memory ring snapshot from the last run (§3 "Run")

	run    *runner.Runner
	cancel context.CancelFunc
}

func (e *Entry) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// Snapshot is a thread-safe, immutable copy of an Entry's fields, for
// callers (internal/ui) that need to read session state without
// reaching into Entry's unexported mutex.
type Snapshot struct {
	Name            string
	Path            string
	ThreadID        string
	Model           string
	ReasoningEffort string
	Status          string
	LastResult      string
	CreatedAt       time.Time
	LastActive      *time.Time
	LastStdoutLog   string
	LastStderrLog   string
	LastRunDuration time.Duration
	PendingDelete   bool
	LastStderrTail  []string
	Running         bool
}

// Snapshot returns a point-in-time copy of e's fields.
func (e *Entry) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Name:            e.Name,
		Path:            e.Path,
		ThreadID:        e.ThreadID,
		Model:           e.Model,
		ReasoningEffort: e.ReasoningEffort,
		Status:          e.Status,
		LastResult:      e.LastResult,
		CreatedAt:       e.CreatedAt,
		LastActive:      e.LastActive,
		LastStdoutLog:   e.LastStdoutLog,
		LastStderrLog:   e.LastStderrLog,
		LastRunDuration: e.LastRunDuration,
		PendingDelete:   e.PendingDelete,
		LastStderrTail:  e.LastStderrTail,
		Running:         e.run != nil,
	}
}

// SetModel / SetReasoningEffort apply a UI-driven config change to an
// idle session (§4.8 model/model_pick/reasoning_pick actions).
func (e *Entry) SetModel(model string) {
	e.mu.Lock()
	e.Model = model
	e.mu.Unlock()
}

func (e *Entry) SetReasoningEffort(effort string) {
	e.mu.Lock()
	e.ReasoningEffort = effort
	e.mu.Unlock()
}

// SetModel / SetReasoningEffort apply and persist a UI-driven config
// change (§4.8 model/model_pick/reasoning_pick actions).
func (r *Registry) SetModel(name, model string) error {
	e, ok := r.Get(name)
	if !ok {
		return ErrUnknownSession
	}
	e.SetModel(model)
	r.save()
	return nil
}

func (r *Registry) SetReasoningEffort(name, effort string) error {
	e, ok := r.Get(name)
	if !ok {
		return ErrUnknownSession
	}
	e.SetReasoningEffort(effort)
	r.save()
	return nil
}

// Stream returns the live stream multiplexer of e's active run, if any.
func (e *Entry) Stream() *stream.Multiplexer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.Stream()
}

// attachKey identifies one remote (chat, message) pair.
type attachKey struct {
	chatID    int64
	messageID int
}

// Notifier sends the one-shot completion-notice message (§11.4); kept
// as an injected interface so internal/registry never imports
// internal/telegram.
type Notifier interface {
	SendCompletionNotice(ctx context.Context, sessionName, workDir, prompt string)
}

// Config carries the registry's defaults, sourced from the loaded
// application configuration.
type Config struct {
	DefaultModel           string
	DefaultReasoningEffort string
	SandboxMode            string
	ApprovalPolicy         string
	LogDir                 string
	CodexBinary            string
}

// Registry is the single in-process owner of session-name→Entry and
// the attach map (§4.7, §5 "Resource ownership").
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	attach      map[attachKey]map[string]struct{}
	panelByChat map[int64]int
	pathPresets []string

	store       *state.Store
	transport   chat.Transport
	panel       *panel.Renderer
	notifier    Notifier
	cfg         Config
	log         *slog.Logger
	onFinish    func(ctx context.Context, sessionName string)
}

func New(store *state.Store, transport chat.Transport, panelRenderer *panel.Renderer, notifier Notifier, cfg Config, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		entries:     make(map[string]*Entry),
		attach:      make(map[attachKey]map[string]struct{}),
		panelByChat: make(map[int64]int),
		store:       store,
		transport:   transport,
		panel:       panelRenderer,
		notifier:    notifier,
		cfg:         cfg,
		log:         log,
	}
}

// SetFinishListener installs a callback invoked after a run finishes
// with its stream not paused, or fails to start, so a UI layer can re-render without importing this
// package's run orchestration. Kept as a plain function value rather
// than a panel/UI type to avoid internal/registry depending on
// internal/ui.
func (r *Registry) SetFinishListener(fn func(ctx context.Context, sessionName string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// LoadFromSnapshot hydrates the in-memory map from a StateStore load,
// healing "running"→"idle" is already done by Store.Load.
func (r *Registry) LoadFromSnapshot(snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range snap.Sessions {
		r.entries[name] = &Entry{
			Name:            name,
			Path:            s.Path,
			ThreadID:        s.ThreadID,
			Model:           s.Model,
			ReasoningEffort: s.ReasoningEffort,
			Status:          string(s.Status),
			LastResult:      string(s.LastResult),
			CreatedAt:       s.CreatedAt,
			LastActive:      s.LastActive,
			LastStdoutLog:   s.LastStdoutLog,
			LastStderrLog:   s.LastStderrLog,
			LastRunDuration: time.Duration(s.LastRunDuration * float64(time.Second)),
			PendingDelete:   s.PendingDelete,
		}
	}
	for chatStr, msgID := range snap.PanelByChat {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			continue
		}
		r.panelByChat[chatID] = msgID
	}
	r.pathPresets = append([]string(nil), snap.PathPresets...)
}

// Snapshot produces a state.Snapshot reflecting the current in-memory
// state, for StateStore.Save.
func (r *Registry) Snapshot(ownerID *int64) state.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := state.Empty()
	snap.OwnerID = ownerID
	for name, e := range r.entries {
		e.mu.Lock()
		snap.Sessions[name] = &state.Session{
			Path:            e.Path,
			ThreadID:        e.ThreadID,
			Model:           e.Model,
			ReasoningEffort: e.ReasoningEffort,
			Status:          state.SessionStatus(e.Status),
			LastResult:      state.LastResult(e.LastResult),
			CreatedAt:       e.CreatedAt,
			LastActive:      e.LastActive,
			LastStdoutLog:   e.LastStdoutLog,
			LastStderrLog:   e.LastStderrLog,
			LastRunDuration: e.LastRunDuration.Seconds(),
			PendingDelete:   e.PendingDelete,
		}
		e.mu.Unlock()
	}
	for chatID, msgID := range r.panelByChat {
		snap.PanelByChat[strconv.FormatInt(chatID, 10)] = msgID
	}
	snap.PathPresets = append([]string(nil), r.pathPresets...)
	return snap
}

func (r *Registry) save() {
	if err := r.store.Save(r.Snapshot(nil)); err != nil {
		r.log.Error("registry: save failed", "err", err)
	}
}

// Create validates and registers a new session (§4.7).
func (r *Registry) Create(name, path string) (*Entry, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return nil, ErrDuplicateName
	}

	e := &Entry{
		Name:            name,
		Path:            path,
		Model:           r.cfg.DefaultModel,
		ReasoningEffort: r.cfg.DefaultReasoningEffort,
		Status:          "idle",
		LastResult:      "never",
		CreatedAt:       time.Now(),
	}
	r.entries[name] = e
	r.save()
	return e, nil
}

func validatePath(path string) error {
	if path == "" || strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

// AutoIncrementName synthesizes "session-N" per §11.2.
func (r *Registry) AutoIncrementName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	highest := 0
	for name := range r.entries {
		if n, ok := strings.CutPrefix(name, "session-"); ok {
			if v, err := strconv.Atoi(n); err == nil && v > highest {
				highest = v
			}
		}
	}
	return fmt.Sprintf("session-%d", highest+1)
}

// Get returns the named entry, if any.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns all session names in a stable, sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete implements §4.7: stop-then-delete if active, otherwise
// immediate artifact + map removal.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	if e.isRunning() {
		e.mu.Lock()
		e.PendingDelete = true
		run := e.run
		e.mu.Unlock()
		if run != nil {
			run.Stop()
		}
		return nil
	}

	return r.deleteNow(name)
}

func (r *Registry) deleteNow(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteArtifactsLocked(name); err != nil {
		r.log.Warn("registry: artifact deletion failed", "session", name, "err", err)
	}
	delete(r.entries, name)
	r.save()
	return nil
}

// Clear resets a session's history while keeping its name/path/model
// (§4.7); forbidden while a run is active.
func (r *Registry) Clear(name string) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownSession
	}
	if e.isRunning() {
		return ErrRunActive
	}

	r.mu.Lock()
	r.deleteArtifactsLocked(name)
	r.mu.Unlock()

	e.mu.Lock()
	e.ThreadID = ""
	e.Status = "idle"
	e.LastResult = "never"
	e.LastStdoutLog = ""
	e.LastStderrLog = ""
	e.LastRunDuration = 0
	e.mu.Unlock()
	r.save()
	return nil
}

// Stop stops the named session's active run, if any; idempotent.
func (r *Registry) Stop(name string) {
	e, ok := r.Get(name)
	if !ok {
		return
	}
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

// RegisterRunMessage / UnregisterRunMessage maintain the attach map
// (§4.7). Implements runner.Hooks.
func (r *Registry) RegisterRunMessage(session string, chatID int64, messageID int) {
	key := attachKey{chatID, messageID}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.attach[key]
	if !ok {
		set = make(map[string]struct{})
		r.attach[key] = set
	}
	set[session] = struct{}{}
}

func (r *Registry) UnregisterRunMessage(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, set := range r.attach {
		delete(set, session)
		if len(set) == 0 {
			delete(r.attach, key)
		}
	}
}

// ResolveAttachedRunningSession returns the unpaused running session
// bound to (chatID, messageID), if any (§4.7).
func (r *Registry) ResolveAttachedRunningSession(chatID int64, messageID int) (*Entry, bool) {
	r.mu.RLock()
	set := r.attach[attachKey{chatID, messageID}]
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		e, ok := r.Get(name)
		if !ok {
			continue
		}
		e.mu.Lock()
		run := e.run
		e.mu.Unlock()
		if run == nil {
			continue
		}
		if s := run.Stream(); s != nil && !s.IsPaused() {
			return e, true
		}
	}
	return nil, false
}

// PauseOtherAttachedRuns pauses every run other than except bound to
// (chatID, messageID) (§4.7). Implements runner.Hooks.
func (r *Registry) PauseOtherAttachedRuns(chatID int64, messageID int, except string) {
	r.mu.RLock()
	set := r.attach[attachKey{chatID, messageID}]
	names := make([]string, 0, len(set))
	for name := range set {
		if name != except {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	for _, name := range names {
		e, ok := r.Get(name)
		if !ok {
			continue
		}
		e.mu.Lock()
		run := e.run
		e.mu.Unlock()
		if run == nil {
			continue
		}
		if s := run.Stream(); s != nil {
			s.Pause()
		}
	}
}

// GetPanelMessage / SetPanelMessage implement panel.BindingStore.
func (r *Registry) GetPanelMessage(chatID int64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.panelByChat[chatID]
	return id, ok
}

func (r *Registry) SetPanelMessage(chatID int64, messageID int) {
	r.mu.Lock()
	r.panelByChat[chatID] = messageID
	r.mu.Unlock()
	r.save()
}

// PathPresets returns a copy of the ordered preset-path list;
// AddPathPreset and RemovePathPreset change it and persist the result.
func (r *Registry) PathPresets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.pathPresets...)
}

func (r *Registry) AddPathPreset(path string) {
	r.mu.Lock()
	r.pathPresets = append(r.pathPresets, path)
	r.mu.Unlock()
	r.save()
}

func (r *Registry) RemovePathPreset(idx int) {
	r.mu.Lock()
	if idx >= 0 && idx < len(r.pathPresets) {
		r.pathPresets = append(r.pathPresets[:idx], r.pathPresets[idx+1:]...)
	}
	r.mu.Unlock()
	r.save()
}

// deleteArtifactsLocked removes this session's log files by prefix glob
// (r.mu must already be held).
func (r *Registry) deleteArtifactsLocked(name string) error {
	if r.cfg.LogDir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(r.cfg.LogDir, name+"_*"))
	if err != nil {
		return err
	}
	var firstErr error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartRun builds a runner.Config from the entry's current state and
// launches a run in its own goroutine, recording it on the entry so
// Stop/attach can reach it. Returns an error only for synchronous
// precondition failures (unknown session, already running).
func (r *Registry) StartRun(ctx context.Context, name string, mode runner.RunMode, prompt string, chatID int64, messageID int) error {
	e, ok := r.Get(name)
	if !ok {
		return ErrUnknownSession
	}
	e.mu.Lock()
	if e.run != nil {
		e.mu.Unlock()
		return ErrRunActive
	}
	if mode == runner.RunNew {
		e.ThreadID = ""
	}
	e.Status = "running"
	path := e.Path
	model := e.Model
	effort := e.ReasoningEffort
	threadID := e.ThreadID
	e.mu.Unlock()
	r.save()

	stdoutPath, stderrPath := logPaths(r.cfg.LogDir, name, time.Now())
	stdoutSink := logsink.New(stdoutPath)
	stderrSink := logsink.New(stderrPath)

	cfg := runner.Config{
		SessionName:     name,
		WorkDir:         path,
		Model:           model,
		ReasoningEffort: effort,
		SandboxMode:     r.cfg.SandboxMode,
		ApprovalPolicy:  r.cfg.ApprovalPolicy,
		ChatID:          chatID,
		MessageID:       messageID,
		Mode:            mode,
		ThreadID:        threadID,
		Prompt:          prompt,
		CodexBinary:     r.cfg.CodexBinary,
	}

	run := runner.New(cfg, r.transport, r, stdoutSink, stderrSink, r.log)

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.run = run
	e.cancel = cancel
	e.LastStdoutLog = stdoutPath
	e.LastStderrLog = stderrPath
	e.mu.Unlock()

	go func() {
		outcome := run.Run(runCtx)
		tail := run.StderrTail()
		cancel()
		_ = stdoutSink.Close()
		_ = stderrSink.Close()

		e.mu.Lock()
		e.run = nil
		e.cancel = nil
		e.Status = outcome.Status
		e.LastResult = outcome.LastResult
		e.LastRunDuration = outcome.Duration
		e.LastStderrTail = tail
		now := time.Now()
		e.LastActive = &now
		if outcome.NewThreadID != "" {
			e.ThreadID = outcome.NewThreadID
		}
		pendingDelete := e.PendingDelete
		e.mu.Unlock()

		r.save()
		if pendingDelete {
			r.deleteNow(name)
		}
	}()

	return nil
}

// RenderFinished / RenderFailedToStart / SendCompletionNotice implement
// runner.Hooks. The first two call the finish listener (RenderFinished
// skips it when the run's stream is paused); the last delegates to the
// injected Notifier.
func (r *Registry) RenderFinished(ctx context.Context, sessionName string, o runner.Outcome) {
	_ = o
	if e, ok := r.Get(sessionName); ok {
		if s := e.Stream(); s != nil && s.IsPaused() {
			return
		}
	}
	r.notifyFinished(ctx, sessionName)
}

func (r *Registry) RenderFailedToStart(ctx context.Context, sessionName string, reason string) {
	_ = reason
	r.notifyFinished(ctx, sessionName)
}

// notifyFinished invokes the registered finish listener, if any. The
// view-data assembly and keyboard construction this package
// deliberately does not import live in the listener (internal/ui).
func (r *Registry) notifyFinished(ctx context.Context, sessionName string) {
	r.mu.RLock()
	fn := r.onFinish
	r.mu.RUnlock()
	if fn != nil {
		fn(ctx, sessionName)
	}
}

func (r *Registry) SendCompletionNotice(ctx context.Context, sessionName string, prompt string) {
	e, ok := r.Get(sessionName)
	if !ok || r.notifier == nil {
		return
	}
	e.mu.Lock()
	path := e.Path
	e.mu.Unlock()
	r.notifier.SendCompletionNotice(ctx, sessionName, path, prompt)
}

// Shutdown stops all active runs concurrently and waits for them to
// resolve before returning, per §4.9/§5 "Shutdown stops all runs
// concurrently and awaits completion before saving final state".
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	var wg sync.WaitGroup
	for _, e := range r.entries {
		e.mu.Lock()
		run := e.run
		e.mu.Unlock()
		if run == nil {
			continue
		}
		wg.Add(1)
		go func(run *runner.Runner) {
			defer wg.Done()
			run.Stop()
		}(run)
	}
	r.mu.RUnlock()
	wg.Wait()
	// Wait, bounded by ctx, for each run's goroutine to record its outcome.
	for _, name := range r.List() {
		e, ok := r.Get(name)
		for ok && e.isRunning() {
			select {
			case <-ctx.Done():
				ok = false
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	r.save()
}

func logPaths(logDir, name string, at time.Time) (string, string) {
	stamp := at.UTC().Format("20060102_150405")
	base := fmt.Sprintf("%s_%s", name, stamp)
	return filepath.Join(logDir, base+".jsonl"), filepath.Join(logDir, base+"_stderr.txt")
}
