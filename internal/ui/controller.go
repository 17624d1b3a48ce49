package ui

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/config"
	"github.com/nextlevelbuilder/codexpanel/internal/panel"
	"github.com/nextlevelbuilder/codexpanel/internal/registry"
	"github.com/nextlevelbuilder/codexpanel/internal/runner"
)

// autoDetachExempt lists the actions that bypass auto-detach (§4.8 "The exempted action set that
// bypasses auto-detach is exactly {stop, stop_yes, stop_no, interrupt,
// detach}").
var autoDetachExempt = map[string]bool{
	"stop": true, "stop_yes": true, "stop_no": true, "interrupt": true, "detach": true,
}

// Controller owns per-chat navigation state and dispatches every
// callback action and free-text input against the SessionRegistry and
// PanelRenderer (§4.8).
type Controller struct {
	reg       *registry.Registry
	panel     *panel.Renderer
	transport chat.Transport
	cfg       *config.Config
	log       *slog.Logger

	mu     sync.Mutex
	states map[int64]*navState
}

func New(reg *registry.Registry, p *panel.Renderer, transport chat.Transport, cfg *config.Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		reg:       reg,
		panel:     p,
		transport: transport,
		cfg:       cfg,
		log:       log,
		states:    make(map[int64]*navState),
	}
}

func (c *Controller) stateFor(chatID int64) *navState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[chatID]
	if !ok {
		s = newNavState()
		c.states[chatID] = s
	}
	return s
}

// FocusedSession returns the session name currently focused for
// chatID, or "" if none. Used by the attachment pipeline to resolve a
// destination working directory without duplicating navState's
// bookkeeping.
func (c *Controller) FocusedSession(chatID int64) string {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// OpenHome renders the sessions list, ensuring a panel exists for
// chatID. Entry point for /start, /menu, and first contact.
func (c *Controller) OpenHome(ctx context.Context, chatID int64) error {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.openHome(ctx, chatID, s)
}

func (c *Controller) openHome(ctx context.Context, chatID int64, s *navState) error {
	s.mode = ModeSessions
	s.focus = ""
	return c.renderSessions(ctx, chatID, s)
}

// RefreshSession re-renders every chat currently viewing sessionName
// (or the sessions list), called when a run finishes or fails to
// start so the panel reflects the new status without waiting for the
// next inbound update (§4.7 "panel re-render on completion").
func (c *Controller) RefreshSession(ctx context.Context, sessionName string) {
	c.mu.Lock()
	chatIDs := make([]int64, 0, len(c.states))
	states := make([]*navState, 0, len(c.states))
	for chatID, s := range c.states {
		chatIDs = append(chatIDs, chatID)
		states = append(states, s)
	}
	c.mu.Unlock()

	for i, s := range states {
		chatID := chatIDs[i]
		s.mu.Lock()
		switch {
		case s.mode == ModeSession && s.focus == sessionName:
			_ = c.renderSession(ctx, chatID, s)
		case s.mode == ModeSessions:
			_ = c.renderSessions(ctx, chatID, s)
		}
		s.mu.Unlock()
	}
}

// Dispatch handles one inline-button callback (§4.8 "Callback
// protocol"). messageID is the message the callback originated from.
func (c *Controller) Dispatch(ctx context.Context, chatID int64, messageID int, data string) error {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	action, arg, ok := decodeCallback(data)
	if !ok {
		return c.resetWithNotice(ctx, chatID, s, "Unknown action.")
	}

	// Auto-detach: pause any attached stream bound to this message before
	// a non-exempt action is processed (§4.8).
	if !autoDetachExempt[action] {
		c.reg.PauseOtherAttachedRuns(chatID, messageID, "")
	}

	err := c.dispatchAction(ctx, chatID, messageID, action, arg, s)

	c.cleanupStalePanel(ctx, chatID, messageID)
	return err
}

func (c *Controller) dispatchAction(ctx context.Context, chatID int64, messageID int, action, arg string, s *navState) error {
	switch action {
	case "home", "back_sessions":
		return c.actionHome(ctx, chatID, messageID, s)
	case "sessions":
		s.push()
		return c.renderSessions(ctx, chatID, s)
	case "session", "session_back":
		return c.actionOpenSession(ctx, chatID, messageID, s, s.focus)
	case "sess":
		return c.actionOpenSessionByIndex(ctx, chatID, messageID, s, arg)
	case "restart":
		return c.actionRestart(ctx, chatID, s)
	case "new":
		s.push()
		s.mode = ModeNewName
		s.draft = draft{}
		return c.renderNewName(ctx, chatID, s)
	case "new_auto":
		name := c.reg.AutoIncrementName()
		return c.actionCreateFromPath(ctx, chatID, s, name)
	case "path_pick":
		return c.actionPathPick(ctx, chatID, s, arg)
	case "paths":
		s.push()
		s.mode = ModePaths
		return c.renderPaths(ctx, chatID, s)
	case "paths_add":
		s.push()
		s.mode = ModePathsAdd
		return c.renderPathsAdd(ctx, chatID, s)
	case "path_del":
		return c.actionPathDel(ctx, chatID, s, arg)
	case "logs":
		return c.actionLogs(ctx, chatID, messageID, s, false)
	case "log":
		return c.actionLogs(ctx, chatID, messageID, s, true)
	case "disconnect":
		return c.actionDetachThenList(ctx, chatID, messageID, s)
	case "start", "run", "continue", "newprompt":
		return c.renderSession(ctx, chatID, s)
	case "model":
		s.push()
		s.mode = ModeModel
		return c.renderModel(ctx, chatID, s)
	case "model_default", "reasoning_default", "verbosity_default":
		return c.notice(ctx, chatID, s, "Defaults are not configurable yet.")
	case "model_pick":
		return c.actionModelPick(ctx, chatID, s, arg)
	case "reasoning_pick":
		return c.actionReasoningPick(ctx, chatID, s, arg)
	case "verbosity_pick":
		return c.notice(ctx, chatID, s, "Verbosity is not configurable yet.")
	case "model_custom":
		s.push()
		s.mode = ModeModelCustom
		return c.renderModelCustom(ctx, chatID, s)
	case "delete":
		s.push()
		s.mode = ModeConfirmDelete
		return c.renderConfirmDelete(ctx, chatID, s)
	case "delete_yes":
		return c.actionDeleteYes(ctx, chatID, s)
	case "delete_no":
		s.pop(c.sessionExists)
		return c.renderCurrent(ctx, chatID, s)
	case "clear":
		return c.actionClear(ctx, chatID, s)
	case "stop", "interrupt":
		s.push()
		s.mode = ModeConfirmStop
		return c.renderConfirmStop(ctx, chatID, s)
	case "stop_yes":
		return c.actionStopYes(ctx, chatID, s)
	case "stop_no":
		s.pop(c.sessionExists)
		if e, ok := c.reg.Get(s.focus); ok {
			if strm := e.Stream(); strm != nil {
				strm.Resume()
			}
		}
		return c.renderCurrent(ctx, chatID, s)
	case "mkdir_yes":
		return c.actionMkdirYes(ctx, chatID, s)
	case "mkdir_no":
		return c.actionMkdirNo(ctx, chatID, s)
	case "detach":
		return c.actionDetach(ctx, chatID, messageID, s)
	case "attach":
		return c.actionAttach(ctx, chatID, messageID, s)
	case "ack":
		// Handled by the notice sender's own transport.DeleteMessage call
		// site in internal/telegram; nothing further to do here.
		return nil
	default:
		return c.resetWithNotice(ctx, chatID, s, "Unknown action.")
	}
}

func (c *Controller) actionHome(ctx context.Context, chatID int64, messageID int, s *navState) error {
	if e, ok := c.reg.Get(s.focus); ok {
		if strm := e.Stream(); strm != nil {
			strm.Pause()
		}
	}
	s.mode = ModeSessions
	s.focus = ""
	return c.renderSessions(ctx, chatID, s)
}

func (c *Controller) actionOpenSession(ctx context.Context, chatID int64, messageID int, s *navState, name string) error {
	if name == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	e, ok := c.reg.Get(name)
	if !ok {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}

	// Fast path: the session's run is already bound to this exact
	// (chat, panel-message) pair (§4.8 "Re-entering 'session' mode...
	// short-circuits").
	if focused, ok := c.reg.ResolveAttachedRunningSession(chatID, messageID); ok && focused.Snapshot().Name == name {
		s.mode = ModeSession
		s.focus = name
		return nil
	}

	snap := e.Snapshot()
	s.push()
	s.mode = ModeSession
	s.focus = name

	if snap.Running {
		return c.attach(ctx, chatID, messageID, s, name)
	}
	return c.renderSession(ctx, chatID, s)
}

func (c *Controller) actionOpenSessionByIndex(ctx context.Context, chatID int64, messageID int, s *navState, arg string) error {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(s.sessList) {
		return c.resetWithNotice(ctx, chatID, s, "That session list is stale, please reopen.")
	}
	return c.actionOpenSession(ctx, chatID, messageID, s, s.sessList[idx])
}

func (c *Controller) actionRestart(ctx context.Context, chatID int64, s *navState) error {
	for _, name := range c.reg.List() {
		if e, ok := c.reg.Get(name); ok && e.Snapshot().Running {
			return c.notice(ctx, chatID, s, "Cannot restart while a session is running.")
		}
	}
	return c.notice(ctx, chatID, s, "Restarting…")
}

func (c *Controller) actionPathPick(ctx context.Context, chatID int64, s *navState, arg string) error {
	idx, err := strconv.Atoi(arg)
	presets := c.reg.PathPresets()
	if err != nil || idx < 0 || idx >= len(presets) {
		return c.notice(ctx, chatID, s, "That path no longer exists.")
	}
	path := presets[idx]
	if info, statErr := os.Stat(path); statErr != nil || !info.IsDir() {
		return c.notice(ctx, chatID, s, "That path no longer exists.")
	}
	return c.actionCreateFromPath(ctx, chatID, s, s.draft.name)
}

func (c *Controller) actionPathDel(ctx context.Context, chatID int64, s *navState, arg string) error {
	idx, err := strconv.Atoi(arg)
	if err == nil {
		c.reg.RemovePathPreset(idx)
	}
	return c.renderPaths(ctx, chatID, s)
}

func (c *Controller) actionLogs(ctx context.Context, chatID int64, messageID int, s *navState, attachIfRunning bool) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	e, ok := c.reg.Get(s.focus)
	if !ok {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}
	snap := e.Snapshot()
	if attachIfRunning && snap.Running {
		return c.attach(ctx, chatID, messageID, s, s.focus)
	}
	s.push()
	s.mode = ModeLogs
	vd := viewDataFrom(snap)
	vd.Outcome = outcomeLabel(snap.LastResult)
	body := renderFinishedBody(vd, snap)
	return c.panel.Render(ctx, chatID, body, logsKeyboard())
}

func (c *Controller) actionDetachThenList(ctx context.Context, chatID int64, messageID int, s *navState) error {
	return c.actionHome(ctx, chatID, messageID, s)
}

func (c *Controller) actionModelPick(ctx context.Context, chatID int64, s *navState, arg string) error {
	idx, err := strconv.Atoi(arg)
	presets := c.cfg.Agent.ModelPresets
	if err != nil || idx < 0 || idx >= len(presets) {
		return c.notice(ctx, chatID, s, "Invalid model selection.")
	}
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	if err := c.reg.SetModel(s.focus, presets[idx]); err != nil {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}
	s.pop(c.sessionExists)
	return c.renderCurrent(ctx, chatID, s)
}

func (c *Controller) actionReasoningPick(ctx context.Context, chatID int64, s *navState, level string) error {
	switch level {
	case "low", "medium", "high", "xhigh":
	default:
		return c.notice(ctx, chatID, s, "Invalid reasoning level.")
	}
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	if err := c.reg.SetReasoningEffort(s.focus, level); err != nil {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}
	s.pop(c.sessionExists)
	return c.renderCurrent(ctx, chatID, s)
}

func (c *Controller) actionDeleteYes(ctx context.Context, chatID int64, s *navState) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	_ = c.reg.Delete(ctx, s.focus)
	s.focus = ""
	s.mode = ModeSessions
	return c.renderSessions(ctx, chatID, s)
}

func (c *Controller) actionClear(ctx context.Context, chatID int64, s *navState) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	if err := c.reg.Clear(s.focus); err == registry.ErrRunActive {
		return c.notice(ctx, chatID, s, "Cannot clear while running.")
	}
	return c.renderSession(ctx, chatID, s)
}

func (c *Controller) actionStopYes(ctx context.Context, chatID int64, s *navState) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	c.reg.Stop(s.focus)
	s.pop(c.sessionExists)
	return c.renderCurrent(ctx, chatID, s)
}

func (c *Controller) actionMkdirYes(ctx context.Context, chatID int64, s *navState) error {
	dir := s.draft.pendingMkdir
	if dir == "" {
		return c.resetWithNotice(ctx, chatID, s, "No pending directory.")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.draft.pendingMkdir = ""
		return c.notice(ctx, chatID, s, "Could not create that directory.")
	}
	switch s.draft.mkdirFor {
	case ModePathsAdd:
		c.reg.AddPathPreset(dir)
		s.draft.pendingMkdir = ""
		s.mode = ModePaths
		return c.renderPaths(ctx, chatID, s)
	default:
		name := s.draft.name
		s.draft.pendingMkdir = ""
		return c.actionCreateFromPath(ctx, chatID, s, name)
	}
}

func (c *Controller) actionMkdirNo(ctx context.Context, chatID int64, s *navState) error {
	mode := s.draft.mkdirFor
	s.draft.pendingMkdir = ""
	s.mode = mode
	if mode == ModePathsAdd {
		return c.renderPathsAdd(ctx, chatID, s)
	}
	return c.renderNewPath(ctx, chatID, s)
}

func (c *Controller) actionDetach(ctx context.Context, chatID int64, messageID int, s *navState) error {
	if e, ok := c.reg.Get(s.focus); ok {
		if strm := e.Stream(); strm != nil {
			strm.Pause()
		}
		c.reg.UnregisterRunMessage(s.focus)
	}
	s.mode = ModeSessions
	s.focus = ""
	return c.renderSessions(ctx, chatID, s)
}

func (c *Controller) actionAttach(ctx context.Context, chatID int64, messageID int, s *navState) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	return c.attach(ctx, chatID, messageID, s, s.focus)
}

// attach implements the attach bridge (§4.8 "Attach/detach bridge"):
// pause any other attached run on this message, re-register the
// mapping, install the running presentation, and resume.
func (c *Controller) attach(ctx context.Context, chatID int64, messageID int, s *navState, name string) error {
	e, ok := c.reg.Get(name)
	if !ok {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}
	c.reg.PauseOtherAttachedRuns(chatID, messageID, name)
	c.reg.RegisterRunMessage(name, chatID, messageID)

	strm := e.Stream()
	if strm == nil {
		return c.renderSession(ctx, chatID, s)
	}
	snap := e.Snapshot()
	header := panel.RenderRunningView(panel.ViewData{
		Name: snap.Name, Path: snap.Path, Model: snap.Model, ReasoningEffort: snap.ReasoningEffort,
	})
	strm.SetHeader(header, header)
	strm.SetReplyMarkup(sessionKeyboard(true))
	strm.Resume()
	return nil
}

// HandleCommand routes /start /menu /new /use /list /logs /stop (§4.9).
func (c *Controller) HandleCommand(ctx context.Context, chatID int64, cmd, args string) error {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd {
	case "start", "menu":
		return c.openHome(ctx, chatID, s)
	case "new":
		s.mode = ModeNewName
		s.draft = draft{}
		return c.renderNewName(ctx, chatID, s)
	case "use":
		if _, ok := c.reg.Get(args); !ok {
			return c.notice(ctx, chatID, s, "No such session.")
		}
		s.mode = ModeSession
		s.focus = args
		return c.renderSession(ctx, chatID, s)
	case "list":
		s.mode = ModeSessions
		return c.renderSessions(ctx, chatID, s)
	case "logs":
		return c.actionLogs(ctx, chatID, 0, s, false)
	case "stop":
		if s.focus == "" {
			return c.notice(ctx, chatID, s, "No session focused.")
		}
		c.reg.Stop(s.focus)
		return c.renderSession(ctx, chatID, s)
	default:
		return c.notice(ctx, chatID, s, "Unknown command.")
	}
}

// HandleText routes free-text input by mode (§4.8 "Input gating").
func (c *Controller) HandleText(ctx context.Context, chatID int64, text string) error {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModeNewName:
		return c.handleNewNameText(ctx, chatID, s, text)
	case ModeNewPath:
		return c.handleNewPathText(ctx, chatID, s, text)
	case ModePathsAdd:
		return c.handlePathsAddText(ctx, chatID, s, text)
	case ModeModelCustom:
		return c.handleModelCustomText(ctx, chatID, s, text)
	case ModeSession:
		return c.startRun(ctx, chatID, s.focus, runner.RunContinue, text)
	case ModeAwaitPrompt:
		mode := runner.RunContinue
		if s.draft.awaitRunNewRun {
			mode = runner.RunNew
		}
		return c.startRun(ctx, chatID, s.focus, mode, text)
	default:
		return c.notice(ctx, chatID, s, "Open a session first.")
	}
}

// HandleAttachmentPrompt is invoked once an inbound attachment (or
// debounced media group) has been downloaded and synthesized into a
// prompt string (§11.3, §4.8 "Attachments flow").
func (c *Controller) HandleAttachmentPrompt(ctx context.Context, chatID int64, prompt string) error {
	s := c.stateFor(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focus == "" {
		return c.notice(ctx, chatID, s, "Open a session first.")
	}
	return c.startRun(ctx, chatID, s.focus, runner.RunContinue, prompt)
}

func (c *Controller) handleNewNameText(ctx context.Context, chatID int64, s *navState, text string) error {
	s.draft.name = text
	s.mode = ModeNewPath
	return c.renderNewPath(ctx, chatID, s)
}

func (c *Controller) handleNewPathText(ctx context.Context, chatID int64, s *navState, text string) error {
	return c.actionCreateFromPath(ctx, chatID, s, s.draft.name, text)
}

func (c *Controller) handlePathsAddText(ctx context.Context, chatID int64, s *navState, text string) error {
	if info, err := os.Stat(text); err == nil && info.IsDir() {
		c.reg.AddPathPreset(text)
		s.mode = ModePaths
		return c.renderPaths(ctx, chatID, s)
	}
	if !panel.CanCreateDirectory(text) {
		return c.notice(ctx, chatID, s, "That directory cannot be created here.")
	}
	s.draft.pendingMkdir = text
	s.draft.mkdirFor = ModePathsAdd
	s.mode = ModeConfirmMkdir
	return c.renderConfirmMkdir(ctx, chatID, s)
}

func (c *Controller) handleModelCustomText(ctx context.Context, chatID int64, s *navState, text string) error {
	if s.focus == "" {
		return c.resetWithNotice(ctx, chatID, s, "No session focused.")
	}
	if err := c.reg.SetModel(s.focus, text); err != nil {
		return c.resetWithNotice(ctx, chatID, s, "Session no longer exists.")
	}
	s.pop(c.sessionExists)
	return c.renderCurrent(ctx, chatID, s)
}

// actionCreateFromPath creates a session from the draft name and an
// explicit or already-drafted path, routing through the mkdir
// confirmation when the path does not yet exist.
func (c *Controller) actionCreateFromPath(ctx context.Context, chatID int64, s *navState, name string, path ...string) error {
	p := s.draft.path
	if len(path) > 0 {
		p = path[0]
	}
	if p == "" {
		s.draft.name = name
		return c.renderNewPath(ctx, chatID, s)
	}

	if info, err := os.Stat(p); err != nil || !info.IsDir() {
		if !panel.CanCreateDirectory(p) {
			return c.notice(ctx, chatID, s, "That directory cannot be created here.")
		}
		s.draft.name = name
		s.draft.path = p
		s.draft.pendingMkdir = p
		s.draft.mkdirFor = ModeNewPath
		s.mode = ModeConfirmMkdir
		return c.renderConfirmMkdir(ctx, chatID, s)
	}

	e, err := c.reg.Create(name, p)
	if err != nil {
		return c.notice(ctx, chatID, s, createErrorNotice(err))
	}
	s.draft = draft{}
	s.mode = ModeSession
	s.focus = e.Snapshot().Name
	return c.renderSession(ctx, chatID, s)
}

func createErrorNotice(err error) string {
	switch err {
	case registry.ErrInvalidName:
		return "Invalid session name."
	case registry.ErrDuplicateName:
		return "A session with that name already exists."
	case registry.ErrInvalidPath:
		return "Invalid path."
	default:
		return "Could not create session."
	}
}

func (c *Controller) startRun(ctx context.Context, chatID int64, name string, mode runner.RunMode, prompt string) error {
	s := c.stateFor(chatID)
	if name == "" {
		return c.notice(ctx, chatID, s, "No session focused.")
	}
	messageID, err := c.panel.EnsurePanel(ctx, chatID)
	if err != nil {
		return err
	}
	if err := c.reg.StartRun(ctx, name, mode, prompt, chatID, messageID); err != nil {
		if err == registry.ErrRunActive {
			return c.notice(ctx, chatID, s, "Already running.")
		}
		return c.notice(ctx, chatID, s, "Could not start run.")
	}
	c.reg.RegisterRunMessage(name, chatID, messageID)
	return c.attach(ctx, chatID, messageID, s, name)
}

func (c *Controller) sessionExists(name string) bool {
	_, ok := c.reg.Get(name)
	return ok
}

func (c *Controller) notice(ctx context.Context, chatID int64, s *navState, text string) error {
	s.notice = text
	return c.renderCurrent(ctx, chatID, s)
}

func (c *Controller) resetWithNotice(ctx context.Context, chatID int64, s *navState, text string) error {
	s.mode = ModeSessions
	s.focus = ""
	s.notice = text
	return c.renderSessions(ctx, chatID, s)
}

// cleanupStalePanel best-effort deletes a callback's source message if
// it is neither the chat's current panel binding nor an active run's
// attached message (§4.8 "Stale-panel cleanup").
func (c *Controller) cleanupStalePanel(ctx context.Context, chatID int64, messageID int) {
	bound, ok := c.reg.GetPanelMessage(chatID)
	if ok && bound == messageID {
		return
	}
	if _, ok := c.reg.ResolveAttachedRunningSession(chatID, messageID); ok {
		return
	}
	_ = c.transport.DeleteMessage(ctx, chatID, messageID)
}

func outcomeLabel(lastResult string) string {
	switch lastResult {
	case "success":
		return "Worked"
	case "stopped":
		return "Stopped"
	case "error":
		return "Failed"
	default:
		return "Never run"
	}
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
