// Package ui implements UIController: the modal navigation state
// machine and callback dispatch table over SessionRegistry/PanelRenderer
// (§4.8).
package ui

import "sync"

// Mode names one of the modal screens the panel can show for a chat.
type Mode string

const (
	ModeSessions      Mode = "sessions"
	ModeSession       Mode = "session"
	ModeNewName       Mode = "new-name"
	ModeNewPath       Mode = "new-path"
	ModePaths         Mode = "paths"
	ModePathsAdd      Mode = "paths-add"
	ModeConfirmMkdir  Mode = "confirm-mkdir"
	ModeConfirmDelete Mode = "confirm-delete"
	ModeConfirmStop   Mode = "confirm-stop"
	ModeModel         Mode = "model"
	ModeModelCustom   Mode = "model-custom"
	ModeLogs          Mode = "logs"
	ModeAwaitPrompt   Mode = "await-prompt"
	ModeHome          Mode = "home"
)

// navStackCap bounds the per-chat back-traversal history (§4.8
// "Navigation stack", GLOSSARY "length cap (32)").
const navStackCap = 32

// snapshot is one entry on the navigation stack: enough to restore a
// screen and its session focus.
type snapshot struct {
	mode  Mode
	focus string
}

// draft holds in-progress, per-chat form state for the name/path/mkdir
// and awaiting-prompt screens.
type draft struct {
	name           string // candidate session name (new-name)
	path           string // candidate working directory (new-path)
	pendingMkdir   string // directory awaiting mkdir_yes/mkdir_no confirmation
	mkdirFor       Mode   // which flow requested the pending mkdir (new-path or paths-add)
	awaitRunNewRun bool   // await-prompt: true = run_mode new, false = continue
}

// navState is the ephemeral, in-memory navigation state for one chat
// (§3 "UI navigation state"). mu serializes every entry point that
// touches it, since a run completion can trigger a re-render from the
// runner's own goroutine concurrently with an inbound update.
type navState struct {
	mu sync.Mutex

	mode     Mode
	focus    string // focused session name, if any
	draft    draft
	stack    []snapshot
	notice   string
	sessList []string // per-render capture backing sess:<idx> (§4.8)
}

func newNavState() *navState {
	return &navState{mode: ModeSessions}
}

func (n *navState) current() snapshot {
	return snapshot{mode: n.mode, focus: n.focus}
}

// push records the current screen before transitioning away from it,
// deduping against the top of the stack (§4.8 "push(screen) ... pushes
// only on change").
func (n *navState) push() {
	cur := n.current()
	if len(n.stack) > 0 && n.stack[len(n.stack)-1] == cur {
		return
	}
	n.stack = append(n.stack, cur)
	if len(n.stack) > navStackCap {
		n.stack = n.stack[len(n.stack)-navStackCap:]
	}
}

// pop restores the next differing screen, falling back to sessions when
// the stack is empty (§4.8 "emptying the stack falls back to
// 'sessions'", §8 "pop on an empty navigation stack is a no-op that
// leaves mode='sessions'").
func (n *navState) pop(sessionExists func(name string) bool) {
	cur := n.current()
	for len(n.stack) > 0 {
		top := n.stack[len(n.stack)-1]
		n.stack = n.stack[:len(n.stack)-1]
		if top == cur {
			continue
		}
		if top.focus != "" && sessionExists != nil && !sessionExists(top.focus) {
			top.focus = ""
		}
		n.mode = top.mode
		n.focus = top.focus
		return
	}
	n.mode = ModeSessions
	n.focus = ""
}
