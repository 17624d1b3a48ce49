package panel

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Excerpt shrink ladders (§4.5): independent of render's transport-level
// budget — these trim the *content* before it ever reaches render's
// header/log/footer assembly.
const (
	logExcerptStart = 2600
	logExcerptFloor = 900
	logExcerptSteps = 4

	resultExcerptStart = 1400
	resultExcerptFloor = 300
	resultExcerptSteps = 4
)

// ViewData is the subset of Session state the three view renderers need;
// kept decoupled from internal/state.Session so panel has no import-time
// dependency on the registry's concrete type.
type ViewData struct {
	Name             string
	Path             string
	Model            string
	ReasoningEffort  string
	ElapsedOrTotal   time.Duration
	LogTail          string // plain text, most recent first truncated from the front
	StdoutPreview    string
	StderrPreview    string
	LastAgentMessage string
	Outcome          string // "Worked" | "Stopped" | "Failed"
}

// RenderRunningView composes the running session's panel body: a live
// log tail plus an elapsed-time footer (§4.5).
func RenderRunningView(d ViewData) string {
	info := compactInfo(d)
	log := shrinkExcerpt(d.LogTail, logExcerptStart, logExcerptFloor, logExcerptSteps)
	footer := fmt.Sprintf("Working %s", formatDuration(d.ElapsedOrTotal))
	return joinNonEmpty([]string{
		info,
		wrapPre(log),
		"<i>" + html.EscapeString(footer) + "</i>",
	})
}

// RenderNeverRunView composes the panel body for a session that has
// never been run: compact info plus a call to action (§4.5).
func RenderNeverRunView(d ViewData) string {
	info := compactInfo(d)
	return joinNonEmpty([]string{
		info,
		"<i>Send a prompt to start.</i>",
	})
}

// RenderFinishedView composes the panel body for a completed run:
// stdout-or-stderr preview, compact info, outcome-duration line, the
// last agent message, and a continuation prompt (§4.5).
func RenderFinishedView(d ViewData) string {
	preview := d.StdoutPreview
	if strings.TrimSpace(preview) == "" {
		preview = d.StderrPreview
	}
	preview = shrinkExcerpt(preview, logExcerptStart, logExcerptFloor, logExcerptSteps)

	info := compactInfo(d)
	outcomeLine := fmt.Sprintf("%s for %s", d.Outcome, formatDuration(d.ElapsedOrTotal))

	lastMsg := shrinkExcerpt(d.LastAgentMessage, resultExcerptStart, resultExcerptFloor, resultExcerptSteps)

	parts := []string{wrapPre(preview), info, "<b>" + html.EscapeString(outcomeLine) + "</b>"}
	if lastMsg != "" {
		parts = append(parts, html.EscapeString(lastMsg))
	}
	parts = append(parts, "<i>Send a prompt to continue.</i>")
	return joinNonEmpty(parts)
}

func compactInfo(d ViewData) string {
	path := ShortenPath(d.Path, 34)
	return fmt.Sprintf("<b>%s</b>\n%s · %s/%s",
		html.EscapeString(d.Name),
		html.EscapeString(path),
		html.EscapeString(d.Model),
		html.EscapeString(d.ReasoningEffort),
	)
}

func wrapPre(plain string) string {
	if plain == "" {
		return ""
	}
	return "<pre><code>" + html.EscapeString(plain) + "</code></pre>"
}

// shrinkExcerpt returns s unchanged when it fits in `start` bytes.
// Otherwise it starts from a budget of `start` and cuts the budget by a
// quarter per pass, for up to `steps` passes and never below `floor`,
// while s is still longer than the budget; it then keeps the tail of s
// that fits the final budget, prefixed with an ellipsis line. The size
// of the assembled message is not consulted.
func shrinkExcerpt(s string, start, floor, steps int) string {
	if len(s) <= start {
		return s
	}
	budget := start
	for pass := 0; pass < steps && len(s) > budget; pass++ {
		budget = budget * 3 / 4
		if budget < floor {
			budget = floor
			break
		}
	}
	if len(s) <= budget {
		return s
	}
	tail := s[len(s)-budget:]
	return "…\n" + tail
}

func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
