package stream

import (
	"html"
	"strings"
)

const (
	// maxChars is the chat transport's hard message-length ceiling
	// (MAX_TELEGRAM_CHARS in the original implementation).
	maxChars = 4096

	// reservedForChrome is the slack reserved for the "previous output
	// hidden" marker and HTML escaping overhead estimation (§4.4:
	// "budget = 4096 − 250 − header_len − footer_len").
	reservedForChrome = 250

	// minLogBudget is the floor below which the log budget is never
	// shrunk further (§4.4 "(floor 300)").
	minLogBudget = 300

	// maxShrinkPasses bounds the number of 25%-reduction passes applied
	// when the rendered size still exceeds maxChars after HTML-escaping
	// expansion (§4.4 "Up to 8 shrink passes").
	maxShrinkPasses = 8

	hiddenMarker = "…previous output hidden…\n\n"
)

// presentation holds the non-log parts of a rendered message.
type presentation struct {
	HeaderHTML   string
	HeaderPlain  string
	Footer       string // resolved footer text (footer provider already called)
	WrapLogInPre bool
}

// render assembles header ∥ log ∥ footer per §4.4's rendering
// invariants, returning the final HTML body. It performs the tail
// selection against a plain-length budget and, if the escaped output
// still exceeds maxChars, applies successive 25% budget shrinks (up to
// maxShrinkPasses) before giving up and returning whatever the final
// pass produced (callers treat a still-oversized result by collapsing
// further upstream, e.g. PanelRenderer's <pre> fallback; for a raw
// stream there is no further fallback available, so the final pass is
// final).
func render(p presentation, segs []Segment) string {
	headerLen := len(p.HeaderPlain)
	footerLen := len(p.Footer)
	budget := maxChars - reservedForChrome - headerLen - footerLen
	if budget < minLogBudget {
		budget = minLogBudget
	}

	var body string
	for pass := 0; pass < maxShrinkPasses; pass++ {
		body = renderLog(segs, budget, p.WrapLogInPre)
		full := joinNonEmpty([]string{p.HeaderHTML, body, p.Footer})
		if len(full) <= maxChars {
			return full
		}
		budget = budget * 3 / 4
		if budget < minLogBudget {
			budget = minLogBudget
		}
	}
	return joinNonEmpty([]string{p.HeaderHTML, body, p.Footer})
}

// renderLog selects the tail of segs that fits under budget plain
// characters and renders it either as one wrapped <pre><code> block
// (wrapInPre) or as independently-rendered segments.
func renderLog(segs []Segment, budget int, wrapInPre bool) string {
	tail, truncated := tailFitting(segs, budget)
	if len(tail) == 0 {
		return ""
	}

	if wrapInPre {
		var plain strings.Builder
		for _, s := range tail {
			plain.WriteString(s.Content)
		}
		text := plain.String()
		out := "<pre><code>" + html.EscapeString(text) + "</code></pre>"
		if truncated {
			out = hiddenMarker + out
		}
		return out
	}

	var b strings.Builder
	if truncated {
		b.WriteString(hiddenMarker)
	}
	for _, s := range tail {
		b.WriteString(s.renderHTML())
	}
	return b.String()
}

// tailFitting returns the longest suffix of segs whose combined plain
// length is <= budget, and whether any leading segments were dropped.
func tailFitting(segs []Segment, budget int) ([]Segment, bool) {
	total := 0
	start := len(segs)
	for i := len(segs) - 1; i >= 0; i-- {
		total += segs[i].plainLen()
		if total > budget && start != len(segs) {
			break
		}
		if total > budget && start == len(segs) {
			// Even the single last segment alone may exceed budget;
			// keep it anyway so the log is never fully empty when
			// there is any content at all.
			start = i
			break
		}
		start = i
	}
	return segs[start:], start > 0
}

func joinNonEmpty(parts []string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
