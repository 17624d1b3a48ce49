package stream

import "html"

// SegmentKind distinguishes plain narrative text from command/tool
// output that should render as a code block (§4.4).
type SegmentKind string

const (
	SegmentText SegmentKind = "text"
	SegmentCode SegmentKind = "code"
)

// Segment is one appended unit of stream content.
type Segment struct {
	Kind    SegmentKind
	Content string
}

// plainLen approximates the segment's contribution to the plain-text
// budget (before HTML-escaping expansion).
func (s Segment) plainLen() int {
	return len(s.Content)
}

// renderHTML renders a single segment as HTML, independent of its
// neighbors (used when wrapLogInPre is false).
func (s Segment) renderHTML() string {
	switch s.Kind {
	case SegmentCode:
		return "<pre><code>" + html.EscapeString(s.Content) + "</code></pre>"
	default:
		return html.EscapeString(s.Content)
	}
}

// mergeAdjacentText merges consecutive text segments into one, matching
// §4.4 "Consecutive text segments are merged". Code segments are never
// merged with their neighbors.
func mergeAdjacentText(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && out[n-1].Kind == SegmentText && s.Kind == SegmentText {
			out[n-1].Content += s.Content
			continue
		}
		out = append(out, s)
	}
	return out
}
