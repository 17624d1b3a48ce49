package runner

import (
	"github.com/nextlevelbuilder/codexpanel/internal/events"
	"github.com/nextlevelbuilder/codexpanel/internal/stream"
)

// liveToolOutputLimit truncates an individual tool output written into
// the live stream (§4.2: "2000-2500 in the live stream").
const liveToolOutputLimit = 2200

// dispatchEvent decodes one stdout-line object and writes its
// human-visible content into the stream, updating continuation tracking
// as a side effect (§4.3 + §4.4's "stream writes").
//
// Lines that fail to parse as JSON are handled by the caller (they flow
// into the stream verbatim, per §4.6 step 7) before this function is
// ever reached.
func dispatchEvent(obj events.Object, m *stream.Multiplexer, continuation *string) {
	if cid, ok := events.ContinuationID(obj); ok {
		*continuation = cid
	}

	kind := events.Kind(obj)

	ceSource := obj
	if item, ok := events.ExtractItem(obj); ok {
		writeItem(item, m)
	}
	if inner, ok := itemObject(obj); ok {
		ceSource = inner
	}

	ce := events.ExtractCommandExecution(ceSource)
	switch {
	case events.IsCommandStarting(kind, ce):
		if ce.Command != "" {
			m.AddCode("$ " + ce.Command + "\n")
		}
	case events.IsCommandCompleting(kind, ce):
		if out := truncate(ce.AggregatedOutput, liveToolOutputLimit); out != "" {
			m.AddCode(out + "\n")
		}
	}

	if invocation, ok := events.ToolInvocation(obj); ok {
		m.AddCode("$ " + invocation + "\n")
	}
	if result, ok := events.ToolResult(obj); ok {
		m.AddCode(truncate(result, liveToolOutputLimit) + "\n")
	}
	if diff, ok := events.Diff(obj); ok {
		m.AddCode(truncate(diff, liveToolOutputLimit) + "\n")
	}

	if text, ok := events.TextDelta(obj); ok {
		m.AddText(text)
	}
}

func writeItem(item events.Item, m *stream.Multiplexer) {
	if item.Kind == "reasoning" {
		return
	}
	if item.Text != "" {
		m.AddText(item.Text)
	}
}

// itemObject returns the raw {item}/{data.item} object, mirroring
// ExtractItem's lookup, so command-execution fields can be read off the
// item itself rather than the enclosing event envelope.
func itemObject(obj events.Object) (events.Object, bool) {
	if item, ok := obj["item"].(events.Object); ok {
		return item, true
	}
	if data, ok := obj["data"].(events.Object); ok {
		if item, ok := data["item"].(events.Object); ok {
			return item, true
		}
	}
	return nil, false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
