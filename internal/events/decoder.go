// Package events implements EventDecoder: pure, side-effect-free
// extraction of structured fields from the agent CLI's weakly-typed
// line-JSON events (§4.3).
//
// Every extractor tries its listed field sources strictly in the order
// given by spec and returns on the first non-empty match; this ordering
// is itself a tested contract, not an implementation detail, so the
// priority lists below are deliberately explicit rather than collapsed
// into a generic "search everywhere" helper.
package events

import (
	"regexp"
	"strconv"
)

// uuidPattern matches the canonical 8-4-4-4-12 hex UUID shape and
// nothing else (§4.3, §8 "UUID recognizer accepts canonical hex
// 8-4-4-4-12 and nothing else").
var uuidPattern = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

// IsUUID reports whether s is exactly a canonical UUID (not merely
// containing one).
func IsUUID(s string) bool {
	return uuidPattern.MatchString(s) && uuidPattern.FindString(s) == s
}

// Object is the generic decoded-JSON tree EventDecoder operates over.
type Object = map[string]any

// Kind returns the event kind: the first non-empty string of
// {type, event, kind, name} (§4.3).
func Kind(obj Object) string {
	for _, key := range []string{"type", "event", "kind", "name"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v
		}
	}
	return ""
}

// ContinuationID searches {session_id, thread_id}, nested {thread.id},
// {session.id}, mirrored under {data.*}, and finally falls back to the
// first UUID-shaped token found within a bounded (non-recursive-into-
// arbitrary-depth) traversal of the object (§4.3).
func ContinuationID(obj Object) (string, bool) {
	for _, key := range []string{"session_id", "thread_id"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v, true
		}
	}
	for _, path := range [][2]string{{"thread", "id"}, {"session", "id"}} {
		if nested, ok := obj[path[0]].(Object); ok {
			if v, ok := stringField(nested, path[1]); ok && v != "" {
				return v, true
			}
		}
	}
	if data, ok := obj["data"].(Object); ok {
		if id, ok := ContinuationID(data); ok {
			return id, true
		}
	}
	if id, ok := findUUIDShallow(obj, 3); ok {
		return id, true
	}
	return "", false
}

// findUUIDShallow walks obj's values up to maxDepth levels looking for a
// string that is exactly a canonical UUID. Depth is bounded so a
// pathological or deeply nested payload cannot cause a runaway scan.
func findUUIDShallow(obj Object, maxDepth int) (string, bool) {
	if maxDepth <= 0 {
		return "", false
	}
	for _, v := range obj {
		switch val := v.(type) {
		case string:
			if IsUUID(val) {
				return val, true
			}
		case Object:
			if id, ok := findUUIDShallow(val, maxDepth-1); ok {
				return id, true
			}
		}
	}
	return "", false
}

// TextDelta returns the first non-empty of {delta, text, content} at top
// level or under {data} (§4.3).
func TextDelta(obj Object) (string, bool) {
	for _, key := range []string{"delta", "text", "content"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v, true
		}
	}
	if data, ok := obj["data"].(Object); ok {
		return TextDelta(data)
	}
	return "", false
}

// Item describes an extracted {item}/{data.item} payload. Reasoning
// items are dropped entirely (never returned as an Item).
type Item struct {
	Kind string
	Text string
}

// ExtractItem returns the item nested under {item} or {data.item},
// dropping reasoning items. Text follows the same priority as
// TextDelta applied to the item object itself.
func ExtractItem(obj Object) (Item, bool) {
	item, ok := obj["item"].(Object)
	if !ok {
		if data, ok := obj["data"].(Object); ok {
			item, ok = data["item"].(Object)
			if !ok {
				return Item{}, false
			}
		} else {
			return Item{}, false
		}
	}

	kind, _ := stringField(item, "type")
	if kind == "reasoning" {
		return Item{}, false
	}
	text, _ := TextDelta(item)
	return Item{Kind: kind, Text: text}, true
}

// CommandExecution describes a command_execution item's fields (§4.3).
type CommandExecution struct {
	Command          string
	AggregatedOutput string
	ExitCode         *int
	Status           string
}

// ExtractCommandExecution pulls {command, aggregated_output, exit_code,
// status} off obj (typically an Item's underlying object).
func ExtractCommandExecution(obj Object) CommandExecution {
	ce := CommandExecution{}
	ce.Command, _ = stringField(obj, "command")
	ce.AggregatedOutput, _ = stringField(obj, "aggregated_output")
	ce.Status, _ = stringField(obj, "status")
	if n, ok := intField(obj, "exit_code"); ok {
		ce.ExitCode = &n
	}
	return ce
}

// IsCommandStarting reports whether an event kind / status pair
// represents a command_execution starting (status in_progress, or an
// event-kind suffix of "_start"/"started"/"_begin").
func IsCommandStarting(eventKind string, ce CommandExecution) bool {
	if ce.Status == "in_progress" {
		return true
	}
	return hasSuffixAny(eventKind, "_start", "started", "_begin")
}

// IsCommandCompleting reports whether a command_execution event/status
// represents completion (status completed|failed, or an event-kind
// suffix of "_end"/"completed"/"failed"/"_done").
func IsCommandCompleting(eventKind string, ce CommandExecution) bool {
	if ce.Status == "completed" || ce.Status == "failed" {
		return true
	}
	return hasSuffixAny(eventKind, "_end", "completed", "failed", "_done")
}

// ToolInvocation extracts a tool call's command line from {command|cmd}
// or {input.command} (§4.3).
func ToolInvocation(obj Object) (string, bool) {
	for _, key := range []string{"command", "cmd"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v, true
		}
	}
	if input, ok := obj["input"].(Object); ok {
		if v, ok := stringField(input, "command"); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ToolResult extracts a tool result's text from {output|stdout|result|text}
// (§4.3).
func ToolResult(obj Object) (string, bool) {
	for _, key := range []string{"output", "stdout", "result", "text"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Diff extracts a diff/patch snippet from {diff|patch|unified_diff}
// (§4.3).
func Diff(obj Object) (string, bool) {
	for _, key := range []string{"diff", "patch", "unified_diff"} {
		if v, ok := stringField(obj, key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func stringField(obj Object, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(obj Object, key string) (int, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if len(s) >= len(suf) && s[len(s)-len(suf):] == suf {
			return true
		}
	}
	return false
}
