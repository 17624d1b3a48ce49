package events

import "testing"

func TestIsUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical", "550e8400-e29b-41d4-a716-446655440000", true},
		{"uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"too short", "550e8400-e29b-41d4-a716-44665544000", false},
		{"no dashes", "550e8400e29b41d4a716446655440000", false},
		{"surrounded by text", "id=550e8400-e29b-41d4-a716-446655440000;", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUUID(tt.in); got != tt.want {
				t.Errorf("IsUUID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKindPriority(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"type wins", Object{"type": "item.completed", "event": "other", "kind": "x", "name": "y"}, "item.completed"},
		{"event second", Object{"event": "progress", "kind": "x", "name": "y"}, "progress"},
		{"kind third", Object{"kind": "k", "name": "y"}, "k"},
		{"name last", Object{"name": "n"}, "n"},
		{"empty type skipped", Object{"type": "", "event": "e"}, "e"},
		{"none present", Object{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.obj); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.obj, got, tt.want)
			}
		})
	}
}

func TestContinuationID(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
		ok   bool
	}{
		{"session_id direct", Object{"session_id": "abc"}, "abc", true},
		{"thread_id preferred over nested", Object{"thread_id": "t1", "thread": Object{"id": "t2"}}, "t1", true},
		{"nested thread.id", Object{"thread": Object{"id": "nested-thread"}}, "nested-thread", true},
		{"nested session.id", Object{"session": Object{"id": "nested-session"}}, "nested-session", true},
		{"mirrored under data", Object{"data": Object{"session_id": "d1"}}, "d1", true},
		{"uuid fallback", Object{"foo": "550e8400-e29b-41d4-a716-446655440000"}, "550e8400-e29b-41d4-a716-446655440000", true},
		{"none found", Object{"foo": "bar"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ContinuationID(tt.obj)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ContinuationID(%v) = (%q, %v), want (%q, %v)", tt.obj, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTextDelta(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
		ok   bool
	}{
		{"delta wins", Object{"delta": "d", "text": "t", "content": "c"}, "d", true},
		{"text second", Object{"text": "t", "content": "c"}, "t", true},
		{"content third", Object{"content": "c"}, "c", true},
		{"under data", Object{"data": Object{"delta": "nested"}}, "nested", true},
		{"none", Object{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TextDelta(tt.obj)
			if ok != tt.ok || got != tt.want {
				t.Errorf("TextDelta(%v) = (%q, %v), want (%q, %v)", tt.obj, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractItemDropsReasoning(t *testing.T) {
	obj := Object{"item": Object{"type": "reasoning", "text": "thinking..."}}
	if _, ok := ExtractItem(obj); ok {
		t.Error("ExtractItem() returned ok=true for a reasoning item, want dropped")
	}
}

func TestExtractItemBasic(t *testing.T) {
	obj := Object{"item": Object{"type": "command_execution", "text": "ls -la"}}
	got, ok := ExtractItem(obj)
	if !ok {
		t.Fatal("ExtractItem() ok = false, want true")
	}
	if got.Kind != "command_execution" || got.Text != "ls -la" {
		t.Errorf("ExtractItem() = %+v, want {command_execution ls -la}", got)
	}
}

func TestExtractItemUnderData(t *testing.T) {
	obj := Object{"data": Object{"item": Object{"type": "tool_use", "text": "t"}}}
	got, ok := ExtractItem(obj)
	if !ok || got.Kind != "tool_use" {
		t.Errorf("ExtractItem() = %+v, %v, want tool_use item", got, ok)
	}
}

func TestCommandExecutionStartCompleteDerivation(t *testing.T) {
	starting := ExtractCommandExecution(Object{"status": "in_progress"})
	if !IsCommandStarting("command_execution", starting) {
		t.Error("expected in_progress status to be classified as starting")
	}

	completing := ExtractCommandExecution(Object{"status": "completed"})
	if !IsCommandCompleting("command_execution", completing) {
		t.Error("expected completed status to be classified as completing")
	}

	failing := ExtractCommandExecution(Object{"status": "failed"})
	if !IsCommandCompleting("command_execution", failing) {
		t.Error("expected failed status to be classified as completing")
	}

	bySuffix := ExtractCommandExecution(Object{})
	if !IsCommandStarting("command_execution_start", bySuffix) {
		t.Error("expected _start suffix to be classified as starting when status is absent")
	}
}

func TestToolInvocation(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
		ok   bool
	}{
		{"command field", Object{"command": "ls"}, "ls", true},
		{"cmd field", Object{"cmd": "pwd"}, "pwd", true},
		{"input.command", Object{"input": Object{"command": "echo hi"}}, "echo hi", true},
		{"none", Object{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToolInvocation(tt.obj)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ToolInvocation(%v) = (%q, %v), want (%q, %v)", tt.obj, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestToolResultPriority(t *testing.T) {
	obj := Object{"output": "o", "stdout": "s", "result": "r", "text": "t"}
	got, ok := ToolResult(obj)
	if !ok || got != "o" {
		t.Errorf("ToolResult(%v) = (%q, %v), want (\"o\", true)", obj, got, ok)
	}
}

func TestDiffPriority(t *testing.T) {
	obj := Object{"patch": "p", "unified_diff": "u"}
	got, ok := Diff(obj)
	if !ok || got != "p" {
		t.Errorf("Diff(%v) = (%q, %v), want (\"p\", true)", obj, got, ok)
	}
}
