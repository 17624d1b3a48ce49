package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/events"
	"github.com/nextlevelbuilder/codexpanel/internal/stream"
)

type capturingTransport struct {
	lastEdit string
}

func (c *capturingTransport) SendMessage(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	return 1, nil
}
func (c *capturingTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	c.lastEdit = text
	return nil
}
func (c *capturingTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}
func (c *capturingTransport) GetFile(ctx context.Context, fileID string) (chat.FileRef, error) {
	return chat.FileRef{}, nil
}
func (c *capturingTransport) Download(ctx context.Context, ref chat.FileRef, destPath string) error {
	return nil
}

func TestDispatchEventTextDelta(t *testing.T) {
	ct := &capturingTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := stream.New(ctx, ct, 1, 1, nil, true, false)

	var cid string
	dispatchEvent(events.Object{"type": "agent_message_delta", "delta": "hello "}, m, &cid)
	dispatchEvent(events.Object{"type": "agent_message_delta", "delta": "world"}, m, &cid)
	m.Stop()

	if !strings.Contains(ct.lastEdit, "hello world") {
		t.Errorf("lastEdit = %q, want merged text deltas", ct.lastEdit)
	}
}

func TestDispatchEventTracksContinuation(t *testing.T) {
	var cid string
	dispatchEvent(events.Object{"type": "session_started", "session_id": "abc-123"}, nil, &cid)
	if cid != "abc-123" {
		t.Errorf("continuation = %q, want abc-123", cid)
	}
}

func TestDispatchEventDropsReasoningItems(t *testing.T) {
	ct := &capturingTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := stream.New(ctx, ct, 1, 1, nil, true, false)
	defer m.Stop()

	var cid string
	obj := events.Object{"item": events.Object{"type": "reasoning", "text": "internal thought"}}
	dispatchEvent(obj, m, &cid)
	// Should not panic and should not surface reasoning text; verified
	// indirectly since writeItem is a no-op for reasoning kind.
}

func TestTruncateRespectsLimit(t *testing.T) {
	s := strings.Repeat("x", 100)
	got := truncate(s, 10)
	if len(got) <= 10 {
		t.Errorf("truncate() len = %d, want > limit due to ellipsis marker", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncate() = %q, want ellipsis suffix", got)
	}
}

func TestItemObjectFallsBackToDataItem(t *testing.T) {
	obj := events.Object{"data": events.Object{"item": events.Object{"command": "ls"}}}
	inner, ok := itemObject(obj)
	if !ok {
		t.Fatal("itemObject() ok = false, want true")
	}
	if inner["command"] != "ls" {
		t.Errorf("itemObject() = %v, want command=ls", inner)
	}
}
