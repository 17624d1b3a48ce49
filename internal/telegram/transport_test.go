package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

func TestTranslateErrorMapsKnownMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"Bad Request: message is not modified", chat.ErrMessageNotModified},
		{"Bad Request: message is too long", chat.ErrMessageTooLong},
		{"Bad Request: can't parse entities: unsupported tag", chat.ErrCantParseEntities},
		{"Bad Request: message to edit not found", chat.ErrMessageUnreachable},
		{"Bad Request: chat not found", chat.ErrMessageUnreachable},
	}
	for _, c := range cases {
		got := translateError(errors.New(c.msg))
		if !errors.Is(got, c.want) {
			t.Errorf("translateError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestTranslateErrorExtractsRetryAfter(t *testing.T) {
	err := translateError(errors.New("Too Many Requests: retry after 7"))
	rl, ok := chat.IsRateLimited(err)
	if !ok {
		t.Fatalf("translateError() = %v, want *RateLimitedError", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", rl.RetryAfter)
	}
}

func TestTranslateErrorPassesThroughUnknown(t *testing.T) {
	original := errors.New("some other failure")
	got := translateError(original)
	if got != original {
		t.Errorf("translateError() = %v, want passthrough", got)
	}
}

func TestTranslateErrorNilIsNil(t *testing.T) {
	if translateError(nil) != nil {
		t.Error("translateError(nil) != nil")
	}
}
