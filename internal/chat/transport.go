// Package chat defines the transport contract consumed by
// StreamMultiplexer and PanelRenderer (§6 "Chat transport contract").
// Any provider satisfying Transport — Telegram is the reference
// implementation in internal/telegram — can drive the core.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReplyMarkup is an opaque inline-keyboard payload; its shape is
// transport-specific (Telegram's telego.InlineKeyboardMarkup in the
// reference adapter), so it is threaded through as `any` here.
type ReplyMarkup any

// SendOptions controls presentation of a sent or edited message.
type SendOptions struct {
	ParseMode      string // "HTML", "" for plain text
	ReplyMarkup    ReplyMarkup
	DisablePreview bool
}

// FileRef is a transport-opaque handle returned by GetFile, sufficient
// to later Download it.
type FileRef struct {
	ID   string
	Size int64
}

// Transport is the chat-transport contract (§6). Every method is
// cancellable via ctx, matching §5's "every suspension point is
// cancellable" requirement.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (messageID int, err error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts SendOptions) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	GetFile(ctx context.Context, fileID string) (FileRef, error)
	Download(ctx context.Context, ref FileRef, destPath string) error
}

// RateLimitedError is returned by EditMessageText/SendMessage when the
// transport reports a rate limit, carrying the advised retry interval.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Distinguished transport-semantic / transport-terminal errors (§6, §7,
// §9.2). Adapters wrap the underlying API error so callers can branch
// with errors.Is/errors.As instead of string-matching API messages.
var (
	ErrMessageNotModified = errors.New("chat: message is not modified")
	ErrMessageTooLong     = errors.New("chat: message is too long")
	ErrCantParseEntities  = errors.New("chat: can't parse entities")
	ErrMessageUnreachable = errors.New("chat: message can't be edited, not found, or chat not found")
)

// IsRateLimited extracts a *RateLimitedError from err, if any.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
