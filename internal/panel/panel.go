// Package panel implements PanelRenderer: the single persistent
// per-chat panel message with an HTML→plain→replacement degradation
// ladder (§4.5).
package panel

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

const maxChars = 4096

// BindingStore is the minimal persistence surface PanelRenderer needs:
// reading and writing the chat→panel-message binding. SessionRegistry's
// StateStore-backed map satisfies this; PanelRenderer only reads the
// binding and writes a new one on forced replacement, per §5 "Resource
// ownership" (it shares, not owns, the mapping).
type BindingStore interface {
	GetPanelMessage(chatID int64) (int, bool)
	SetPanelMessage(chatID int64, messageID int)
}

// Renderer owns the single persistent panel message per chat.
type Renderer struct {
	transport chat.Transport
	bindings  BindingStore
	log       *slog.Logger

	mu sync.Mutex
}

func New(transport chat.Transport, bindings BindingStore, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{transport: transport, bindings: bindings, log: log}
}

// SetBindings installs the binding store after construction, for the
// common wiring order where the BindingStore implementation (e.g.
// SessionRegistry) itself needs a constructed Renderer passed into it.
func (r *Renderer) SetBindings(bindings BindingStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = bindings
}

// EnsurePanel returns the bound message id for chatID, sending a
// placeholder message and persisting the binding if none exists (§4.5).
func (r *Renderer) EnsurePanel(ctx context.Context, chatID int64) (int, error) {
	if id, ok := r.bindings.GetPanelMessage(chatID); ok {
		return id, nil
	}
	id, err := r.transport.SendMessage(ctx, chatID, "…", chat.SendOptions{ParseMode: "HTML"})
	if err != nil {
		return 0, err
	}
	r.bindings.SetPanelMessage(chatID, id)
	return id, nil
}

// Render edits the chat's bound panel message with textHTML/markup,
// applying the four-step degradation ladder (§4.5):
//  1. HTML edit, retrying once on a transient rate limit.
//  2. On "too long", collapse to a <pre><code> tail within budget.
//  3. On parse-entities error, strip tags and send as plain text.
//  4. On message-unreachable, send a brand-new message and rebind.
func (r *Renderer) Render(ctx context.Context, chatID int64, textHTML string, markup chat.ReplyMarkup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	messageID, err := r.EnsurePanel(ctx, chatID)
	if err != nil {
		return err
	}

	err = r.transport.EditMessageText(ctx, chatID, messageID, textHTML, chat.SendOptions{
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	if err == nil || errors.Is(err, chat.ErrMessageNotModified) {
		return nil
	}

	if rl, ok := chat.IsRateLimited(err); ok {
		t := time.NewTimer(rl.RetryAfter)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
		t.Stop()
		err = r.transport.EditMessageText(ctx, chatID, messageID, textHTML, chat.SendOptions{
			ParseMode:   "HTML",
			ReplyMarkup: markup,
		})
		if err == nil || errors.Is(err, chat.ErrMessageNotModified) {
			return nil
		}
	}

	if errors.Is(err, chat.ErrMessageTooLong) {
		collapsed := collapseToPre(textHTML, maxChars)
		if editErr := r.transport.EditMessageText(ctx, chatID, messageID, collapsed, chat.SendOptions{
			ParseMode:   "HTML",
			ReplyMarkup: markup,
		}); editErr == nil || errors.Is(editErr, chat.ErrMessageNotModified) {
			return nil
		}
		err = chat.ErrCantParseEntities // fall through to the plain-text rung
	}

	if errors.Is(err, chat.ErrCantParseEntities) {
		plain := stripTags(textHTML)
		if editErr := r.transport.EditMessageText(ctx, chatID, messageID, plain, chat.SendOptions{
			ReplyMarkup: markup,
		}); editErr == nil || errors.Is(editErr, chat.ErrMessageNotModified) {
			return nil
		}
		err = chat.ErrMessageUnreachable
	}

	if errors.Is(err, chat.ErrMessageUnreachable) {
		newID, sendErr := r.transport.SendMessage(ctx, chatID, textHTML, chat.SendOptions{
			ParseMode:   "HTML",
			ReplyMarkup: markup,
		})
		if sendErr != nil {
			r.log.Error("panel replacement send failed", "chat_id", chatID, "err", sendErr)
			return sendErr
		}
		r.bindings.SetPanelMessage(chatID, newID)
		return nil
	}

	r.log.Warn("panel render: unhandled transport error", "chat_id", chatID, "err", err)
	return err
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(htmlText string) string {
	return tagPattern.ReplaceAllString(htmlText, "")
}

// collapseToPre wraps text's plain content (tags stripped, HTML
// re-escaped) in a single <pre><code> block, trimmed to a tail that
// fits within limit characters (§4.5 step 2).
func collapseToPre(htmlText string, limit int) string {
	plain := html.UnescapeString(stripTags(htmlText))
	overhead := len("<pre><code></code></pre>")
	budget := limit - overhead
	if budget < 0 {
		budget = 0
	}
	if len(plain) > budget {
		plain = plain[len(plain)-budget:]
	}
	return "<pre><code>" + html.EscapeString(plain) + "</code></pre>"
}

// ShortenPath collapses a long path to an ellipsis-prefixed form showing
// only the final two segments, within maxLen characters (§11.5). Width
// is measured with mattn/go-runewidth so wide (e.g. CJK) path segments
// don't silently overflow the display budget.
func ShortenPath(path string, maxLen int) string {
	if runewidthStringWidth(path) <= maxLen {
		return path
	}
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	if len(parts) < 2 {
		return truncateToWidth(path, maxLen)
	}
	tail := "…/" + strings.Join(parts[len(parts)-2:], "/")
	if runewidthStringWidth(tail) <= maxLen {
		return tail
	}
	return truncateToWidth(tail, maxLen)
}
