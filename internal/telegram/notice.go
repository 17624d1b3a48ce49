package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

const (
	noticeMaxLen         = 4096
	noticeShrinkPasses   = 10
	noticeRetryBudget    = time.Hour
	noticeMaxAttempts    = 10
	noticeInitialBackoff = time.Second
	noticeMaxBackoff     = 30 * time.Second
	ackCallbackAction    = "ack"
)

// AckCallbackAction returns the callback data value a completion
// notice's "Acknowledge" button carries, so callers outside this
// package can recognize it without duplicating the literal.
func AckCallbackAction() string { return ackCallbackAction }

// Notice sends the one-shot completion notice (§11.4) and implements
// registry.Notifier. The bot is single-user (§3 "Owner"), so the
// destination chat id is held here rather than threaded through the
// Notifier contract: it is restored from the persisted owner id at
// startup and replaced by the chat of every accepted update.
type Notice struct {
	transport *Transport
	log       *slog.Logger
	chatID    atomic.Int64
}

func NewNotice(transport *Transport, log *slog.Logger) *Notice {
	if log == nil {
		log = slog.Default()
	}
	return &Notice{transport: transport, log: log}
}

// SetOwnerChatID records the destination chat for completion notices,
// called at startup with the persisted id and for every accepted update.
func (n *Notice) SetOwnerChatID(chatID int64) {
	n.chatID.Store(chatID)
}

// OwnerChatID returns the captured owner chat id, or 0 if none has
// been recorded yet. Used to persist the owner id across restarts
// alongside session state.
func (n *Notice) OwnerChatID() int64 {
	return n.chatID.Load()
}

// SendCompletionNotice satisfies registry.Notifier. It has no error
// return because a completion notice is best-effort by contract (§11.4
// "gives up silently"/"logs and gives up").
func (n *Notice) SendCompletionNotice(ctx context.Context, sessionName, workDir, prompt string) {
	chatID := n.chatID.Load()
	if chatID == 0 {
		n.log.Warn("completion notice skipped, no owner chat id recorded yet", "session", sessionName)
		return
	}

	text := buildNoticeText(sessionName, workDir, prompt)
	markup := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("Acknowledge").WithCallbackData(ackCallbackAction)),
	)

	deadline := time.Now().Add(noticeRetryBudget)
	backoff := noticeInitialBackoff

	for attempt := 1; attempt <= noticeMaxAttempts; attempt++ {
		_, err := n.transport.SendMessage(ctx, chatID, text, chat.SendOptions{ReplyMarkup: markup})
		if err == nil {
			return
		}

		if rl, ok := chat.IsRateLimited(err); ok {
			wait := rl.RetryAfter
			if time.Now().Add(wait).After(deadline) {
				n.log.Warn("completion notice rate-limited past retry budget, giving up", "session", sessionName)
				return
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}

		if errors.Is(err, chat.ErrMessageUnreachable) || errors.Is(err, chat.ErrCantParseEntities) {
			n.log.Warn("completion notice permanently failed, giving up", "session", sessionName, "err", err)
			return
		}

		if time.Now().Add(backoff).After(deadline) {
			n.log.Warn("completion notice exhausted retry budget, giving up", "session", sessionName, "err", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > noticeMaxBackoff {
			backoff = noticeMaxBackoff
		}
	}

	n.log.Warn("completion notice exhausted max attempts, giving up", "session", sessionName)
}

// HandleAcknowledge deletes the notice message; wired from the ack
// callback action.
func (n *Notice) HandleAcknowledge(ctx context.Context, chatID int64, messageID int) error {
	return n.transport.DeleteMessage(ctx, chatID, messageID)
}

func buildNoticeText(sessionName, workDir, prompt string) string {
	header := "Session \"" + sessionName + "\" (" + workDir + ") finished.\n\n"
	body := prompt

	text := header + body
	for pass := 0; pass < noticeShrinkPasses && len(text) > noticeMaxLen; pass++ {
		overflow := len(text) - noticeMaxLen
		if overflow >= len(body) {
			body = ""
		} else {
			body = body[:len(body)-overflow]
		}
		text = header + body
	}
	if len(text) > noticeMaxLen {
		text = text[:noticeMaxLen]
	}
	return text
}
