// Package telegram implements TelegramTransport (the chat.Transport
// adapter backed by mymmrac/telego), the attachments pipeline (§11.3),
// and the completion-notice sender (§11.4).
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

// Transport adapts a telego.Bot to the chat.Transport contract (§6),
// translating Telegram Bot API errors into the sentinel/typed errors
// internal/stream and internal/panel branch on via errors.Is/As (§7).
//
// Grounded on the bot construction / long-poll idiom of
// internal/channels/telegram/channel.go; the error-translation surface
// is new (the teacher logs and swallows API errors inline rather than
// distinguishing them for an upstream retry ladder, since it has no
// StreamMultiplexer-style degrading renderer to drive).
type Transport struct {
	bot   *telego.Bot
	token string
}

func New(token string, opts ...telego.BotOption) (*Transport, error) {
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &Transport{bot: bot, token: token}, nil
}

func (t *Transport) Bot() *telego.Bot { return t.bot }

// DefaultMenuCommands is the bot command menu for this control plane
// (§4.8's start/menu/new/use/list/logs/stop command surface).
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "start", Description: "Open the sessions panel"},
		{Command: "menu", Description: "Open the sessions panel"},
		{Command: "new", Description: "Create a new session"},
		{Command: "use", Description: "Switch to a session by name"},
		{Command: "list", Description: "List sessions"},
		{Command: "logs", Description: "Show the current session's log tail"},
		{Command: "stop", Description: "Stop the current session's run"},
	}
}

// SyncMenuCommands registers the bot's command menu via setMyCommands,
// grounded on the teacher's delete-then-set idiom.
func (t *Transport) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	if err := t.bot.DeleteMyCommands(ctx, nil); err != nil {
		return fmt.Errorf("telegram: delete my commands: %w", err)
	}
	if len(commands) == 0 {
		return nil
	}
	return t.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
}

func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	params := tu.Message(tu.ID(chatID), text)
	applySendOptions(params, opts)
	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, translateError(err)
	}
	return msg.MessageID, nil
}

func (t *Transport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	params := &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
	}
	applyEditOptions(params, opts)
	_, err := t.bot.EditMessageText(ctx, params)
	return translateError(err)
}

func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	return translateError(err)
}

func (t *Transport) GetFile(ctx context.Context, fileID string) (chat.FileRef, error) {
	f, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return chat.FileRef{}, translateError(err)
	}
	return chat.FileRef{ID: f.FilePath, Size: int64(f.FileSize)}, nil
}

func (t *Transport) Download(ctx context.Context, ref chat.FileRef, destPath string) error {
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", t.token, ref.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: download failed with status %d", resp.StatusCode)
	}
	return writeToFile(destPath, resp.Body)
}

func applySendOptions(p *telego.SendMessageParams, opts chat.SendOptions) {
	if opts.ParseMode != "" {
		p.ParseMode = opts.ParseMode
	}
	if opts.DisablePreview {
		p.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
	if markup, ok := opts.ReplyMarkup.(telego.ReplyMarkup); ok {
		p.ReplyMarkup = markup
	}
}

func applyEditOptions(p *telego.EditMessageTextParams, opts chat.SendOptions) {
	if opts.ParseMode != "" {
		p.ParseMode = opts.ParseMode
	}
	if opts.DisablePreview {
		p.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
	if markup, ok := opts.ReplyMarkup.(*telego.InlineKeyboardMarkup); ok {
		p.ReplyMarkup = markup
	}
}

// translateError maps the Bot API's string-shaped errors onto the
// sentinel/typed errors defined in internal/chat, so callers never
// string-match a provider error message (§7, §9.2).
func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "message is not modified"):
		return chat.ErrMessageNotModified
	case strings.Contains(msg, "message is too long"):
		return chat.ErrMessageTooLong
	case strings.Contains(msg, "can't parse entities"):
		return chat.ErrCantParseEntities
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message can't be edited"),
		strings.Contains(msg, "chat not found"),
		strings.Contains(msg, "message to delete not found"):
		return chat.ErrMessageUnreachable
	}

	if strings.Contains(msg, "too many requests") || strings.Contains(msg, "retry after") {
		return &chat.RateLimitedError{RetryAfter: parseRetryAfter(msg)}
	}

	return err
}

// parseRetryAfter extracts the integer second count following "retry
// after" in a lowercased Bot API error message, defaulting to one
// second if the message doesn't carry the usual "retry after N" form.
func parseRetryAfter(msg string) time.Duration {
	const marker = "retry after "
	idx := strings.Index(msg, marker)
	if idx == -1 {
		return time.Second
	}
	rest := msg[idx+len(marker):]
	var n int
	if _, err := fmt.Sscanf(rest, "%d", &n); err != nil || n <= 0 {
		return time.Second
	}
	return time.Duration(n) * time.Second
}
