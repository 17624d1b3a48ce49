// Package botshell owns the Telegram update loop: long-polling for
// updates, routing them to commands/text/attachments/callbacks, and
// graceful shutdown (§4.8, §4.9). Grounded on the long-poll
// start/stop lifecycle of a Telegram channel adapter in the example
// pool, adapted from a multi-channel gateway's dispatch loop to this
// single-user control plane's command surface.
package botshell

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/codexpanel/internal/config"
	"github.com/nextlevelbuilder/codexpanel/internal/registry"
	"github.com/nextlevelbuilder/codexpanel/internal/telegram"
	"github.com/nextlevelbuilder/codexpanel/internal/ui"
)

// Shell wires the Telegram transport, attachment pipeline, and
// UIController together behind one long-poll loop. When
// cfg.Telegram.AdminUserID is set, only updates from that user are
// handled; when it is zero, updates from every sender are handled and no
// first-contact owner is captured for access control.
type Shell struct {
	transport *telegram.Transport
	notice    *telegram.Notice
	groups    *telegram.MediaGroupAccumulator
	controller *ui.Controller
	registry  *registry.Registry
	cfg       *config.Config
	log       *slog.Logger

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New builds a Shell. It does not set the notice's owner chat id; that
// is updated from the chat of every accepted message or callback query.
func New(transport *telegram.Transport, notice *telegram.Notice, reg *registry.Registry, controller *ui.Controller, cfg *config.Config, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	s := &Shell{
		transport:  transport,
		notice:     notice,
		registry:   reg,
		controller: controller,
		cfg:        cfg,
		log:        log,
	}
	s.groups = telegram.NewMediaGroupAccumulator(s.flushMediaGroup)
	return s
}

// Start begins long polling and returns once updates are flowing.
// Mirrors the cancel-context + done-channel shutdown coordination
// used by the pool's own Telegram channel adapter.
func (s *Shell) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})

	updates, err := s.transport.Bot().UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"callback_query",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("botshell: start long polling: %w", err)
	}

	s.log.Info("bot connected", "username", s.transport.Bot().Username())

	go func() {
		commands := telegram.DefaultMenuCommands()
		for attempt := 1; attempt <= 3; attempt++ {
			if err := s.transport.SyncMenuCommands(pollCtx, commands); err != nil {
				s.log.Warn("menu command sync failed", "attempt", attempt, "err", err)
				if attempt < 3 {
					select {
					case <-pollCtx.Done():
						return
					case <-time.After(time.Duration(attempt*5) * time.Second):
					}
				}
				continue
			}
			s.log.Info("menu commands synced")
			return
		}
	}()

	go func() {
		defer close(s.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					s.log.Info("updates channel closed")
					return
				}
				s.dispatchUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels the poll loop and waits for it to exit, bounded so a
// stuck getUpdates call can't hang shutdown indefinitely.
func (s *Shell) Stop() {
	if s.pollCancel != nil {
		s.pollCancel()
	}
	if s.pollDone != nil {
		select {
		case <-s.pollDone:
		case <-time.After(10 * time.Second):
			s.log.Warn("poll loop did not exit within timeout")
		}
	}
}

func (s *Shell) dispatchUpdate(ctx context.Context, update telego.Update) {
	defer s.recoverPanic(ctx)

	switch {
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		s.log.Debug("update skipped", "update_id", update.UpdateID)
	}
}

func (s *Shell) recoverPanic(ctx context.Context) {
	if r := recover(); r != nil {
		s.log.Error("botshell: recovered from panic in update handler", "panic", r)
	}
	_ = ctx
}

func (s *Shell) isOwner(userID int64) bool {
	admin := s.cfg.Telegram.AdminUserID
	return admin == 0 || userID == admin
}

func (s *Shell) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || !s.isOwner(msg.From.ID) {
		return
	}
	s.notice.SetOwnerChatID(msg.Chat.ID)
	chatID := msg.Chat.ID

	if attachments := telegram.ExtractAttachments(msg); len(attachments) > 0 {
		s.handleAttachments(ctx, chatID, msg, attachments)
		return
	}

	text := msg.Text
	if strings.HasPrefix(text, "/") {
		s.handleCommand(ctx, chatID, text)
		return
	}
	if text == "" {
		return
	}
	if err := s.controller.HandleText(ctx, chatID, text); err != nil {
		s.log.Warn("handle text failed", "chat_id", chatID, "err", err)
	}

	if s.cfg.Telegram.DeleteUserMsgs && msg.Chat.Type != "private" {
		_ = s.transport.DeleteMessage(ctx, chatID, msg.MessageID)
	}
}

func (s *Shell) handleCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.SplitN(strings.TrimPrefix(text, "/"), " ", 2)
	cmd := fields[0]
	if idx := strings.Index(cmd, "@"); idx >= 0 {
		cmd = cmd[:idx]
	}
	args := ""
	if len(fields) > 1 {
		args = strings.TrimSpace(fields[1])
	}
	if err := s.controller.HandleCommand(ctx, chatID, cmd, args); err != nil {
		s.log.Warn("handle command failed", "chat_id", chatID, "cmd", cmd, "err", err)
	}
}

func (s *Shell) handleAttachments(ctx context.Context, chatID int64, msg *telego.Message, attachments []telegram.ExtractedAttachment) {
	e, ok := s.registry.Get(s.currentFocus(chatID))
	if !ok {
		return
	}
	saved, notice := telegram.DownloadAttachments(ctx, s.transport, attachments, e.Path, s.cfg.Attachments.MaxTotalBytes)
	if notice != "" {
		s.log.Warn("attachment download partial", "chat_id", chatID, "notice", notice)
	}
	if len(saved) == 0 {
		return
	}

	if groupID := attachments[0].MediaGroupID; groupID != "" {
		s.groups.Add(groupID, chatID, msg.Caption, saved)
		return
	}

	prompt := telegram.SynthesizePrompt(msg.Caption, saved)
	if err := s.controller.HandleAttachmentPrompt(ctx, chatID, prompt); err != nil {
		s.log.Warn("handle attachment prompt failed", "chat_id", chatID, "err", err)
	}
}

func (s *Shell) flushMediaGroup(chatID int64, caption string, filenames []string) {
	prompt := telegram.SynthesizePrompt(caption, filenames)
	if err := s.controller.HandleAttachmentPrompt(context.Background(), chatID, prompt); err != nil {
		s.log.Warn("handle media group prompt failed", "chat_id", chatID, "err", err)
	}
}

// currentFocus is a thin helper so attachment handling can resolve the
// destination session's working directory the same way UIController
// resolves it for text input — by asking the registry for whichever
// session name the controller currently has focused. Until a session
// is open, attachments are simply dropped into nothing (callers check
// the returned ok).
func (s *Shell) currentFocus(chatID int64) string {
	return s.controller.FocusedSession(chatID)
}

func (s *Shell) handleCallbackQuery(ctx context.Context, cb *telego.CallbackQuery) {
	if !s.isOwner(cb.From.ID) {
		return
	}
	if cb.Message == nil || cb.Message.GetChat().ID == 0 {
		return
	}
	chatID := cb.Message.GetChat().ID
	messageID := cb.Message.GetMessageID()
	s.notice.SetOwnerChatID(chatID)

	if cb.Data == telegram.AckCallbackAction() {
		if err := s.notice.HandleAcknowledge(ctx, chatID, messageID); err != nil {
			s.log.Warn("acknowledge notice failed", "chat_id", chatID, "err", err)
		}
	} else if err := s.controller.Dispatch(ctx, chatID, messageID, cb.Data); err != nil {
		s.log.Warn("dispatch callback failed", "chat_id", chatID, "err", err)
	}

	if err := s.transport.Bot().AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	}); err != nil {
		s.log.Warn("answer callback query failed", "err", err)
	}
}
