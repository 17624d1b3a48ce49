package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
	"github.com/nextlevelbuilder/codexpanel/internal/events"
	"github.com/nextlevelbuilder/codexpanel/internal/logsink"
	"github.com/nextlevelbuilder/codexpanel/internal/stream"
	"github.com/nextlevelbuilder/codexpanel/internal/telemetry"
)

// RunMode selects whether a fresh continuation is started or an
// existing one resumed (§4.6).
type RunMode int

const (
	RunNew RunMode = iota
	RunContinue
)

// Outcome is the terminal classification of a run (§4.6 step 9).
type Outcome struct {
	Status      string // "idle" | "error" | "stopped" after healing
	LastResult  string // "success" | "error" | "stopped"
	Duration    time.Duration
	NewThreadID string // empty if unchanged
}

// Hooks is the set of registry/panel callbacks a Runner invokes during
// the run lifecycle, kept as an interface so internal/runner has no
// import-time dependency on internal/registry or internal/panel (§4.6
// steps 5, 10, 11).
type Hooks interface {
	PauseOtherAttachedRuns(chatID int64, messageID int, exceptSession string)
	RegisterRunMessage(session string, chatID int64, messageID int)
	UnregisterRunMessage(session string)
	RenderFinished(ctx context.Context, sessionName string, o Outcome)
	RenderFailedToStart(ctx context.Context, sessionName string, reason string)
	SendCompletionNotice(ctx context.Context, sessionName string, prompt string)
}

// Config is everything a single Run needs that doesn't change across
// the process lifetime of the Runner.
type Config struct {
	SessionName     string
	WorkDir         string
	Model           string
	ReasoningEffort string
	SandboxMode     string
	ApprovalPolicy  string
	ChatID          int64
	MessageID       int
	Mode            RunMode
	ThreadID        string
	Prompt          string

	CodexBinary string // defaults to "codex"
}

// stderrRingSize is the in-memory stderr ring's line capacity (§3
// "Run": "Bounded in-memory stderr ring (last N=80 lines) for failure
// diagnostics").
const stderrRingSize = 80

// stderrRing is a fixed-capacity ring buffer of the most recent stderr
// lines, kept alongside the log file so spawn/exit diagnostics don't
// need a disk read.
type stderrRing struct {
	mu    sync.Mutex
	lines []string
}

func (r *stderrRing) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > stderrRingSize {
		r.lines = r.lines[len(r.lines)-stderrRingSize:]
	}
}

func (r *stderrRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Runner drives one run's subprocess lifecycle end to end (§4.6).
type Runner struct {
	cfg       Config
	transport chat.Transport
	hooks     Hooks
	log       *slog.Logger

	stdoutSink *logsink.Sink
	stderrSink *logsink.Sink
	stderrRing stderrRing

	stopRequested atomic.Bool

	// runID is a short random token assigned per Run, used to correlate
	// its two reader-task log lines and its stream-edit log lines (§9.1).
	runID string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stream *stream.Multiplexer
}

// StderrTail returns the last (up to stderrRingSize) stderr lines
// produced by this run, for failure diagnostics (§3 "Run").
func (r *Runner) StderrTail() []string {
	return r.stderrRing.snapshot()
}

// Stream returns the run's StreamMultiplexer, or nil before Run has
// started it. UIController's attach bridge uses this to pause/resume
// the stream without the registry needing its own reference into the
// run's internals (§4.8 "attach/detach bridge").
func (r *Runner) Stream() *stream.Multiplexer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

func New(cfg Config, transport chat.Transport, hooks Hooks, stdoutSink, stderrSink *logsink.Sink, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CodexBinary == "" {
		cfg.CodexBinary = "codex"
	}
	return &Runner{
		cfg: cfg, transport: transport, hooks: hooks,
		stdoutSink: stdoutSink, stderrSink: stderrSink, log: log,
		runID: uuid.NewString(),
	}
}

// Stop implements §4.6's stop protocol: idempotent, safe from
// concurrent callers, SIGTERM-then-SIGKILL at the process-group level.
func (r *Runner) Stop() {
	r.stopRequested.Store(true)
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	stopProcessGroup(pid, 5*time.Second, func() bool {
		return cmd.ProcessState == nil
	})
}

// Run executes the full 12-step lifecycle and returns the terminal
// Outcome. It never panics; spawn and I/O failures are classified per
// §7 and folded into the returned Outcome / hook calls.
func (r *Runner) Run(ctx context.Context) Outcome {
	start := time.Now()

	ctx, span := telemetry.Tracer().Start(ctx, "run", trace.WithAttributes(
		attribute.String("session", r.cfg.SessionName),
		attribute.String("run_id", r.runID),
	))
	defer span.End()

	r.hooks.PauseOtherAttachedRuns(r.cfg.ChatID, r.cfg.MessageID, r.cfg.SessionName)
	r.hooks.RegisterRunMessage(r.cfg.SessionName, r.cfg.ChatID, r.cfg.MessageID)
	defer r.hooks.UnregisterRunMessage(r.cfg.SessionName)

	m := stream.New(ctx, r.transport, r.cfg.ChatID, r.cfg.MessageID, r.log, true, true)
	m.SetHeader("<b>Starting…</b>", "Starting…")
	startStamp := time.Now()
	m.SetFooter(func() string {
		return fmt.Sprintf("Working %s", formatElapsed(time.Since(startStamp)))
	})
	m.SetWrapLogInPre(true)
	r.mu.Lock()
	r.stream = m
	r.mu.Unlock()

	args := BuildArgs(CommandOptions{
		SandboxMode:     r.cfg.SandboxMode,
		ApprovalPolicy:  r.cfg.ApprovalPolicy,
		WorkDir:         r.cfg.WorkDir,
		Model:           r.cfg.Model,
		ReasoningEffort: r.cfg.ReasoningEffort,
		Resume:          r.cfg.Mode == RunContinue,
		ThreadID:        r.cfg.ThreadID,
		Prompt:          r.cfg.Prompt,
	})

	cmd := exec.CommandContext(context.WithoutCancel(ctx), r.cfg.CodexBinary, args...)
	cmd.Dir = r.cfg.WorkDir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.finishSpawnFailure(ctx, span, m, start, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.finishSpawnFailure(ctx, span, m, start, err)
	}

	if err := cmd.Start(); err != nil {
		return r.finishSpawnFailure(ctx, span, m, start, err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	var continuation atomic.Value
	continuation.Store(r.cfg.ThreadID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.readStdout(stdout, m, &continuation)
	}()
	go func() {
		defer wg.Done()
		r.readStderr(stderr)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	duration := time.Since(start)

	outcome := Outcome{Duration: duration}
	newThread, _ := continuation.Load().(string)
	if newThread != r.cfg.ThreadID {
		outcome.NewThreadID = newThread
	}

	switch {
	case r.stopRequested.Load():
		outcome.Status, outcome.LastResult = "stopped", "stopped"
		span.SetStatus(codes.Ok, "stopped")
	case waitErr == nil:
		outcome.Status, outcome.LastResult = "idle", "success"
		span.SetStatus(codes.Ok, "")
	default:
		outcome.Status, outcome.LastResult = "error", "error"
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		r.log.Error("runner: run exited with error", "session", r.cfg.SessionName, "run_id", r.runID,
			"err", waitErr, "stderr_tail", r.stderrRing.snapshot())
	}
	span.SetAttributes(attribute.String("outcome", outcome.LastResult))

	m.Stop()

	// §4.6 step 11: re-render the finished view unless the run was
	// paused (attached elsewhere) at finish; Hooks.RenderFinished owns
	// that pause check since only the registry/UI layer tracks it.
	r.hooks.RenderFinished(ctx, r.cfg.SessionName, outcome)
	r.hooks.SendCompletionNotice(ctx, r.cfg.SessionName, r.cfg.Prompt)

	return outcome
}

func (r *Runner) finishSpawnFailure(ctx context.Context, span trace.Span, m *stream.Multiplexer, start time.Time, err error) Outcome {
	r.log.Error("runner: spawn failed", "session", r.cfg.SessionName, "run_id", r.runID, "err", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.stderrSink.WriteLine(err.Error())
	m.AddText("Failed to start: " + err.Error())
	m.Stop()
	r.hooks.RenderFailedToStart(ctx, r.cfg.SessionName, err.Error())
	return Outcome{Status: "error", LastResult: "error", Duration: time.Since(start)}
}

func (r *Runner) readStdout(stdout io.Reader, m *stream.Multiplexer, continuation *atomic.Value) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		r.stdoutSink.WriteLine(line)

		var obj events.Object
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			m.AddText(line + "\n")
			continue
		}
		cid := continuation.Load().(string)
		dispatchEvent(obj, m, &cid)
		continuation.Store(cid)
	}
}

func (r *Runner) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		r.stderrSink.WriteLine(line)
		r.stderrRing.add(line)
	}
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
