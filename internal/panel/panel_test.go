package panel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

type stubBindings struct {
	ids map[int64]int
}

func newStubBindings() *stubBindings { return &stubBindings{ids: map[int64]int{}} }

func (s *stubBindings) GetPanelMessage(chatID int64) (int, bool) {
	id, ok := s.ids[chatID]
	return id, ok
}

func (s *stubBindings) SetPanelMessage(chatID int64, messageID int) {
	s.ids[chatID] = messageID
}

type scriptedTransport struct {
	sendID     int
	editErrors []error // consumed in order on each EditMessageText call
	edits      []string
	sends      int
}

func (t *scriptedTransport) SendMessage(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	t.sends++
	t.sendID++
	return t.sendID, nil
}

func (t *scriptedTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	t.edits = append(t.edits, text)
	if len(t.editErrors) == 0 {
		return nil
	}
	err := t.editErrors[0]
	t.editErrors = t.editErrors[1:]
	return err
}

func (t *scriptedTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (t *scriptedTransport) GetFile(ctx context.Context, fileID string) (chat.FileRef, error) {
	return chat.FileRef{}, nil
}

func (t *scriptedTransport) Download(ctx context.Context, ref chat.FileRef, destPath string) error {
	return nil
}

func TestEnsurePanelSendsOnce(t *testing.T) {
	tr := &scriptedTransport{}
	b := newStubBindings()
	r := New(tr, b, nil)

	id1, err := r.EnsurePanel(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsurePanel() err = %v", err)
	}
	id2, err := r.EnsurePanel(context.Background(), 1)
	if err != nil {
		t.Fatalf("EnsurePanel() err = %v", err)
	}
	if id1 != id2 {
		t.Errorf("EnsurePanel() ids differ across calls: %d vs %d", id1, id2)
	}
	if tr.sends != 1 {
		t.Errorf("sends = %d, want 1", tr.sends)
	}
}

func TestRenderPlainSuccess(t *testing.T) {
	tr := &scriptedTransport{}
	b := newStubBindings()
	r := New(tr, b, nil)

	if err := r.Render(context.Background(), 1, "<b>hi</b>", nil); err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	if len(tr.edits) != 1 {
		t.Errorf("edits = %d, want 1", len(tr.edits))
	}
}

func TestRenderRateLimitedThenSucceeds(t *testing.T) {
	tr := &scriptedTransport{
		editErrors: []error{&chat.RateLimitedError{RetryAfter: time.Millisecond}},
	}
	b := newStubBindings()
	r := New(tr, b, nil)

	if err := r.Render(context.Background(), 1, "<b>hi</b>", nil); err != nil {
		t.Fatalf("Render() err = %v", err)
	}
}

func TestRenderTooLongCollapsesToPre(t *testing.T) {
	tr := &scriptedTransport{
		editErrors: []error{chat.ErrMessageTooLong, nil},
	}
	b := newStubBindings()
	r := New(tr, b, nil)

	if err := r.Render(context.Background(), 1, strings.Repeat("a", 5000), nil); err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	last := tr.edits[len(tr.edits)-1]
	if !strings.Contains(last, "<pre><code>") {
		t.Errorf("last edit = %q, want <pre><code> collapse", last)
	}
}

func TestRenderCantParseEntitiesFallsBackToPlain(t *testing.T) {
	tr := &scriptedTransport{
		editErrors: []error{chat.ErrCantParseEntities, nil},
	}
	b := newStubBindings()
	r := New(tr, b, nil)

	if err := r.Render(context.Background(), 1, "<b>broken</b>", nil); err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	last := tr.edits[len(tr.edits)-1]
	if strings.Contains(last, "<b>") {
		t.Errorf("last edit = %q, want tags stripped", last)
	}
}

func TestRenderUnreachableSendsReplacement(t *testing.T) {
	tr := &scriptedTransport{
		editErrors: []error{chat.ErrMessageUnreachable},
	}
	b := newStubBindings()
	r := New(tr, b, nil)

	if err := r.Render(context.Background(), 1, "<b>hi</b>", nil); err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	if tr.sends != 2 {
		t.Errorf("sends = %d, want 2 (initial placeholder + replacement)", tr.sends)
	}
	id, _ := b.GetPanelMessage(1)
	if id != tr.sendID {
		t.Errorf("binding not rebound to replacement message id")
	}
}

func TestRenderPropagatesUnknownError(t *testing.T) {
	wantErr := errors.New("boom")
	tr := &scriptedTransport{editErrors: []error{wantErr}}
	b := newStubBindings()
	r := New(tr, b, nil)

	err := r.Render(context.Background(), 1, "<b>hi</b>", nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("Render() err = %v, want %v", err, wantErr)
	}
}

func TestShortenPathKeepsShortPaths(t *testing.T) {
	got := ShortenPath("/tmp/foo", 34)
	if got != "/tmp/foo" {
		t.Errorf("ShortenPath() = %q, want unchanged", got)
	}
}

func TestShortenPathCollapsesDeepPaths(t *testing.T) {
	got := ShortenPath("/home/user/workspace/projects/alpha/beta/gamma", 20)
	if !strings.HasPrefix(got, "…/") {
		t.Errorf("ShortenPath() = %q, want ellipsis-prefixed tail", got)
	}
	if !strings.HasSuffix(got, "beta/gamma") {
		t.Errorf("ShortenPath() = %q, want final two segments kept", got)
	}
}

func TestCanCreateDirectoryExistingDir(t *testing.T) {
	if !CanCreateDirectory(t.TempDir()) {
		t.Error("CanCreateDirectory() = false for an existing writable dir")
	}
}

func TestCanCreateDirectoryUnderExistingParent(t *testing.T) {
	dir := t.TempDir()
	if !CanCreateDirectory(dir + "/new-subdir") {
		t.Error("CanCreateDirectory() = false for a creatable child of an existing dir")
	}
}

func TestCanCreateDirectoryMissingGrandparent(t *testing.T) {
	if CanCreateDirectory("/this/path/almost/certainly/does/not/exist/anywhere") {
		t.Error("CanCreateDirectory() = true for a path with no existing ancestor")
	}
}

func TestRenderRunningViewIncludesElapsed(t *testing.T) {
	got := RenderRunningView(ViewData{
		Name:            "alpha",
		Path:            "/tmp/alpha",
		Model:           "gpt-5.2",
		ReasoningEffort: "high",
		ElapsedOrTotal:  90 * time.Second,
		LogTail:         "building...",
	})
	if !strings.Contains(got, "Working 1m 30s") {
		t.Errorf("RenderRunningView() = %q, missing elapsed footer", got)
	}
}

func TestRenderNeverRunViewPrompt(t *testing.T) {
	got := RenderNeverRunView(ViewData{Name: "alpha", Path: "/tmp/alpha", Model: "gpt-5.2", ReasoningEffort: "high"})
	if !strings.Contains(got, "Send a prompt to start") {
		t.Errorf("RenderNeverRunView() = %q, missing call to action", got)
	}
}

func TestRenderFinishedViewIncludesOutcome(t *testing.T) {
	got := RenderFinishedView(ViewData{
		Name:             "alpha",
		Path:             "/tmp/alpha",
		Model:            "gpt-5.2",
		ReasoningEffort:  "high",
		ElapsedOrTotal:   45 * time.Second,
		StdoutPreview:    "done.",
		LastAgentMessage: "All tests passed.",
		Outcome:          "Worked",
	})
	if !strings.Contains(got, "Worked for 0m 45s") {
		t.Errorf("RenderFinishedView() = %q, missing outcome line", got)
	}
	if !strings.Contains(got, "All tests passed.") {
		t.Errorf("RenderFinishedView() = %q, missing last agent message", got)
	}
}

func TestShrinkExcerptFloorsAtMinimum(t *testing.T) {
	big := strings.Repeat("x", 10000)
	got := shrinkExcerpt(big, logExcerptStart, logExcerptFloor, logExcerptSteps)
	if len(got) > logExcerptStart {
		t.Errorf("shrinkExcerpt() len = %d, want <= %d", len(got), logExcerptStart)
	}
}
