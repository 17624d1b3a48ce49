package telegram

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

func TestSanitizeBasenameStripsControlChars(t *testing.T) {
	got := SanitizeBasename("re\x00port\x1f.txt")
	if got != "report.txt" {
		t.Errorf("SanitizeBasename() = %q, want %q", got, "report.txt")
	}
}

func TestSanitizeBasenameReplacesSeparators(t *testing.T) {
	got := SanitizeBasename("../../etc/passwd")
	if strings.ContainsAny(got, "/\\") {
		t.Errorf("SanitizeBasename() = %q, still contains a separator", got)
	}
}

func TestSanitizeBasenameRejectsDotAndDotDot(t *testing.T) {
	for _, in := range []string{".", ".."} {
		if got := SanitizeBasename(in); got != "file" {
			t.Errorf("SanitizeBasename(%q) = %q, want %q", in, got, "file")
		}
	}
}

func TestSanitizeBasenameTruncatesPreservingExtension(t *testing.T) {
	name := strings.Repeat("a", 300) + ".txt"
	got := SanitizeBasename(name)
	if len(got) != MaxDownloadedFilenameLen {
		t.Errorf("len(SanitizeBasename()) = %d, want %d", len(got), MaxDownloadedFilenameLen)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Errorf("SanitizeBasename() = %q, want .txt suffix preserved", got)
	}
}

func TestPickUniqueDestPathReturnsPlainPathWhenFree(t *testing.T) {
	dir := t.TempDir()
	got := PickUniqueDestPath(dir, "report.txt")
	if got != filepath.Join(dir, "report.txt") {
		t.Errorf("PickUniqueDestPath() = %q", got)
	}
}

func TestPickUniqueDestPathAppendsCounterOnCollision(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got := PickUniqueDestPath(dir, "report.txt")
	if got != filepath.Join(dir, "report_2.txt") {
		t.Errorf("PickUniqueDestPath() = %q, want report_2.txt", got)
	}
}

func TestDownloadAttachmentsSkipsOverBudget(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeAttachTransport{}
	attachments := []ExtractedAttachment{
		{FileID: "a", FileName: "small.txt", Size: 10},
		{FileID: "b", FileName: "big.txt", Size: 1000},
	}
	saved, notice := DownloadAttachments(context.Background(), tr, attachments, dir, 100)
	if len(saved) != 1 || saved[0] != "small.txt" {
		t.Errorf("saved = %v, want [small.txt]", saved)
	}
	if !strings.Contains(notice, "big.txt") {
		t.Errorf("notice = %q, want mention of big.txt", notice)
	}
}

type fakeAttachTransport struct{}

func (fakeAttachTransport) SendMessage(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	return 0, nil
}
func (fakeAttachTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	return nil
}
func (fakeAttachTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}
func (fakeAttachTransport) GetFile(ctx context.Context, fileID string) (chat.FileRef, error) {
	return chat.FileRef{ID: fileID}, nil
}
func (fakeAttachTransport) Download(ctx context.Context, ref chat.FileRef, destPath string) error {
	return writeToFile(destPath, strings.NewReader("data"))
}

func TestMediaGroupAccumulatorFlushesAfterQuietPeriod(t *testing.T) {
	var mu sync.Mutex
	var flushed []string
	done := make(chan struct{})

	acc := &MediaGroupAccumulator{
		groups:   make(map[string]*pendingGroup),
		debounce: 20 * time.Millisecond,
		flush: func(chatID int64, caption string, filenames []string) {
			mu.Lock()
			flushed = append(flushed, filenames...)
			mu.Unlock()
			close(done)
		},
	}

	acc.Add("group1", 1, "caption", []string{"a.jpg"})
	acc.Add("group1", 1, "", []string{"b.jpg"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush did not fire within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 2 {
		t.Errorf("flushed = %v, want 2 filenames", flushed)
	}
}

func TestSynthesizePromptJoinsCaptionAndFiles(t *testing.T) {
	got := SynthesizePrompt("look at these", []string{"a.jpg", "b.jpg"})
	if !strings.Contains(got, "look at these") || !strings.Contains(got, "a.jpg, b.jpg") {
		t.Errorf("SynthesizePrompt() = %q", got)
	}
}
