package logsink

import (
	"path/filepath"
	"testing"
)

func TestWriteLineAppendsAndTails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.stderr.txt")
	sink := New(path)
	defer sink.Close()

	sink.WriteLine("first line")
	sink.WriteLine("second line")
	sink.WriteLine("third line")

	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0] != "second line" || lines[1] != "third line" {
		t.Errorf("lines = %v, want [second line, third line]", lines)
	}
}

func TestTailBytesHonorsBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.stdout.jsonl")
	sink := New(path)

	for i := 0; i < 100; i++ {
		sink.WriteLine(`{"type":"item","item":{"type":"text","text":"hello world"}}`)
	}
	sink.Close()

	text, err := TailBytes(path, 100)
	if err != nil {
		t.Fatalf("TailBytes() error = %v", err)
	}
	if len(text) > 100 {
		t.Errorf("len(text) = %d, want <= 100", len(text))
	}
}

func TestTailBytesMissingFile(t *testing.T) {
	if _, err := TailBytes("/nonexistent/path/does-not-exist.txt", 1024); err == nil {
		t.Error("TailBytes() error = nil, want error for missing file")
	}
}
