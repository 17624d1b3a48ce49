// Package logsink implements per-run stdout/stderr file sinks with
// lazy-open/reopen-backoff semantics and tail-read helpers for preview
// rendering (§4.2).
package logsink

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"
)

// reopenBackoff is the minimum interval between open retries after a
// failed open (§4.2 "re-attempts open no more than once every 5 seconds").
const reopenBackoff = 5 * time.Second

// Sink is an append-only, line-oriented UTF-8 file sink. It lazily opens
// its file on first write and, if the open fails, will not retry more
// often than reopenBackoff. Invalid UTF-8 bytes are replaced rather than
// rejected, since subprocess output is not guaranteed well-formed.
type Sink struct {
	mu         sync.Mutex
	path       string
	f          *os.File
	lastOpenAt time.Time
	lastErr    error
}

// New returns a Sink bound to path. Nothing is opened until the first
// Write call.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the sink's file path.
func (s *Sink) Path() string { return s.path }

// WriteLine appends line plus a trailing newline, replacing any invalid
// UTF-8 byte sequences. Failures to open or write are swallowed per §7
// ("Filesystem errors on log write: close handle, retry open after 5
// seconds; do not propagate to the run") — the caller's run must not be
// disrupted by a log-sink problem.
func (s *Sink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !utf8.ValidString(line) {
		line = strings_ToValidUTF8(line)
	}

	if err := s.ensureOpenLocked(); err != nil {
		return
	}
	if _, err := s.f.WriteString(line + "\n"); err != nil {
		s.lastErr = err
		s.f.Close()
		s.f = nil
	}
}

func (s *Sink) ensureOpenLocked() error {
	if s.f != nil {
		return nil
	}
	if !s.lastOpenAt.IsZero() && time.Since(s.lastOpenAt) < reopenBackoff {
		return fmt.Errorf("logsink: backing off open for %s", s.path)
	}
	s.lastOpenAt = time.Now()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.lastErr = err
		return err
	}
	s.f = f
	s.lastErr = nil
	return nil
}

// Close closes the underlying file handle if open. Safe to call multiple
// times and on a sink that never opened.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// strings_ToValidUTF8 replaces invalid byte sequences with the Unicode
// replacement character, matching bytes.ToValidUTF8's behavior without
// importing it as a top-level alias collision risk in this file.
func strings_ToValidUTF8(s string) string {
	return string(bytes.ToValidUTF8([]byte(s), []byte("�")))
}

// TailBytes reads the last maxBytes of path, decoded as UTF-8 text
// (invalid sequences replaced). Used by preview rendering (§4.2,
// UITailMaxBytes=65536).
func TailBytes(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	size := info.Size()
	offset := int64(0)
	if size > maxBytes {
		offset = size - maxBytes
	}
	if _, err := f.Seek(offset, 0); err != nil {
		return "", err
	}

	buf := make([]byte, size-offset)
	if _, err := io.ReadFull(f, buf); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return strings_ToValidUTF8(string(buf)), nil
}

// TailLines reads the last n lines of path. Used for the in-memory
// stderr ring's on-disk counterpart and failure diagnostics.
func TailLines(path string, n int) ([]string, error) {
	text, err := TailBytes(path, UITailMaxBytesDefault)
	if err != nil {
		return nil, err
	}
	lines := splitLines(text)
	if len(lines) <= n {
		return lines, nil
	}
	return lines[len(lines)-n:], nil
}

// UITailMaxBytesDefault mirrors config.UITailMaxBytes without importing
// the config package, keeping logsink a leaf dependency.
const UITailMaxBytesDefault = 65536

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
