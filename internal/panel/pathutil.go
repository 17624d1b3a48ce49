package panel

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sys/unix"
)

func runewidthStringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// truncateToWidth truncates s to at most maxLen display columns,
// counting from the start, prefixing an ellipsis marker once truncated.
func truncateToWidth(s string, maxLen int) string {
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	const marker = "…"
	budget := maxLen - runewidth.StringWidth(marker)
	if budget < 0 {
		budget = 0
	}
	width := 0
	runes := []rune(s)
	cut := len(runes)
	for i, r := range runes {
		w := runewidth.RuneWidth(r)
		if width+w > budget {
			cut = i
			break
		}
		width += w
	}
	return marker + string(runes[:cut])
}

// CanCreateDirectory reports whether path either already exists as a
// directory, or does not exist yet but its nearest existing ancestor is
// a writable directory (§11.6) — the pre-flight check run before a
// session's working directory is accepted, so a typo'd path fails fast
// with a clear message instead of surfacing as an opaque subprocess
// spawn error later.
func CanCreateDirectory(path string) bool {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir()
	}
	if !os.IsNotExist(err) {
		return false
	}

	parent := filepath.Dir(path)
	if parent == path {
		return false
	}
	parentInfo, err := os.Stat(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return CanCreateDirectory(parent)
		}
		return false
	}
	if !parentInfo.IsDir() {
		return false
	}
	// Writable alone isn't enough: a directory without the search
	// (execute) bit can't have files created under it either, so probe
	// both like access(2)'s W_OK|X_OK (§11.6).
	return unix.Access(parent, unix.W_OK|unix.X_OK) == nil
}
