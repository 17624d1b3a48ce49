package telegram

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/codexpanel/internal/chat"
)

// maxPhotoDimension bounds the longest edge a downloaded photo is
// allowed to keep; anything larger is downscaled so an oversized phone
// photo doesn't dominate a session's working directory (§11.3).
const maxPhotoDimension = 2048

// MaxDownloadedFilenameLen bounds a sanitized inbound filename (§11.3,
// §8 boundary behavior).
const MaxDownloadedFilenameLen = 180

var controlCharPattern = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeBasename strips control characters, replaces path separators,
// rejects "." and ".." outright, and truncates to
// MaxDownloadedFilenameLen while preserving the extension when the
// truncation point allows it (§11.3).
func SanitizeBasename(name string) string {
	name = controlCharPattern.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		name = "file"
	}

	if len(name) <= MaxDownloadedFilenameLen {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) < MaxDownloadedFilenameLen {
		stem := name[:len(name)-len(ext)]
		budget := MaxDownloadedFilenameLen - len(ext)
		if budget > 0 {
			return stem[:budget] + ext
		}
	}
	return name[:MaxDownloadedFilenameLen]
}

// PickUniqueDestPath returns a path under dir for basename that does
// not already exist, appending _2.._9999 and finally a UTC timestamp
// suffix if every numbered variant is taken (§11.3).
func PickUniqueDestPath(dir, basename string) string {
	candidate := filepath.Join(dir, basename)
	if !exists(candidate) {
		return candidate
	}

	ext := filepath.Ext(basename)
	stem := basename[:len(basename)-len(ext)]

	for n := 2; n <= 9999; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if !exists(candidate) {
			return candidate
		}
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, stamp, ext))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeToFile(destPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// ExtractedAttachment describes one inbound file ready for download.
type ExtractedAttachment struct {
	FileID       string
	FileName     string
	Size         int64
	MediaGroupID string
	IsPhoto      bool
}

// ExtractAttachments picks the largest available photo size, or the
// single document/audio/video/voice/video-note/animation/sticker
// attachment present, deriving a type-hinted default filename when the
// provider supplies none (§11.3).
func ExtractAttachments(msg *telego.Message) []ExtractedAttachment {
	var out []ExtractedAttachment
	groupID := msg.MediaGroupID

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		out = append(out, ExtractedAttachment{
			FileID: largest.FileID, FileName: "photo.jpg",
			Size: int64(largest.FileSize), MediaGroupID: groupID, IsPhoto: true,
		})
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = "document"
		}
		out = append(out, ExtractedAttachment{
			FileID: msg.Document.FileID, FileName: name,
			Size: int64(msg.Document.FileSize), MediaGroupID: groupID,
		})
	case msg.Audio != nil:
		name := msg.Audio.FileName
		if name == "" {
			name = "audio.mp3"
		}
		out = append(out, ExtractedAttachment{FileID: msg.Audio.FileID, FileName: name, Size: int64(msg.Audio.FileSize), MediaGroupID: groupID})
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = "video.mp4"
		}
		out = append(out, ExtractedAttachment{FileID: msg.Video.FileID, FileName: name, Size: int64(msg.Video.FileSize), MediaGroupID: groupID})
	case msg.Voice != nil:
		out = append(out, ExtractedAttachment{FileID: msg.Voice.FileID, FileName: "voice.ogg", Size: int64(msg.Voice.FileSize), MediaGroupID: groupID})
	case msg.VideoNote != nil:
		out = append(out, ExtractedAttachment{FileID: msg.VideoNote.FileID, FileName: "video_note.mp4", Size: int64(msg.VideoNote.FileSize), MediaGroupID: groupID})
	case msg.Animation != nil:
		name := msg.Animation.FileName
		if name == "" {
			name = "animation.gif"
		}
		out = append(out, ExtractedAttachment{FileID: msg.Animation.FileID, FileName: name, Size: int64(msg.Animation.FileSize), MediaGroupID: groupID})
	case msg.Sticker != nil:
		out = append(out, ExtractedAttachment{FileID: msg.Sticker.FileID, FileName: "sticker.webp", Size: int64(msg.Sticker.FileSize), MediaGroupID: groupID})
	}
	return out
}

// DownloadAttachments downloads each attachment into destDir via
// transport's get-file/download primitive, enforcing an optional total
// byte ceiling (§11.3). Returns the saved basenames and an optional
// "too large, skipped" notice.
func DownloadAttachments(ctx context.Context, transport chat.Transport, attachments []ExtractedAttachment, destDir string, maxTotalBytes int64) ([]string, string) {
	var saved []string
	var totalBytes int64
	var skipped []string

	for i, a := range attachments {
		if maxTotalBytes > 0 && totalBytes+a.Size > maxTotalBytes {
			skipped = append(skipped, a.FileName)
			continue
		}

		ref, err := transport.GetFile(ctx, a.FileID)
		if err != nil {
			skipped = append(skipped, a.FileName)
			continue
		}

		basename := SanitizeBasename(a.FileName)
		if basename == "file" && i > 0 {
			basename = fmt.Sprintf("file_%d", i)
		}
		dest := PickUniqueDestPath(destDir, basename)
		if err := transport.Download(ctx, ref, dest); err != nil {
			skipped = append(skipped, a.FileName)
			continue
		}
		if a.IsPhoto {
			normalizePhoto(dest)
		}
		saved = append(saved, filepath.Base(dest))
		totalBytes += a.Size
	}

	notice := ""
	if len(skipped) > 0 {
		notice = "too large, skipped: " + strings.Join(skipped, ", ")
	}
	return saved, notice
}

// normalizePhoto auto-orients a downloaded photo according to its EXIF
// tag and downscales it in place if it exceeds maxPhotoDimension on its
// longest edge. Failures are left as-is: a photo that can't be decoded
// as an image is kept verbatim rather than dropped.
func normalizePhoto(path string) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return
	}
	b := img.Bounds()
	if b.Dx() > maxPhotoDimension || b.Dy() > maxPhotoDimension {
		img = imaging.Fit(img, maxPhotoDimension, maxPhotoDimension, imaging.Lanczos)
	}
	_ = imaging.Save(img, path)
}

// MediaGroupDebounceSeconds is the quiet-period, in seconds, after the
// last arrival in a media group before it is flushed as one prompt
// (§11.3).
const MediaGroupDebounceSeconds = 0.8

// MediaGroupAccumulator coalesces a burst of same-media-group-id
// attachments into one downstream prompt (§4.8, §8 "Media-group
// debounce", §11.3). Rather than a polling re-check loop, arrival
// resets a single per-group timer, which is equivalent: the group
// flushes exactly when MediaGroupDebounceSeconds have elapsed since
// the last arrival.
type MediaGroupAccumulator struct {
	mu       sync.Mutex
	groups   map[string]*pendingGroup
	debounce time.Duration
	flush    func(chatID int64, caption string, filenames []string)
}

type pendingGroup struct {
	chatID      int64
	caption     string
	filenames   []string
	lastArrival time.Time
	timer       *time.Timer
}

func NewMediaGroupAccumulator(flush func(chatID int64, caption string, filenames []string)) *MediaGroupAccumulator {
	return &MediaGroupAccumulator{
		groups:   make(map[string]*pendingGroup),
		debounce: time.Duration(MediaGroupDebounceSeconds * float64(time.Second)),
		flush:    flush,
	}
}

// Add records one message's worth of already-downloaded filenames
// under groupID, resetting the flush timer.
func (a *MediaGroupAccumulator) Add(groupID string, chatID int64, caption string, filenames []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.groups[groupID]
	if !ok {
		g = &pendingGroup{chatID: chatID}
		a.groups[groupID] = g
	}
	if caption != "" {
		g.caption = caption
	}
	g.filenames = append(g.filenames, filenames...)
	g.lastArrival = time.Now()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(a.debounce, func() {
		a.flushGroup(groupID)
	})
}

func (a *MediaGroupAccumulator) flushGroup(groupID string) {
	a.mu.Lock()
	g, ok := a.groups[groupID]
	if ok {
		delete(a.groups, groupID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	a.flush(g.chatID, g.caption, g.filenames)
}

// SynthesizePrompt builds the final downstream prompt text from a
// caption plus the union of downloaded filenames (§4.8, §11.3).
func SynthesizePrompt(caption string, filenames []string) string {
	var b strings.Builder
	if caption != "" {
		b.WriteString(caption)
		b.WriteString("\n\n")
	}
	b.WriteString("Attached files: ")
	b.WriteString(strings.Join(filenames, ", "))
	return b.String()
}
