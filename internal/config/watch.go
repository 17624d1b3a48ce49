package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce absorbs the write+rename burst most editors produce for
// a single save, mirroring the debounce idiom used elsewhere in this
// codebase for bursty filesystem/network events.
const reloadDebounce = 300 * time.Millisecond

// Watch starts an fsnotify watch on path and hot-reloads cfg's
// model/path presets whenever the file changes, without requiring a
// process restart (§10). Secret fields and RuntimePaths are never
// touched by a reload — only the JSON-documented preset fields are
// re-applied. The returned stop func closes the watcher; it is safe to
// call once. A file that cannot be watched at start (e.g. it does not
// exist yet) is not an error, but then no reload ever happens: neither
// the file's appearance nor its directory is watched.
func Watch(ctx context.Context, path string, cfg *Config, log *slog.Logger) (func(), error) {
	if log == nil {
		log = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		// The file can't be watched (typically it doesn't exist yet);
		// carry on without hot-reload rather than failing startup.
		_ = err
	}

	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case _, ok := <-w.Events:
				if !ok {
					close(done)
					return
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if err := reload(path, cfg); err != nil {
						log.Warn("config: hot-reload failed", "path", path, "err", err)
						return
					}
					log.Info("config: hot-reloaded", "path", path)
				})
			case err, ok := <-w.Errors:
				if !ok {
					close(done)
					return
				}
				log.Warn("config: watcher error", "err", err)
			}
		}
	}()

	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		w.Close()
		<-done
	}, nil
}

// reload re-reads the preset-bearing fields from path into cfg. It
// never touches Telegram.Token, AdminUserID, or Paths.
func reload(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc struct {
		Agent struct {
			ModelPresets FlexibleStringSlice `json:"model_presets,omitempty"`
		} `json:"agent"`
		PathPresets FlexibleStringSlice `json:"path_presets,omitempty"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Agent.ModelPresets) > 0 {
		cfg.mu.Lock()
		cfg.Agent.ModelPresets = doc.Agent.ModelPresets
		cfg.mu.Unlock()
	}
	if len(doc.PathPresets) > 0 {
		cfg.SetPathPresets(doc.PathPresets)
	}
	return nil
}
