package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a rebuild when files under Root change. Bursts of events
// are coalesced: the rebuild runs once the tree has been quiet for Debounce.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   map[string]struct{}
	rebuild  func(ctx context.Context) error
	logger   *slog.Logger
}

// NewWatcher creates a Watcher. Paths in ignore (typically the snapshot file)
// never trigger a rebuild.
func NewWatcher(root string, debounce time.Duration, rebuild func(ctx context.Context) error, ignore ...string) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	skip := make(map[string]struct{}, len(ignore))
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = struct{}{}
		}
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		ignore:   skip,
		rebuild:  rebuild,
		logger:   slog.Default().With("component", "index-watcher", "root", root),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.logger.Info("watching data directory", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher stopping")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fsw, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("rebuild after change failed", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasSuffix(event.Name, ".tmp") {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return true
	}
	_, skip := w.ignore[abs]
	return !skip
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("skipping unwatchable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("failed to add directory to watcher", "path", path, "error", err)
		}
		return nil
	})
}
