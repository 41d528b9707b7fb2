package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more events before
// reporting a change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher invalidates cached discovery results when files under a source
// directory change. It watches the OS filesystem, recursively.
type Watcher struct {
	dir      string
	cache    *Cache
	onChange func(ctx context.Context)
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for dir. onChange, if non-nil, runs after the
// cache entry for dir was invalidated; it is called from the Run goroutine
// and never concurrently with itself.
func NewWatcher(dir string, cache *Cache, onChange func(ctx context.Context), logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		cache:    cache,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		watcher:  w,
	}, nil
}

// Run watches until ctx is cancelled. It always closes the underlying
// fsnotify watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addRecursive(w.dir); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				// New subdirectories (a new bundle) must be watched too.
				if err := w.addRecursive(ev.Name); err != nil {
					w.logger.Warn("cannot watch new path", "path", ev.Name, "error", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)

		case <-pending:
			pending = nil
			w.cache.Invalidate(w.dir)
			w.logger.Info("source changed, discovery cache invalidated", "dir", w.dir)
			if w.onChange != nil {
				w.onChange(ctx)
			}
		}
	}
}

// addRecursive watches root and every directory below it. A root that
// cannot be walked is an error; subdirectories that vanish mid-walk are
// logged and skipped.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			w.logger.Warn("cannot watch directory", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
