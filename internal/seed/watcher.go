package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jpalmerr/todostream/internal/store"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher keeps a store in sync with a seed file.
type Watcher struct {
	path     string
	store    store.Store
	logger   *slog.Logger
	debounce time.Duration
	done     chan struct{}
}

// NewWatcher creates a [Watcher] for path. A nil logger discards output.
func NewWatcher(path string, st store.Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    st,
		logger:   logger,
		debounce: DefaultDebounce,
	}
}

// Start loads the file, dispatches it, and watches it for changes until ctx
// is cancelled. The initial load must succeed.
//
// Start returns once the watch is in place; [Watcher.Wait] blocks until it
// has stopped. Reloads that fail are logged and the current list is kept.
// The parent directory is watched rather than the file so editors that save
// by rename are picked up.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating seed watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	if err := w.Reload(); err != nil {
		fsw.Close()
		return err
	}

	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		defer fsw.Close()
		w.watch(ctx, fsw)
	}()
	return nil
}

// Wait blocks until the watch started by a successful [Watcher.Start] has
// stopped.
func (w *Watcher) Wait() {
	<-w.done
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher) {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.Reload(); err != nil {
				w.logger.Warn("seed reload failed, keeping current todos", "path", w.path, "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("seed watcher error", "path", w.path, "error", err)
		}
	}
}

// Reload reads the file and dispatches its todos as an init action.
func (w *Watcher) Reload() error {
	state, err := Load(w.path)
	if err != nil {
		return err
	}
	changed := w.store.Dispatch(store.Init(state))
	w.logger.Info("seed file loaded", "path", w.path, "todo_count", len(state.Todos), "changed", changed)
	return nil
}
