package search

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is the delay before reacting to document changes. OneDrive
// sync writes files in bursts, so a single flush per burst is enough.
const watchDebounce = 1500 * time.Millisecond

// Watcher monitors the document root and flushes the search cache whenever
// files change, so stale result sets never outlive the files behind them.
type Watcher struct {
	searcher *Searcher
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// debounce state
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
}

// NewWatcher creates a watcher bound to the given searcher.
func NewWatcher(s *Searcher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{searcher: s, fsw: fsw}, nil
}

// Start begins watching the document root and all its subdirectories.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	err := filepath.WalkDir(w.searcher.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("search watcher: cannot watch dir", "path", path, "error", err)
			}
			return nil
		}
		watched++
		return nil
	})
	if err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	slog.Info("search watcher started", "root", w.searcher.Root(), "watched", watched)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("search watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directory created under the root → start watching it too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
			slog.Debug("search watcher: watching new dir", "path", event.Name)
		}
	}
	w.scheduleFlush()
}

// scheduleFlush debounces cache flushes.
func (w *Watcher) scheduleFlush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		w.flush()
	})
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	w.searcher.Flush()
	slog.Info("documents changed, search cache flushed")
}
