// Package watcher reports changes to files under the media directory so
// cached probe results for them can be dropped.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

const DefaultDebounce = 250 * time.Millisecond

// Watcher follows a directory tree. Bursts of writes to the same file are
// reported once after the debounce window.
type Watcher struct {
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	callback func(path string, event EventType)
	pending  map[string]EventType
	timers   map[string]*time.Timer

	running atomic.Bool
}

func New(debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]EventType),
		timers:   make(map[string]*time.Timer),
	}
}

func (w *Watcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch blocks until ctx is cancelled, following root and every directory
// created beneath it.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	if w.running.Swap(true) {
		return nil
	}
	defer w.running.Store(false)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addTree(fw, root); err != nil {
		return err
	}
	w.logger.Info("media watcher started", "root", root)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info("media watcher stopping")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("media watcher error", "error", err)
		}
	}
}

func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	var kind EventType
	switch {
	case ev.Has(fsnotify.Create):
		kind = EventCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	case ev.Has(fsnotify.Write):
		kind = EventModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = EventDelete
	default:
		return
	}
	w.schedule(ev.Name, kind)
}

// schedule records the event and restarts the path's debounce timer. A
// create followed by writes is still reported as a create.
func (w *Watcher) schedule(path string, kind EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pending[path]; !ok || kind == EventDelete || prev != EventCreate {
		w.pending[path] = kind
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	cb := w.callback
	w.mu.Unlock()

	if !ok || cb == nil {
		return
	}
	w.logger.Debug("media changed", "path", path, "event", kind.String())
	cb(path, kind)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
		delete(w.pending, path)
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
