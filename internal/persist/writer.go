package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type WriterOptions struct {
	// WritesPerSecond caps storage writes across all projects.
	WritesPerSecond float64
	Burst           int
	Timeout         time.Duration
}

func DefaultWriterOptions() WriterOptions {
	return WriterOptions{WritesPerSecond: 4, Burst: 2, Timeout: 10 * time.Second}
}

// Writer queues snapshots and writes them in the background. Only the
// latest snapshot per project is kept while a project waits its turn.
type Writer struct {
	store    Store
	notifier Notifier
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*timeline.State
	order   []string

	writeMu sync.Mutex
	wake    chan struct{}
	running atomic.Bool
	saved   atomic.Int64
	failed  atomic.Int64
}

func NewWriter(store Store, notifier Notifier, opts WriterOptions, logger *slog.Logger) *Writer {
	def := DefaultWriterOptions()
	if opts.WritesPerSecond <= 0 {
		opts.WritesPerSecond = def.WritesPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &Writer{
		store:    store,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(opts.WritesPerSecond), opts.Burst),
		timeout:  opts.Timeout,
		logger:   logger,
		pending:  make(map[string]*timeline.State),
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue records st as the snapshot to write for projectID. It never blocks
// on storage.
func (w *Writer) Enqueue(projectID string, st *timeline.State) {
	snap := st.Clone()

	w.mu.Lock()
	if _, queued := w.pending[projectID]; !queued {
		w.order = append(w.order, projectID)
	}
	w.pending[projectID] = snap
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the write loop until ctx is cancelled, then flushes what is
// still queued.
func (w *Writer) Start(ctx context.Context) {
	if w.running.Swap(true) {
		return
	}
	if w.logger != nil {
		w.logger.Info("persistence writer started")
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), w.timeout)
			w.Flush(flushCtx)
			cancel()
			if w.logger != nil {
				w.logger.Info("persistence writer stopping")
			}
			w.running.Store(false)
			return
		case <-w.wake:
			w.drain(ctx, true)
		}
	}
}

// Flush writes everything queued without rate limiting.
func (w *Writer) Flush(ctx context.Context) {
	w.drain(ctx, false)
}

func (w *Writer) drain(ctx context.Context, throttle bool) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	for {
		projectID, st, ok := w.pop()
		if !ok {
			return
		}
		if throttle {
			if err := w.limiter.Wait(ctx); err != nil {
				w.requeue(projectID, st)
				return
			}
		}
		w.write(ctx, projectID, st)
	}
}

// requeue puts a popped snapshot back at the front unless a newer one for
// the same project arrived meanwhile.
func (w *Writer) requeue(projectID string, st *timeline.State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, newer := w.pending[projectID]; newer {
		return
	}
	w.pending[projectID] = st
	w.order = append([]string{projectID}, w.order...)
}

func (w *Writer) pop() (string, *timeline.State, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return "", nil, false
	}
	id := w.order[0]
	w.order = w.order[1:]
	st := w.pending[id]
	delete(w.pending, id)
	return id, st, true
}

func (w *Writer) write(ctx context.Context, projectID string, st *timeline.State) {
	// A write already started finishes even if the loop is shutting down.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	start := time.Now()
	err := w.store.SaveSnapshot(ctx, projectID, st)
	if err == nil {
		w.saved.Add(1)
		if w.logger != nil {
			w.logger.Debug("snapshot saved", "project_id", projectID, "duration", time.Since(start))
		}
		return
	}

	w.failed.Add(1)
	if w.logger != nil {
		w.logger.Error("snapshot save failed", "project_id", projectID, "error", err)
	}
	if w.notifier != nil {
		w.notifier.Notify(Notice{
			ProjectID: projectID,
			Kind:      NoticePersistence,
			Message:   fmt.Sprintf("latest changes were not saved: %v", err),
			At:        time.Now(),
		})
	}
}

func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

func (w *Writer) IsRunning() bool {
	return w.running.Load()
}

type Stats struct {
	Saved   int64 `json:"saved"`
	Failed  int64 `json:"failed"`
	Pending int   `json:"pending"`
}

func (w *Writer) Stats() Stats {
	return Stats{Saved: w.saved.Load(), Failed: w.failed.Load(), Pending: w.Pending()}
}
