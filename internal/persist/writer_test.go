package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type fakeStore struct {
	mu     sync.Mutex
	saves  map[string][]*timeline.State
	err    error
	called chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saves: make(map[string][]*timeline.State), called: make(chan string, 16)}
}

func (s *fakeStore) SaveSnapshot(_ context.Context, projectID string, st *timeline.State) error {
	s.mu.Lock()
	s.saves[projectID] = append(s.saves[projectID], st)
	err := s.err
	s.mu.Unlock()
	s.called <- projectID
	return err
}

func (s *fakeStore) count(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves[projectID])
}

type noticeSink struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeSink) Notify(notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *noticeSink) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stateWithDuration(d float64) *timeline.State {
	s := timeline.NewState()
	s.TotalDuration = d
	return s
}

func TestWriter_CoalescesToLatestSnapshot(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil, DefaultWriterOptions(), testLogger())

	w.Enqueue("p1", stateWithDuration(1))
	w.Enqueue("p2", stateWithDuration(5))
	w.Enqueue("p1", stateWithDuration(2))
	w.Enqueue("p1", stateWithDuration(3))

	if w.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", w.Pending())
	}
	w.Flush(context.Background())

	if store.count("p1") != 1 || store.count("p2") != 1 {
		t.Fatalf("saves p1=%d p2=%d, want 1 each", store.count("p1"), store.count("p2"))
	}
	if got := store.saves["p1"][0].TotalDuration; got != 3 {
		t.Errorf("saved duration = %v, want latest 3", got)
	}
	if stats := w.Stats(); stats.Saved != 2 || stats.Pending != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestWriter_EnqueueSnapshotsState(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil, DefaultWriterOptions(), testLogger())

	st := stateWithDuration(4)
	w.Enqueue("p1", st)
	st.TotalDuration = 99
	w.Flush(context.Background())

	if got := store.saves["p1"][0].TotalDuration; got != 4 {
		t.Errorf("saved duration = %v, want 4", got)
	}
}

func TestWriter_FailureNotifiesWithoutRetry(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("backend unavailable")
	sink := &noticeSink{}
	w := NewWriter(store, sink, DefaultWriterOptions(), testLogger())

	w.Enqueue("p1", stateWithDuration(1))
	w.Flush(context.Background())
	w.Flush(context.Background())

	if store.count("p1") != 1 {
		t.Errorf("saves = %d, want exactly one attempt", store.count("p1"))
	}
	notices := sink.all()
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if notices[0].ProjectID != "p1" || notices[0].Kind != NoticePersistence {
		t.Errorf("notice = %+v", notices[0])
	}
	if w.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", w.Stats().Failed)
	}
}

func TestWriter_StartWritesInBackground(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil, WriterOptions{WritesPerSecond: 100, Burst: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	w.Enqueue("p1", stateWithDuration(1))
	select {
	case id := <-store.called:
		if id != "p1" {
			t.Errorf("saved %q, want p1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not written")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}
	if w.IsRunning() {
		t.Error("IsRunning() should be false after stop")
	}
}

func TestFanout(t *testing.T) {
	ok := newFakeStore()
	bad := newFakeStore()
	bad.err = errors.New("remote down")

	err := Fanout{ok, bad}.SaveSnapshot(context.Background(), "p1", stateWithDuration(1))
	if err == nil || !errors.Is(err, bad.err) {
		t.Errorf("err = %v, want joined remote error", err)
	}
	if ok.count("p1") != 1 {
		t.Error("healthy store should still be written")
	}
}
