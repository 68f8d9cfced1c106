package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

type change struct {
	path  string
	event EventType
}

func startWatcher(t *testing.T, root string) (*Watcher, chan change) {
	t.Helper()
	w := New(20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	changes := make(chan change, 16)
	w.OnChange(func(path string, event EventType) {
		changes <- change{path, event}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Watch() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return w, changes
}

// waitFor repeats action until a change for path arrives, optionally of one
// of the given kinds.
func waitFor(t *testing.T, changes chan change, path string, action func(), kinds ...EventType) change {
	t.Helper()
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	action()
	for {
		select {
		case c := <-changes:
			if c.path == path && (len(kinds) == 0 || slices.Contains(kinds, c.event)) {
				return c
			}
		case <-tick.C:
			action()
		case <-deadline:
			t.Fatalf("no change reported for %s", path)
		}
	}
}

func TestWatcher_ReportsFileChanges(t *testing.T) {
	root := t.TempDir()
	_, changes := startWatcher(t, root)

	path := filepath.Join(root, "city.mp4")
	c := waitFor(t, changes, path, func() {
		os.WriteFile(path, []byte("frames"), 0644)
	})
	if c.event != EventCreate && c.event != EventModify {
		t.Errorf("event = %v, want create or modify", c.event)
	}

	waitFor(t, changes, path, func() { os.Remove(path) }, EventDelete)
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, changes := startWatcher(t, root)

	sub := filepath.Join(root, "renders")
	path := filepath.Join(sub, "scene1.mp4")
	waitFor(t, changes, path, func() {
		os.MkdirAll(sub, 0755)
		os.WriteFile(path, []byte("frames"), 0644)
	})
}

func TestWatcher_Debounces(t *testing.T) {
	w := New(30*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	changes := make(chan change, 16)
	w.OnChange(func(path string, event EventType) {
		changes <- change{path, event}
	})

	w.schedule("a.mp4", EventCreate)
	w.schedule("a.mp4", EventModify)
	w.schedule("a.mp4", EventModify)

	select {
	case c := <-changes:
		if c.event != EventCreate {
			t.Errorf("event = %v, want create", c.event)
		}
	case <-time.After(time.Second):
		t.Fatal("no change reported")
	}
	select {
	case c := <-changes:
		t.Errorf("unexpected extra change %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventTypeString(t *testing.T) {
	for ev, want := range map[EventType]string{EventCreate: "create", EventModify: "modify", EventDelete: "delete", 9: "unknown"} {
		if got := ev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", ev, got, want)
		}
	}
}
