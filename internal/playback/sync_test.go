package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type fakeHandle struct {
	local       float64
	paused      bool
	volume      float64
	err         error
	panicOnPlay bool
	seeks       int
	closed      bool
}

func newFakeHandle() *fakeHandle { return &fakeHandle{paused: true, volume: 1} }

func (h *fakeHandle) LocalTime() float64 { return h.local }
func (h *fakeHandle) Seek(t float64)     { h.local = t; h.seeks++ }
func (h *fakeHandle) Play() {
	if h.panicOnPlay {
		panic("decoder crashed")
	}
	h.paused = false
}
func (h *fakeHandle) Pause()              { h.paused = true }
func (h *fakeHandle) Paused() bool        { return h.paused }
func (h *fakeHandle) SetVolume(v float64) { h.volume = v }
func (h *fakeHandle) Err() error          { return h.err }
func (h *fakeHandle) Close() error        { h.closed = true; return nil }

type fakeOpener struct {
	handles map[string]*fakeHandle
	failing map[string]error
	opens   map[string]int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		handles: make(map[string]*fakeHandle),
		failing: make(map[string]error),
		opens:   make(map[string]int),
	}
}

func (o *fakeOpener) Open(_ context.Context, clip timeline.Clip) (Handle, error) {
	o.opens[clip.ID]++
	if err, ok := o.failing[clip.URL]; ok {
		return nil, err
	}
	h := newFakeHandle()
	o.handles[clip.ID] = h
	return h, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mediaClip(id string, kind timeline.ClipKind, url string, start, end float64) timeline.Clip {
	return timeline.Clip{ID: id, Kind: kind, URL: url, StartTime: start, EndTime: end, Volume: 1, Opacity: 1}
}

func syncState() *timeline.State {
	s := timeline.NewState()
	s.Tracks = []timeline.Track{
		{ID: "a", Kind: timeline.TrackARoll, Clips: []timeline.Clip{
			mediaClip("v1", timeline.ClipVideo, "v1.mp4", 2, 8),
			mediaClip("v2", timeline.ClipVideo, "v2.mp4", 8, 10),
		}},
		{ID: "vo", Kind: timeline.TrackVoiceover, Clips: []timeline.Clip{
			mediaClip("narration", timeline.ClipAudio, "vo.mp3", 0, 10),
		}},
	}
	s.TotalDuration = 10
	return s
}

func TestReconcile_SeeksActiveHandlesWithinTolerance(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	for _, now := range []float64{0, 2.5, 5, 7.9} {
		sync.Reconcile(ctx, st, now, true)
		if now < 2 {
			continue
		}
		h := opener.handles["v1"]
		if got := math.Abs(h.LocalTime() - (now - 2)); got > DefaultTolerance {
			t.Errorf("now=%v: drift %v exceeds tolerance", now, got)
		}
		if h.Paused() {
			t.Errorf("now=%v: active handle should play", now)
		}
	}
}

func TestReconcile_SmallDriftIsNotCorrected(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	sync.Reconcile(ctx, st, 5, true)
	h := opener.handles["v1"]
	seeks := h.seeks

	h.local = 3.15
	sync.Reconcile(ctx, st, 5, true)
	if h.seeks != seeks {
		t.Error("drift within tolerance must not seek")
	}

	h.local = 4
	sync.Reconcile(ctx, st, 5, true)
	if h.seeks != seeks+1 || h.local != 3 {
		t.Errorf("seeks=%d local=%v, want one more seek to 3", h.seeks, h.local)
	}
}

func TestReconcile_InactiveClipsArePausedNotSeeked(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	sync.Reconcile(ctx, st, 5, true)
	if _, ok := opener.handles["v2"]; ok {
		t.Fatal("inactive clip should not be opened")
	}

	sync.Reconcile(ctx, st, 9, true)
	v2 := opener.handles["v2"]
	v1 := opener.handles["v1"]
	v1Seeks := v1.seeks
	if !v1.Paused() {
		t.Error("v1 left its window and should be paused")
	}

	sync.Reconcile(ctx, st, 9.5, true)
	if v1.seeks != v1Seeks {
		t.Error("inactive handle must not be seeked")
	}

	sync.Reconcile(ctx, st, 9.5, false)
	if !v2.Paused() {
		t.Error("handles pause when the clock is paused")
	}
}

func TestReconcile_FaultedClipDoesNotAffectSiblings(t *testing.T) {
	opener := newFakeOpener()
	opener.failing["broken.mp4"] = errors.New("404 not found")
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	ctx := context.Background()

	st := timeline.NewState()
	st.Tracks = []timeline.Track{
		{ID: "a", Kind: timeline.TrackARoll, Clips: []timeline.Clip{
			mediaClip("bad", timeline.ClipVideo, "broken.mp4", 0, 10),
		}},
		{ID: "vo", Kind: timeline.TrackVoiceover, Clips: []timeline.Clip{
			mediaClip("good", timeline.ClipAudio, "vo.mp3", 0, 10),
		}},
	}
	st.TotalDuration = 10

	var frame Frame
	for _, now := range []float64{1, 1.5, 2} {
		frame = sync.Reconcile(ctx, st, now, true)
	}

	bad, ok := frame.Layer("bad")
	if !ok || !bad.Errored || bad.Diagnostic == "" {
		t.Errorf("bad layer = %+v, want errored placeholder with diagnostic", bad)
	}
	if opener.opens["bad"] != 1 {
		t.Errorf("faulted clip reopened %d times", opener.opens["bad"])
	}

	good, ok := frame.Layer("good")
	if !ok || !good.Audible() {
		t.Errorf("good layer = %+v, want audible", good)
	}
	if h := opener.handles["good"]; h.Paused() || h.volume == 0 {
		t.Errorf("sibling handle paused=%v volume=%v", h.Paused(), h.volume)
	}

	// A new URL clears the fault.
	delete(opener.failing, "broken.mp4")
	st.Tracks[0].Clips[0].URL = "fixed.mp4"
	frame = sync.Reconcile(ctx, st, 2.5, true)
	if l, _ := frame.Layer("bad"); l.Errored || !l.Playing {
		t.Errorf("clip with new URL should play, got %+v", l)
	}
}

func TestReconcile_PanickingHandleIsContained(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	sync.Reconcile(ctx, st, 3, false)
	opener.handles["v1"].panicOnPlay = true

	frame := sync.Reconcile(ctx, st, 3, true)
	if !sync.Errored("v1") {
		t.Fatal("v1 should be marked errored")
	}
	if !opener.handles["v1"].closed {
		t.Error("faulted handle should be closed")
	}
	if l, _ := frame.Layer("narration"); !l.Playing {
		t.Error("narration should keep playing")
	}
	if len(sync.Faults()) != 1 {
		t.Errorf("Faults() = %v", sync.Faults())
	}
}

func TestReconcile_HandleErrorFaults(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	sync.Reconcile(ctx, st, 3, true)
	opener.handles["narration"].err = errors.New("decode error")
	frame := sync.Reconcile(ctx, st, 3.1, true)

	if l, _ := frame.Layer("narration"); !l.Errored {
		t.Errorf("narration = %+v, want errored", l)
	}
	if l, _ := frame.Layer("v1"); l.Errored {
		t.Error("v1 must not be affected")
	}
}

func TestReconcile_RemovedClipClosesHandle(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	ctx := context.Background()

	sync.Reconcile(ctx, st, 3, true)
	next, err := timeline.Apply(st, timeline.RemoveClip{ClipID: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	sync.Reconcile(ctx, next, 3, true)

	if !opener.handles["v1"].closed {
		t.Error("handle of removed clip should be closed")
	}
	if _, ok := sync.Handle("v1"); ok {
		t.Error("removed clip still has a handle")
	}

	sync.Close()
	if sync.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d after Close", sync.OpenHandles())
	}
}

func TestReconcile_PendingClipHasNoHandle(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := timeline.FromScript([]timeline.Scene{{Voiceover: "hi"}}, 5)

	frame := sync.Reconcile(context.Background(), st, 1, true)
	if len(opener.opens) != 0 {
		t.Errorf("placeholders should not be opened: %v", opener.opens)
	}
	for _, l := range frame.Layers {
		if !l.Pending {
			t.Errorf("layer %s should be pending", l.ClipID)
		}
	}
}

func TestReconcile_Ducking(t *testing.T) {
	opener := newFakeOpener()
	sync := NewSynchronizer(opener, DefaultOptions(), testLogger())
	st := syncState()
	st.Tracks = append(st.Tracks, timeline.Track{ID: "m", Kind: timeline.TrackMusic, Clips: []timeline.Clip{
		mediaClip("bed", timeline.ClipAudio, "bed.mp3", 0, 10),
	}})
	st.MusicVolume = 0.8
	st.DuckingEnabled = true

	frame := sync.Reconcile(context.Background(), st, 4, true)
	bed, _ := frame.Layer("bed")
	if math.Abs(bed.Volume-0.2) > 1e-9 {
		t.Errorf("ducked music volume = %v, want 0.2", bed.Volume)
	}
	if opener.handles["bed"].volume != bed.Volume {
		t.Error("handle volume should match layer volume")
	}

	st.DuckingEnabled = false
	frame = sync.Reconcile(context.Background(), st, 4, true)
	if bed, _ = frame.Layer("bed"); math.Abs(bed.Volume-0.8) > 1e-9 {
		t.Errorf("music volume = %v, want 0.8", bed.Volume)
	}
}

func TestVirtualHandle(t *testing.T) {
	now := time.Unix(0, 0)
	h := NewVirtualHandle(func() time.Time { return now })

	h.Seek(2)
	h.Play()
	now = now.Add(1500 * time.Millisecond)
	if got := h.LocalTime(); got != 3.5 {
		t.Errorf("LocalTime() = %v, want 3.5", got)
	}
	h.Pause()
	now = now.Add(time.Second)
	if got := h.LocalTime(); got != 3.5 {
		t.Errorf("paused LocalTime() = %v, want 3.5", got)
	}
	h.Close()
	if h.Err() == nil {
		t.Error("closed handle should report an error")
	}
}
