package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heimdex/heimdex-studio/internal/media"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

// Handle is one media player with its own internal clock, positioned in the
// clip's local time.
type Handle interface {
	LocalTime() float64
	Seek(t float64)
	Play()
	Pause()
	Paused() bool
	SetVolume(v float64)
	Err() error
	Close() error
}

// Opener creates the handle for a media-backed clip. An error marks the clip
// as faulted.
type Opener interface {
	Open(ctx context.Context, clip timeline.Clip) (Handle, error)
}

// VirtualHandle is a wall-clock driven player used when no real decoder is
// attached.
type VirtualHandle struct {
	mu        sync.Mutex
	now       func() time.Time
	position  float64
	startedAt time.Time
	playing   bool
	volume    float64
	closed    bool
}

func NewVirtualHandle(now func() time.Time) *VirtualHandle {
	if now == nil {
		now = time.Now
	}
	return &VirtualHandle{now: now, volume: 1}
}

func (h *VirtualHandle) LocalTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.localTime()
}

func (h *VirtualHandle) localTime() float64 {
	if !h.playing {
		return h.position
	}
	return h.position + h.now().Sub(h.startedAt).Seconds()
}

func (h *VirtualHandle) Seek(t float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = t
	h.startedAt = h.now()
}

func (h *VirtualHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playing || h.closed {
		return
	}
	h.startedAt = h.now()
	h.playing = true
}

func (h *VirtualHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.playing {
		return
	}
	h.position = h.localTime()
	h.playing = false
}

func (h *VirtualHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.playing
}

func (h *VirtualHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
}

func (h *VirtualHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *VirtualHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle closed")
	}
	return nil
}

func (h *VirtualHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.playing = false
	h.mu.Unlock()
	return nil
}

// ProbingOpener verifies the clip's media with a prober and then hands out a
// VirtualHandle.
type ProbingOpener struct {
	prober  media.Prober
	timeout time.Duration
	now     func() time.Time
}

func NewProbingOpener(prober media.Prober, timeout time.Duration) *ProbingOpener {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProbingOpener{prober: prober, timeout: timeout, now: time.Now}
}

func (o *ProbingOpener) Open(ctx context.Context, clip timeline.Clip) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := o.prober.Probe(ctx, clip.URL)
	if err != nil {
		return nil, fmt.Errorf("media unavailable: %w", err)
	}
	if res.Kind != "" && !res.Kind.HasMedia() {
		return nil, fmt.Errorf("cannot play %s as %s", res.Kind, clip.Kind)
	}
	return NewVirtualHandle(o.now), nil
}
