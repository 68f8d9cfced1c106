package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type Options struct {
	// Tolerance is the drift allowed between a handle and the playhead
	// before the handle is force-seeked.
	Tolerance    float64
	DuckingLevel float64
	LUTs         map[string]string
}

func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance, DuckingLevel: DefaultDuckingLevel, LUTs: DefaultLUTs}
}

// Fault records a clip whose media could not be played. It sticks until the
// clip is removed or its URL changes.
type Fault struct {
	ClipID  string    `json:"clip_id"`
	URL     string    `json:"url"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type slot struct {
	handle Handle
	url    string
}

// Synchronizer keeps one handle per active media clip in step with the
// logical clock and builds the per-frame composite. It is not safe for
// concurrent use.
type Synchronizer struct {
	opener Opener
	opts   Options
	comp   compositor
	logger *slog.Logger

	handles map[string]*slot
	faults  map[string]Fault
}

func NewSynchronizer(opener Opener, opts Options, logger *slog.Logger) *Synchronizer {
	def := DefaultOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.DuckingLevel <= 0 || opts.DuckingLevel > 1 {
		opts.DuckingLevel = def.DuckingLevel
	}
	if opts.LUTs == nil {
		opts.LUTs = def.LUTs
	}
	return &Synchronizer{
		opener:  opener,
		opts:    opts,
		comp:    compositor{duckingLevel: opts.DuckingLevel, luts: opts.LUTs},
		logger:  logger,
		handles: make(map[string]*slot),
		faults:  make(map[string]Fault),
	}
}

// Reconcile runs one pass for playhead time now: handles of active clips are
// sought to within tolerance and set playing or paused, inactive handles are
// paused, and the composite for the frame is returned.
func (s *Synchronizer) Reconcile(ctx context.Context, st *timeline.State, now float64, playing bool) Frame {
	frame := Frame{Time: now, Playing: playing, Duration: st.TotalDuration, Layers: []Layer{}}
	s.prune(st)

	ducked := st.DuckingEnabled && voiceoverActive(st, now)
	for ti := range st.Tracks {
		track := &st.Tracks[ti]
		for ci := range track.Clips {
			clip := &track.Clips[ci]
			if !clip.ActiveAt(now) {
				s.park(clip)
				continue
			}
			layer := s.comp.layer(st, track, clip, now, ducked)
			s.drive(ctx, clip, &layer, now, playing)
			frame.Layers = append(frame.Layers, layer)
		}
	}

	sortLayers(frame.Layers)
	frame.Subtitle = subtitleOverlay(st, now)
	return frame
}

func (s *Synchronizer) drive(ctx context.Context, clip *timeline.Clip, layer *Layer, now float64, playing bool) {
	if !clip.Kind.HasMedia() || layer.Pending {
		return
	}
	if f, ok := s.faults[clip.ID]; ok {
		markErrored(layer, f)
		return
	}

	err := safely(func() error {
		h, err := s.handle(ctx, clip)
		if err != nil {
			return err
		}
		desired := now - clip.StartTime
		if math.Abs(h.LocalTime()-desired) > s.opts.Tolerance {
			h.Seek(desired)
		}
		if playing {
			if h.Paused() {
				h.Play()
			}
		} else if !h.Paused() {
			h.Pause()
		}
		h.SetVolume(layer.Volume)
		if err := h.Err(); err != nil {
			return err
		}
		layer.LocalTime = h.LocalTime()
		layer.Playing = !h.Paused()
		return nil
	})
	if err != nil {
		markErrored(layer, s.fault(clip, err))
	}
}

func (s *Synchronizer) handle(ctx context.Context, clip *timeline.Clip) (Handle, error) {
	if sl, ok := s.handles[clip.ID]; ok {
		return sl.handle, nil
	}
	if s.opener == nil {
		return nil, fmt.Errorf("no media opener configured")
	}
	h, err := s.opener.Open(ctx, *clip)
	if err != nil {
		return nil, err
	}
	s.handles[clip.ID] = &slot{handle: h, url: clip.URL}
	if s.logger != nil {
		s.logger.Debug("media handle opened", "clip_id", clip.ID, "url", clip.URL)
	}
	return h, nil
}

// park pauses the handle of an inactive clip. Its position is left alone.
func (s *Synchronizer) park(clip *timeline.Clip) {
	sl, ok := s.handles[clip.ID]
	if !ok {
		return
	}
	err := safely(func() error {
		if !sl.handle.Paused() {
			sl.handle.Pause()
		}
		return nil
	})
	if err != nil {
		s.fault(clip, err)
	}
}

// prune closes handles and clears faults for clips that were removed or
// pointed at a different URL.
func (s *Synchronizer) prune(st *timeline.State) {
	urls := make(map[string]string)
	for _, track := range st.Tracks {
		for _, c := range track.Clips {
			urls[c.ID] = c.URL
		}
	}
	for id, sl := range s.handles {
		if u, ok := urls[id]; !ok || u != sl.url {
			s.closeHandle(id)
		}
	}
	for id, f := range s.faults {
		if u, ok := urls[id]; !ok || u != f.URL {
			delete(s.faults, id)
		}
	}
}

func (s *Synchronizer) fault(clip *timeline.Clip, err error) Fault {
	s.closeHandle(clip.ID)
	f := Fault{ClipID: clip.ID, URL: clip.URL, Message: fmt.Sprintf("media failed to play: %v", err), At: time.Now()}
	s.faults[clip.ID] = f
	if s.logger != nil {
		s.logger.Warn("clip media faulted", "clip_id", clip.ID, "url", clip.URL, "error", err)
	}
	return f
}

func (s *Synchronizer) closeHandle(id string) {
	sl, ok := s.handles[id]
	if !ok {
		return
	}
	delete(s.handles, id)
	err := safely(sl.handle.Close)
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to close media handle", "clip_id", id, "error", err)
	}
}

// Faults lists the errored clips ordered by clip id.
func (s *Synchronizer) Faults() []Fault {
	out := make([]Fault, 0, len(s.faults))
	for _, f := range s.faults {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClipID < out[j].ClipID })
	return out
}

func (s *Synchronizer) Errored(clipID string) bool {
	_, ok := s.faults[clipID]
	return ok
}

// Handle returns the open handle for clipID, if any.
func (s *Synchronizer) Handle(clipID string) (Handle, bool) {
	sl, ok := s.handles[clipID]
	if !ok {
		return nil, false
	}
	return sl.handle, true
}

func (s *Synchronizer) OpenHandles() int {
	return len(s.handles)
}

// Close releases every handle.
func (s *Synchronizer) Close() {
	for id := range s.handles {
		s.closeHandle(id)
	}
}

func markErrored(layer *Layer, f Fault) {
	layer.Errored = true
	layer.Diagnostic = f.Message
	layer.Volume = 0
	layer.Playing = false
}

// safely runs fn, turning a panic inside a media handle into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("media handle panicked: %v", r)
		}
	}()
	return fn()
}
