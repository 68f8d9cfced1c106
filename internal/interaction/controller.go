// Package interaction turns pointer input over the timeline into ghost
// previews and, on release, a single committed window edit.
package interaction

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

const (
	DefaultSnapTolerance    = 0.2
	DefaultTrackAreaWidthPx = 1000.0
)

var (
	ErrEmptyTimeline = errors.New("timeline has no duration")
	ErrInvalidZone   = errors.New("invalid pointer zone")
)

type Mode int

const (
	Idle Mode = iota
	Dragging
	ResizingStart
	ResizingEnd
	Scrubbing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case ResizingStart:
		return "resizing_start"
	case ResizingEnd:
		return "resizing_end"
	case Scrubbing:
		return "scrubbing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Zone is the part of the timeline a pointer-down landed on.
type Zone int

const (
	ZoneBody Zone = iota
	ZoneStartEdge
	ZoneEndEdge
	ZoneRuler
)

var zoneNames = [...]string{"body", "start_edge", "end_edge", "ruler"}

func (z Zone) String() string {
	if z < 0 || int(z) >= len(zoneNames) {
		return fmt.Sprintf("zone(%d)", int(z))
	}
	return zoneNames[z]
}

func (z *Zone) UnmarshalText(b []byte) error {
	for i, n := range zoneNames {
		if n == string(b) {
			*z = Zone(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidZone, string(b))
}

func (z Zone) mode() Mode {
	switch z {
	case ZoneBody:
		return Dragging
	case ZoneStartEdge:
		return ResizingStart
	case ZoneEndEdge:
		return ResizingEnd
	case ZoneRuler:
		return Scrubbing
	}
	return Idle
}

type Target struct {
	ClipID  string `json:"clip_id,omitempty"`
	TrackID string `json:"track_id,omitempty"`
	Zone    Zone   `json:"zone"`
}

type Settings struct {
	SnapTolerance    float64
	MinDuration      float64
	TrackAreaWidthPx float64
}

func DefaultSettings() Settings {
	return Settings{
		SnapTolerance:    DefaultSnapTolerance,
		MinDuration:      timeline.MinClipDuration,
		TrackAreaWidthPx: DefaultTrackAreaWidthPx,
	}
}

// Capturer attaches the global pointer listeners an interaction needs and
// returns the func that detaches them.
type Capturer interface {
	Capture() (release func(), err error)
}

// CaptureFunc adapts a plain function to Capturer.
type CaptureFunc func() (func(), error)

func (f CaptureFunc) Capture() (func(), error) { return f() }

// Ghost is the uncommitted window of the clip being dragged or resized.
type Ghost struct {
	ClipID  string  `json:"clip_id"`
	TrackID string  `json:"track_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Snapped bool    `json:"snapped"`
}

// Update is the result of one coalesced pointer frame.
type Update struct {
	Mode   Mode     `json:"mode"`
	Ghost  *Ghost   `json:"ghost,omitempty"`
	SeekTo *float64 `json:"seek_to,omitempty"`
}

// Controller is the pointer state machine. It is not safe for concurrent
// use; the owning session serializes access.
type Controller struct {
	settings Settings
	capturer Capturer

	mode    Mode
	target  Target
	release func()

	originX      float64
	initialStart float64
	initialEnd   float64
	total        float64
	pxPerSecond  float64
	snapTargets  []float64

	pendingX   float64
	hasPending bool
	ghost      Ghost
	seek       float64
}

func NewController(settings Settings, capturer Capturer) *Controller {
	def := DefaultSettings()
	if settings.SnapTolerance < 0 {
		settings.SnapTolerance = def.SnapTolerance
	}
	if settings.MinDuration <= 0 {
		settings.MinDuration = def.MinDuration
	}
	if settings.TrackAreaWidthPx <= 0 {
		settings.TrackAreaWidthPx = def.TrackAreaWidthPx
	}
	return &Controller{settings: settings, capturer: capturer}
}

func (c *Controller) Mode() Mode {
	return c.mode
}

func (c *Controller) Active() bool {
	return c.mode != Idle
}

func (c *Controller) Settings() Settings {
	return c.settings
}

// SetTrackAreaWidth changes the pixel width used for pointer-to-time mapping
// of the next interaction.
func (c *Controller) SetTrackAreaWidth(px float64) {
	if px > 0 {
		c.settings.TrackAreaWidthPx = px
	}
}

// Ghost returns the current preview window while dragging or resizing.
func (c *Controller) Ghost() (Ghost, bool) {
	switch c.mode {
	case Dragging, ResizingStart, ResizingEnd:
		return c.ghost, true
	case Idle, Scrubbing:
	}
	return Ghost{}, false
}

// Begin starts an interaction from a pointer-down at x. Any interaction
// still in progress is aborted first. For the ruler zone x is the offset
// into the track area; for clip zones only pointer deltas matter.
func (c *Controller) Begin(s *timeline.State, target Target, x, playhead float64) error {
	c.Abort()

	mode := target.Zone.mode()
	if mode == Idle {
		return fmt.Errorf("%w: %d", ErrInvalidZone, int(target.Zone))
	}
	if s == nil || s.TotalDuration <= 0 {
		return ErrEmptyTimeline
	}

	next := Controller{
		settings:    c.settings,
		capturer:    c.capturer,
		mode:        mode,
		target:      target,
		originX:     x,
		total:       s.TotalDuration,
		pxPerSecond: c.settings.TrackAreaWidthPx / s.TotalDuration,
	}

	if mode != Scrubbing {
		clip, track := s.Clip(target.ClipID)
		if clip == nil {
			return fmt.Errorf("%w: %s", timeline.ErrClipNotFound, target.ClipID)
		}
		next.target.TrackID = track.ID
		next.initialStart = clip.StartTime
		next.initialEnd = clip.EndTime
		next.snapTargets = snapTargets(s, clip.ID, playhead)
		next.ghost = Ghost{ClipID: clip.ID, TrackID: track.ID, Start: clip.StartTime, End: clip.EndTime}
	} else {
		next.pendingX = x
		next.hasPending = true
	}

	if c.capturer != nil {
		release, err := c.capturer.Capture()
		if err != nil {
			if release != nil {
				release()
			}
			return fmt.Errorf("capture pointer: %w", err)
		}
		next.release = release
	}

	*c = next
	return nil
}

// Move records the latest pointer position. Positions are coalesced until
// the next Frame.
func (c *Controller) Move(x float64) {
	if c.mode == Idle {
		return
	}
	c.pendingX = x
	c.hasPending = true
}

// Frame consumes the latest pointer position and returns the preview for
// this render frame. It reports false when nothing moved since the last call.
func (c *Controller) Frame() (u Update, ok bool) {
	if c.mode == Idle || !c.hasPending {
		return Update{Mode: c.mode}, false
	}
	defer func() {
		if r := recover(); r != nil {
			c.Abort()
			panic(r)
		}
	}()

	c.hasPending = false
	c.step(c.pendingX)
	return c.update(), true
}

// End finishes the interaction at x. It returns the commit for a drag or
// resize that changed the clip's window; scrubs and zero-movement gestures
// commit nothing.
func (c *Controller) End(x float64) (timeline.CommitWindow, bool) {
	if c.mode == Idle {
		return timeline.CommitWindow{}, false
	}
	defer c.Abort()

	c.step(x)
	if c.mode == Scrubbing || c.steps(x) == 0 {
		return timeline.CommitWindow{}, false
	}
	if c.ghost.Start == c.initialStart && c.ghost.End == c.initialEnd {
		return timeline.CommitWindow{}, false
	}
	return timeline.CommitWindow{ClipID: c.ghost.ClipID, Start: c.ghost.Start, End: c.ghost.End}, true
}

// Scrub returns the seek time of the last scrub step.
func (c *Controller) Scrub() (float64, bool) {
	return c.seek, c.mode == Scrubbing
}

// Abort discards ghost state and releases pointer capture. It is safe to
// call in any mode.
func (c *Controller) Abort() {
	release := c.release
	*c = Controller{settings: c.settings, capturer: c.capturer}
	if release != nil {
		release()
	}
}

func (c *Controller) update() Update {
	u := Update{Mode: c.mode}
	if c.mode == Scrubbing {
		seek := c.seek
		u.SeekTo = &seek
		return u
	}
	g := c.ghost
	u.Ghost = &g
	return u
}

func (c *Controller) step(x float64) {
	switch c.mode {
	case Scrubbing:
		c.seek = clamp(x/c.pxPerSecond, 0, c.total)
	case Dragging:
		c.ghost.Start, c.ghost.End, c.ghost.Snapped = c.drag(c.steps(x))
	case ResizingStart:
		c.ghost.Start, c.ghost.Snapped = c.resizeStart(c.steps(x))
		c.ghost.End = c.initialEnd
	case ResizingEnd:
		c.ghost.End, c.ghost.Snapped = c.resizeEnd(c.steps(x))
		c.ghost.Start = c.initialStart
	case Idle:
	}
}

// steps converts the pointer offset from the press into whole milliseconds.
// Equal and opposite pointer moves give equal and opposite steps.
func (c *Controller) steps(x float64) int64 {
	return int64(math.Round((x - c.originX) / c.pxPerSecond * 1000))
}

func (c *Controller) drag(ms int64) (start, end float64, snapped bool) {
	if ms == 0 {
		return c.initialStart, c.initialEnd, false
	}
	duration := c.initialEnd - c.initialStart
	maxStart := math.Max(0, c.total-duration)

	start = clamp(shift(c.initialStart, ms), 0, maxStart)
	if t, ok := c.snap(start, 0, maxStart); ok {
		return t, translate(c.initialEnd, c.initialStart, t), true
	}
	end = translate(c.initialEnd, c.initialStart, start)
	if t, ok := c.snap(end, duration, c.total); ok {
		return translate(c.initialStart, c.initialEnd, t), t, true
	}
	return start, end, false
}

func (c *Controller) resizeStart(ms int64) (float64, bool) {
	if ms == 0 {
		return c.initialStart, false
	}
	hi := c.initialEnd - c.settings.MinDuration
	start := clamp(shift(c.initialStart, ms), 0, hi)
	if t, ok := c.snap(start, 0, hi); ok {
		return t, true
	}
	return start, false
}

func (c *Controller) resizeEnd(ms int64) (float64, bool) {
	if ms == 0 {
		return c.initialEnd, false
	}
	lo := c.initialStart + c.settings.MinDuration
	end := clamp(shift(c.initialEnd, ms), lo, math.Max(lo, c.total))
	if t, ok := c.snap(end, lo, math.Max(lo, c.total)); ok {
		return t, true
	}
	return end, false
}

// snap returns the first target within tolerance of edge that also keeps
// the edge inside [lo, hi].
func (c *Controller) snap(edge, lo, hi float64) (float64, bool) {
	for _, t := range c.snapTargets {
		if math.Abs(t-edge) > c.settings.SnapTolerance {
			continue
		}
		if t < lo || t > hi {
			continue
		}
		return t, true
	}
	return 0, false
}

// snapTargets lists every other clip's edges in track and clip order,
// followed by the playhead.
func snapTargets(s *timeline.State, exclude string, playhead float64) []float64 {
	out := make([]float64, 0, 2*len(s.Tracks)+1)
	for _, t := range s.Tracks {
		for _, c := range t.Clips {
			if c.ID == exclude {
				continue
			}
			out = append(out, c.StartTime, c.EndTime)
		}
	}
	return append(out, playhead)
}

// Edge arithmetic runs on the shortest decimal form of each time, so moving
// an edge by +d and then by -d restores it bit for bit.

func decimal(t float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(t, 'g', -1, 64))
	if !ok {
		return new(big.Rat).SetFloat64(t)
	}
	return r
}

// shift moves t by ms milliseconds.
func shift(t float64, ms int64) float64 {
	r := decimal(t)
	r.Add(r, big.NewRat(ms, 1000))
	f, _ := r.Float64()
	return f
}

// translate moves t by the offset that takes from to to.
func translate(t, from, to float64) float64 {
	if from == to {
		return t
	}
	r := decimal(t)
	r.Add(r, decimal(to))
	r.Sub(r, decimal(from))
	f, _ := r.Float64()
	return f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
