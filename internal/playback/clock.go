package playback

import "math"

// Clock is the single logical playhead shared by every track.
type Clock struct {
	current float64
	playing bool
	loop    bool
	seeked  bool
}

// NewClock returns a paused clock at 0. With loop set, reaching the end of
// the timeline wraps to 0; otherwise the clock pauses at the end.
func NewClock(loop bool) *Clock {
	return &Clock{loop: loop}
}

func (c *Clock) Time() float64 { return c.current }

func (c *Clock) Playing() bool { return c.playing }

func (c *Clock) Loop() bool { return c.loop }

func (c *Clock) SetLoop(loop bool) { c.loop = loop }

func (c *Clock) Play() { c.playing = true }

func (c *Clock) Pause() { c.playing = false }

func (c *Clock) Toggle() { c.playing = !c.playing }

// Seek moves the playhead. The next Advance keeps the sought position for
// that frame instead of moving past it.
func (c *Clock) Seek(t float64) {
	c.current = math.Max(0, t)
	c.seeked = true
}

// Advance moves the playhead by dt seconds while playing and handles the end
// of a timeline of length total. It returns the new time.
func (c *Clock) Advance(dt, total float64) float64 {
	if total <= 0 {
		c.current = 0
		c.seeked = false
		return c.current
	}
	if c.seeked {
		c.seeked = false
		c.current = math.Min(c.current, total)
		return c.current
	}
	if !c.playing || dt <= 0 {
		c.current = math.Min(c.current, total)
		return c.current
	}

	c.current += dt
	if c.current >= total {
		if c.loop {
			c.current = 0
		} else {
			c.current = total
			c.playing = false
		}
	}
	return c.current
}
