// Package timeline holds the canonical in-memory model of an editable video
// timeline: tracks, clips, keyframes, subtitles and the global mix.
//
// Every mutation goes through Apply, which returns a new State and leaves its
// input untouched. The host owns storage and dispatch.
package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	// MinClipDuration is the shortest window a resize may produce.
	MinClipDuration = 0.5
	// DefaultSceneDuration is the length of each placeholder synthesized from a script.
	DefaultSceneDuration = 5.0
	// KeyframeEpsilon is the tolerance used to match an existing keyframe to the playhead.
	KeyframeEpsilon = 0.2
)

var (
	ErrClipNotFound     = errors.New("clip not found")
	ErrTrackNotFound    = errors.New("track not found")
	ErrSubtitleNotFound = errors.New("subtitle not found")
	ErrInvalidWindow    = errors.New("invalid time window")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidState     = errors.New("invalid timeline")
)

type TrackKind string

const (
	TrackARoll     TrackKind = "a-roll"
	TrackBRoll     TrackKind = "b-roll"
	TrackOverlay   TrackKind = "overlay"
	TrackVoiceover TrackKind = "voiceover"
	TrackMusic     TrackKind = "music"
	TrackSFX       TrackKind = "sfx"
	TrackText      TrackKind = "text"
)

// Valid reports whether k is one of the known track kinds.
func (k TrackKind) Valid() bool {
	switch k {
	case TrackARoll, TrackBRoll, TrackOverlay, TrackVoiceover, TrackMusic, TrackSFX, TrackText:
		return true
	}
	return false
}

// IsAudio reports whether the track carries sound only.
func (k TrackKind) IsAudio() bool {
	switch k {
	case TrackVoiceover, TrackMusic, TrackSFX:
		return true
	case TrackARoll, TrackBRoll, TrackOverlay, TrackText:
		return false
	}
	return false
}

func (k *TrackKind) UnmarshalText(b []byte) error {
	v := TrackKind(b)
	if !v.Valid() {
		return fmt.Errorf("%w: track kind %q", ErrInvalidKind, string(b))
	}
	*k = v
	return nil
}

type ClipKind string

const (
	ClipVideo ClipKind = "video"
	ClipImage ClipKind = "image"
	ClipAudio ClipKind = "audio"
	ClipText  ClipKind = "text"
)

func (k ClipKind) Valid() bool {
	switch k {
	case ClipVideo, ClipImage, ClipAudio, ClipText:
		return true
	}
	return false
}

// HasMedia reports whether clips of this kind are backed by a playable stream.
func (k ClipKind) HasMedia() bool {
	switch k {
	case ClipVideo, ClipAudio:
		return true
	case ClipImage, ClipText:
		return false
	}
	return false
}

// IsVisual reports whether clips of this kind draw on the canvas.
func (k ClipKind) IsVisual() bool {
	switch k {
	case ClipVideo, ClipImage, ClipText:
		return true
	case ClipAudio:
		return false
	}
	return false
}

func (k *ClipKind) UnmarshalText(b []byte) error {
	v := ClipKind(b)
	if !v.Valid() {
		return fmt.Errorf("%w: clip kind %q", ErrInvalidKind, string(b))
	}
	*k = v
	return nil
}

type Positioning struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ZIndex   *int    `json:"z_index,omitempty"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

// DefaultPositioning fills the whole canvas at natural scale.
func DefaultPositioning() Positioning {
	return Positioning{Width: 100, Height: 100, Scale: 1}
}

type KenBurns string

const (
	KenBurnsNone    KenBurns = ""
	KenBurnsZoomIn  KenBurns = "zoom-in"
	KenBurnsZoomOut KenBurns = "zoom-out"
	KenBurnsLeft    KenBurns = "pan-left"
	KenBurnsRight   KenBurns = "pan-right"
	KenBurnsUp      KenBurns = "pan-up"
	KenBurnsDown    KenBurns = "pan-down"
)

type Effects struct {
	KenBurns KenBurns `json:"ken_burns,omitempty"`
}

// ColorGrade is a named LUT plus adjustment sliders, each in -100..100.
type ColorGrade struct {
	LUT         string  `json:"lut,omitempty"`
	Exposure    float64 `json:"exposure"`
	Contrast    float64 `json:"contrast"`
	Saturation  float64 `json:"saturation"`
	Temperature float64 `json:"temperature"`
}

type AudioSettings struct {
	Enhance     bool   `json:"enhance"`
	VoicePreset string `json:"voice_preset,omitempty"`
}

type Clip struct {
	ID             string         `json:"id"`
	Kind           ClipKind       `json:"kind"`
	URL            string         `json:"url"`
	Text           string         `json:"text,omitempty"`
	SceneIndex     int            `json:"scene_index"`
	StartTime      float64        `json:"start_time"`
	EndTime        float64        `json:"end_time"`
	SourceDuration float64        `json:"source_duration"`
	Volume         float64        `json:"volume"`
	Opacity        float64        `json:"opacity"`
	Positioning    *Positioning   `json:"positioning,omitempty"`
	Style          *TextStyle     `json:"style,omitempty"`
	Effects        *Effects       `json:"effects,omitempty"`
	Color          *ColorGrade    `json:"color,omitempty"`
	Audio          *AudioSettings `json:"audio,omitempty"`
	Keyframes      KeyframeSet    `json:"keyframes"`
}

func (c *Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// ActiveAt reports whether t falls inside the half-open window [start, end).
func (c *Clip) ActiveAt(t float64) bool {
	return t >= c.StartTime && t < c.EndTime
}

// StaticValue returns the clip's non-animated value for p, used as the
// interpolation default when p has no keyframes.
func (c *Clip) StaticValue(p Property) float64 {
	pos := DefaultPositioning()
	if c.Positioning != nil {
		pos = *c.Positioning
	}
	switch p {
	case PropX:
		return pos.X
	case PropY:
		return pos.Y
	case PropScale:
		return pos.Scale
	case PropRotation:
		return pos.Rotation
	case PropOpacity:
		return c.Opacity
	case PropVolume:
		return c.Volume
	}
	return 0
}

// ValueAt evaluates property p at global time t.
func (c *Clip) ValueAt(p Property, t float64) float64 {
	return Interpolate(c.Keyframes.Get(p), t, c.StaticValue(p))
}

type Track struct {
	ID    string    `json:"id"`
	Kind  TrackKind `json:"kind"`
	Clips []Clip    `json:"clips"`
}

type Word struct {
	Text  string     `json:"text"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Style *TextStyle `json:"style,omitempty"`
}

type Subtitle struct {
	ID    string    `json:"id"`
	Text  string    `json:"text"`
	Start float64   `json:"start"`
	End   float64   `json:"end"`
	Words []Word    `json:"words,omitempty"`
	Style TextStyle `json:"style"`
}

func (s *Subtitle) ActiveAt(t float64) bool {
	return t >= s.Start && t < s.End
}

// State is the aggregate root of a timeline.
type State struct {
	Tracks          []Track    `json:"tracks"`
	Subtitles       []Subtitle `json:"subtitles"`
	VoiceoverVolume float64    `json:"voiceover_volume"`
	MusicVolume     float64    `json:"music_volume"`
	DuckingEnabled  bool       `json:"is_ducking_enabled"`
	TotalDuration   float64    `json:"total_duration"`
}

// NewState returns an empty timeline with full-volume mix settings.
func NewState() *State {
	return &State{
		Tracks:          []Track{},
		Subtitles:       []Subtitle{},
		VoiceoverVolume: 1,
		MusicVolume:     1,
	}
}

func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := *s
	out.Tracks = make([]Track, len(s.Tracks))
	for i, t := range s.Tracks {
		out.Tracks[i] = t
		out.Tracks[i].Clips = make([]Clip, len(t.Clips))
		for j := range t.Clips {
			out.Tracks[i].Clips[j] = t.Clips[j].clone()
		}
	}
	out.Subtitles = make([]Subtitle, len(s.Subtitles))
	for i := range s.Subtitles {
		out.Subtitles[i] = s.Subtitles[i].clone()
	}
	return &out
}

func (c Clip) clone() Clip {
	if c.Positioning != nil {
		p := *c.Positioning
		if p.ZIndex != nil {
			z := *p.ZIndex
			p.ZIndex = &z
		}
		c.Positioning = &p
	}
	if c.Style != nil {
		st := c.Style.clone()
		c.Style = &st
	}
	if c.Effects != nil {
		e := *c.Effects
		c.Effects = &e
	}
	if c.Color != nil {
		cg := *c.Color
		c.Color = &cg
	}
	if c.Audio != nil {
		a := *c.Audio
		c.Audio = &a
	}
	c.Keyframes = c.Keyframes.clone()
	return c
}

func (s Subtitle) clone() Subtitle {
	s.Style = s.Style.clone()
	if s.Words != nil {
		words := make([]Word, len(s.Words))
		for i, w := range s.Words {
			if w.Style != nil {
				st := w.Style.clone()
				w.Style = &st
			}
			words[i] = w
		}
		s.Words = words
	}
	return s
}

// FindTrack returns the index of the track with the given id, or -1.
func (s *State) FindTrack(id string) int {
	for i := range s.Tracks {
		if s.Tracks[i].ID == id {
			return i
		}
	}
	return -1
}

// FindClip returns the track and clip indices of the clip with the given id.
func (s *State) FindClip(id string) (int, int, bool) {
	for ti := range s.Tracks {
		for ci := range s.Tracks[ti].Clips {
			if s.Tracks[ti].Clips[ci].ID == id {
				return ti, ci, true
			}
		}
	}
	return -1, -1, false
}

// Clip returns a pointer into s for the clip with the given id.
func (s *State) Clip(id string) (*Clip, *Track) {
	ti, ci, ok := s.FindClip(id)
	if !ok {
		return nil, nil
	}
	return &s.Tracks[ti].Clips[ci], &s.Tracks[ti]
}

func (s *State) FindSubtitle(id string) int {
	for i := range s.Subtitles {
		if s.Subtitles[i].ID == id {
			return i
		}
	}
	return -1
}

// MaxEnd returns the largest clip end time, or 0 for an empty timeline.
func (s *State) MaxEnd() float64 {
	end := 0.0
	for _, t := range s.Tracks {
		for _, c := range t.Clips {
			end = math.Max(end, c.EndTime)
		}
	}
	return end
}

func (s *State) clipCount() int {
	n := 0
	for _, t := range s.Tracks {
		n += len(t.Clips)
	}
	return n
}

// ActiveSubtitle returns the first subtitle in array order whose window
// contains t. Overlaps are not resolved beyond that.
func (s *State) ActiveSubtitle(t float64) *Subtitle {
	for i := range s.Subtitles {
		if s.Subtitles[i].ActiveAt(t) {
			return &s.Subtitles[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of a loaded or edited timeline.
func (s *State) Validate() error {
	seen := make(map[string]bool)
	for _, t := range s.Tracks {
		if !t.Kind.Valid() {
			return fmt.Errorf("track %s: %w: %q", t.ID, ErrInvalidKind, t.Kind)
		}
		for _, c := range t.Clips {
			if seen[c.ID] {
				return fmt.Errorf("duplicate clip id %s", c.ID)
			}
			seen[c.ID] = true
			if !c.Kind.Valid() {
				return fmt.Errorf("clip %s: %w: %q", c.ID, ErrInvalidKind, c.Kind)
			}
			if !(c.StartTime < c.EndTime) || c.StartTime < 0 {
				return fmt.Errorf("clip %s: %w: [%g, %g)", c.ID, ErrInvalidWindow, c.StartTime, c.EndTime)
			}
			if c.Volume < 0 || c.Volume > 1 {
				return fmt.Errorf("clip %s: volume %g out of range", c.ID, c.Volume)
			}
			if c.Opacity < 0 || c.Opacity > 1 {
				return fmt.Errorf("clip %s: opacity %g out of range", c.ID, c.Opacity)
			}
			for _, p := range Properties {
				if !keyframesOrdered(c.Keyframes.Get(p)) {
					return fmt.Errorf("clip %s: keyframes for %s not strictly ordered", c.ID, p)
				}
			}
		}
	}
	for _, sub := range s.Subtitles {
		if !(sub.Start < sub.End) {
			return fmt.Errorf("subtitle %s: %w: [%g, %g)", sub.ID, ErrInvalidWindow, sub.Start, sub.End)
		}
	}
	return nil
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
