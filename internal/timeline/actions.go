package timeline

import (
	"fmt"
	"math"
)

// Action is a committed edit. The set of actions is closed to this package.
type Action interface {
	apply(s *State) error
}

// Apply returns the state produced by applying a to s. s is never modified;
// on error the returned state is nil.
func Apply(s *State, a Action) (*State, error) {
	if s == nil {
		s = NewState()
	}
	next := s.Clone()
	if err := a.apply(next); err != nil {
		return nil, err
	}
	if _, verbatim := a.(ReplaceState); !verbatim && next.clipCount() > 0 {
		next.TotalDuration = next.MaxEnd()
	}
	return next, nil
}

// CommitWindow writes a finished drag or resize into a clip.
type CommitWindow struct {
	ClipID string
	Start  float64
	End    float64
}

func (a CommitWindow) apply(s *State) error {
	c, _ := s.Clip(a.ClipID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, a.ClipID)
	}
	if a.Start < 0 || !(a.Start < a.End) {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidWindow, a.Start, a.End)
	}
	c.StartTime, c.EndTime = minWindow(a.Start, a.End, false)
	return nil
}

// minWindow widens a non-empty window shorter than MinClipDuration. The
// start edge moves back when it alone was edited and there is room;
// otherwise the end edge moves out.
func minWindow(start, end float64, startEdited bool) (float64, float64) {
	if end-start >= MinClipDuration {
		return start, end
	}
	if startEdited && end-MinClipDuration >= 0 {
		return end - MinClipDuration, end
	}
	return start, start + MinClipDuration
}

// ClipPatch carries any subset of a clip's editable fields.
type ClipPatch struct {
	Kind           *ClipKind      `json:"kind,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Text           *string        `json:"text,omitempty"`
	SceneIndex     *int           `json:"scene_index,omitempty"`
	StartTime      *float64       `json:"start_time,omitempty"`
	EndTime        *float64       `json:"end_time,omitempty"`
	SourceDuration *float64       `json:"source_duration,omitempty"`
	Volume         *float64       `json:"volume,omitempty"`
	Opacity        *float64       `json:"opacity,omitempty"`
	Positioning    *Positioning   `json:"positioning,omitempty"`
	Style          *TextStyle     `json:"style,omitempty"`
	Effects        *Effects       `json:"effects,omitempty"`
	Color          *ColorGrade    `json:"color,omitempty"`
	Audio          *AudioSettings `json:"audio,omitempty"`
	Keyframes      *KeyframeSet   `json:"keyframes,omitempty"`
}

type UpdateClip struct {
	ClipID string
	Patch  ClipPatch
}

func (a UpdateClip) apply(s *State) error {
	c, _ := s.Clip(a.ClipID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, a.ClipID)
	}
	p := a.Patch

	if p.Kind != nil {
		if !p.Kind.Valid() {
			return fmt.Errorf("%w: clip kind %q", ErrInvalidKind, *p.Kind)
		}
		c.Kind = *p.Kind
	}
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.Text != nil {
		c.Text = *p.Text
	}
	if p.SceneIndex != nil {
		c.SceneIndex = *p.SceneIndex
	}

	start, end := c.StartTime, c.EndTime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	if p.EndTime != nil {
		end = *p.EndTime
	}
	if start < 0 || !(start < end) {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidWindow, start, end)
	}
	c.StartTime, c.EndTime = minWindow(start, end, p.StartTime != nil && p.EndTime == nil)

	if p.SourceDuration != nil {
		c.SourceDuration = math.Max(0, *p.SourceDuration)
	}
	if p.Volume != nil {
		c.Volume = clamp(*p.Volume, 0, 1)
	}
	if p.Opacity != nil {
		c.Opacity = clamp(*p.Opacity, 0, 1)
	}
	if p.Positioning != nil {
		pos := *p.Positioning
		c.Positioning = &pos
	}
	if p.Style != nil {
		st := p.Style.clone()
		c.Style = &st
	}
	if p.Effects != nil {
		e := *p.Effects
		c.Effects = &e
	}
	if p.Color != nil {
		cg := clampGrade(*p.Color)
		c.Color = &cg
	}
	if p.Audio != nil {
		au := *p.Audio
		c.Audio = &au
	}
	if p.Keyframes != nil {
		for _, prop := range Properties {
			c.Keyframes.Set(prop, p.Keyframes.Get(prop))
		}
	}
	return nil
}

func clampGrade(g ColorGrade) ColorGrade {
	g.Exposure = clamp(g.Exposure, -100, 100)
	g.Contrast = clamp(g.Contrast, -100, 100)
	g.Saturation = clamp(g.Saturation, -100, 100)
	g.Temperature = clamp(g.Temperature, -100, 100)
	return g
}

type SubtitlePatch struct {
	Text  *string    `json:"text,omitempty"`
	Start *float64   `json:"start,omitempty"`
	End   *float64   `json:"end,omitempty"`
	Words *[]Word    `json:"words,omitempty"`
	Style *TextStyle `json:"style,omitempty"`
}

type UpdateSubtitle struct {
	SubtitleID string
	Patch      SubtitlePatch
}

func (a UpdateSubtitle) apply(s *State) error {
	i := s.FindSubtitle(a.SubtitleID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSubtitleNotFound, a.SubtitleID)
	}
	sub := &s.Subtitles[i]
	p := a.Patch

	start, end := sub.Start, sub.End
	if p.Start != nil {
		start = *p.Start
	}
	if p.End != nil {
		end = *p.End
	}
	if start < 0 || !(start < end) {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidWindow, start, end)
	}
	sub.Start, sub.End = start, end

	if p.Text != nil {
		sub.Text = *p.Text
	}
	if p.Words != nil {
		sub.Words = Subtitle{Words: *p.Words}.clone().Words
	}
	if p.Style != nil {
		sub.Style = p.Style.clone()
	}
	return nil
}

// ToggleKeyframeAt adds or removes a keyframe for Property at Time. An added
// keyframe captures the property's current interpolated value.
type ToggleKeyframeAt struct {
	ClipID   string
	Property Property
	Time     float64
}

func (a ToggleKeyframeAt) apply(s *State) error {
	c, _ := s.Clip(a.ClipID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrClipNotFound, a.ClipID)
	}
	if c.Keyframes.slot(a.Property) == nil {
		return fmt.Errorf("unknown animatable property %d", int(a.Property))
	}
	value := c.ValueAt(a.Property, a.Time)
	c.Keyframes.Set(a.Property, ToggleKeyframe(c.Keyframes.Get(a.Property), a.Time, value, KeyframeEpsilon))
	return nil
}

// Asset is a resolved output of the asset-generation collaborator.
type Asset struct {
	ClipID     string   `json:"clip_id,omitempty"`
	URL        string   `json:"url"`
	Kind       ClipKind `json:"media_kind"`
	Duration   float64  `json:"duration"`
	TrackID    string   `json:"track_id"`
	StartTime  float64  `json:"start_time"`
	SceneIndex *int     `json:"scene_index,omitempty"`
}

// InsertAsset fills the placeholder for Asset.SceneIndex on the target track,
// keeping its window, or appends a new clip when there is no placeholder.
type InsertAsset struct {
	Asset Asset
}

func (a InsertAsset) apply(s *State) error {
	as := a.Asset
	if !as.Kind.Valid() {
		return fmt.Errorf("%w: clip kind %q", ErrInvalidKind, as.Kind)
	}
	ti := s.FindTrack(as.TrackID)
	if ti < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, as.TrackID)
	}
	track := &s.Tracks[ti]

	if as.SceneIndex != nil {
		for ci := range track.Clips {
			c := &track.Clips[ci]
			if c.SceneIndex != *as.SceneIndex {
				continue
			}
			c.URL = as.URL
			c.Kind = as.Kind
			if as.Duration > 0 {
				c.SourceDuration = as.Duration
			}
			return nil
		}
	}

	duration := as.Duration
	if duration <= 0 {
		duration = DefaultSceneDuration
	}
	start := math.Max(0, as.StartTime)
	id := as.ClipID
	if id == "" {
		id = NewID()
	}
	sceneIndex := -1
	if as.SceneIndex != nil {
		sceneIndex = *as.SceneIndex
	}
	clip := Clip{
		ID:             id,
		Kind:           as.Kind,
		URL:            as.URL,
		SceneIndex:     sceneIndex,
		StartTime:      start,
		EndTime:        start + duration,
		SourceDuration: duration,
		Volume:         1,
		Opacity:        1,
	}
	if as.Kind.IsVisual() {
		pos := DefaultPositioning()
		clip.Positioning = &pos
	}
	track.Clips = append(track.Clips, clip)
	return nil
}

type RemoveClip struct {
	ClipID string
}

func (a RemoveClip) apply(s *State) error {
	ti, ci, ok := s.FindClip(a.ClipID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrClipNotFound, a.ClipID)
	}
	clips := s.Tracks[ti].Clips
	s.Tracks[ti].Clips = append(clips[:ci:ci], clips[ci+1:]...)
	return nil
}

type AddSubtitle struct {
	Subtitle Subtitle
}

func (a AddSubtitle) apply(s *State) error {
	sub := a.Subtitle.clone()
	if sub.Start < 0 || !(sub.Start < sub.End) {
		return fmt.Errorf("%w: [%g, %g)", ErrInvalidWindow, sub.Start, sub.End)
	}
	if sub.ID == "" {
		sub.ID = NewID()
	}
	s.Subtitles = append(s.Subtitles, sub)
	if sub.End > s.TotalDuration && s.clipCount() == 0 {
		s.TotalDuration = sub.End
	}
	return nil
}

type RemoveSubtitle struct {
	SubtitleID string
}

func (a RemoveSubtitle) apply(s *State) error {
	i := s.FindSubtitle(a.SubtitleID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSubtitleNotFound, a.SubtitleID)
	}
	s.Subtitles = append(s.Subtitles[:i:i], s.Subtitles[i+1:]...)
	return nil
}

// SetMix updates the global mix. Nil fields are left unchanged.
type SetMix struct {
	VoiceoverVolume *float64 `json:"voiceover_volume,omitempty"`
	MusicVolume     *float64 `json:"music_volume,omitempty"`
	DuckingEnabled  *bool    `json:"is_ducking_enabled,omitempty"`
}

func (a SetMix) apply(s *State) error {
	if a.VoiceoverVolume != nil {
		s.VoiceoverVolume = clamp(*a.VoiceoverVolume, 0, 1)
	}
	if a.MusicVolume != nil {
		s.MusicVolume = clamp(*a.MusicVolume, 0, 1)
	}
	if a.DuckingEnabled != nil {
		s.DuckingEnabled = *a.DuckingEnabled
	}
	return nil
}

// ReplaceState swaps in a whole timeline, as loaded from storage.
type ReplaceState struct {
	State *State
}

func (a ReplaceState) apply(s *State) error {
	if a.State == nil {
		return fmt.Errorf("replace: nil state")
	}
	next := a.State.Clone()
	for ti := range next.Tracks {
		for ci := range next.Tracks[ti].Clips {
			c := &next.Tracks[ti].Clips[ci]
			for _, p := range Properties {
				c.Keyframes.Set(p, c.Keyframes.Get(p))
			}
		}
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	next.TotalDuration = max(next.TotalDuration, next.MaxEnd())
	*s = *next
	return nil
}
