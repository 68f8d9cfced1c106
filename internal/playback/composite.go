package playback

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

const (
	DefaultTolerance    = 0.2
	DefaultDuckingLevel = 0.25

	defaultZIndex = 1
	overlayZIndex = 10

	kenBurnsZoom = 0.2
	kenBurnsPan  = 10.0
)

// DefaultLUTs maps LUT preset names to their base filter stack.
var DefaultLUTs = map[string]string{
	"cinematic":   "contrast(1.1) saturate(0.9)",
	"teal-orange": "sepia(0.2) hue-rotate(-10deg) saturate(1.2)",
	"noir":        "grayscale(1) contrast(1.2)",
	"vintage":     "sepia(0.4) contrast(0.9) brightness(1.05)",
	"warm":        "sepia(0.25) saturate(1.1)",
	"cool":        "hue-rotate(15deg) saturate(0.9)",
}

type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Opacity  float64 `json:"opacity"`
}

// Motion is the Ken-Burns move of a still or video layer.
type Motion struct {
	Direction timeline.KenBurns `json:"direction"`
	Progress  float64           `json:"progress"`
}

// Layer is one active clip as it should be drawn and heard this frame.
type Layer struct {
	ClipID     string              `json:"clip_id"`
	TrackID    string              `json:"track_id"`
	TrackKind  timeline.TrackKind  `json:"track_kind"`
	Kind       timeline.ClipKind   `json:"kind"`
	URL        string              `json:"url,omitempty"`
	Text       string              `json:"text,omitempty"`
	Style      *timeline.TextStyle `json:"style,omitempty"`
	Visual     bool                `json:"visual"`
	LocalTime  float64             `json:"local_time"`
	Transform  Transform           `json:"transform"`
	ZIndex     int                 `json:"z_index"`
	Filter     string              `json:"filter,omitempty"`
	Motion     *Motion             `json:"motion,omitempty"`
	Volume     float64             `json:"volume"`
	Playing    bool                `json:"playing"`
	Pending    bool                `json:"pending,omitempty"`
	Errored    bool                `json:"errored,omitempty"`
	Diagnostic string              `json:"diagnostic,omitempty"`
}

// Audible reports whether the layer contributes sound this frame.
func (l Layer) Audible() bool {
	return l.Playing && l.Volume > 0 && !l.Errored
}

type WordRun struct {
	Text   string             `json:"text"`
	Start  float64            `json:"start"`
	End    float64            `json:"end"`
	Active bool               `json:"active"`
	Style  timeline.TextStyle `json:"style"`
}

type SubtitleOverlay struct {
	ID    string             `json:"id"`
	Text  string             `json:"text"`
	Style timeline.TextStyle `json:"style"`
	Words []WordRun          `json:"words,omitempty"`
}

// Frame is the composite of one reconciliation pass.
type Frame struct {
	Time     float64          `json:"time"`
	Playing  bool             `json:"playing"`
	Duration float64          `json:"duration"`
	Layers   []Layer          `json:"layers"`
	Subtitle *SubtitleOverlay `json:"subtitle,omitempty"`
}

// Layer returns the layer for clipID, if it is active in the frame.
func (f *Frame) Layer(clipID string) (Layer, bool) {
	for _, l := range f.Layers {
		if l.ClipID == clipID {
			return l, true
		}
	}
	return Layer{}, false
}

type compositor struct {
	duckingLevel float64
	luts         map[string]string
}

func (c compositor) layer(st *timeline.State, track *timeline.Track, clip *timeline.Clip, t float64, ducked bool) Layer {
	l := Layer{
		ClipID:    clip.ID,
		TrackID:   track.ID,
		TrackKind: track.Kind,
		Kind:      clip.Kind,
		URL:       clip.URL,
		Text:      clip.Text,
		Visual:    clip.Kind.IsVisual() && !track.Kind.IsAudio(),
		LocalTime: t - clip.StartTime,
		ZIndex:    zIndex(track, clip),
	}

	switch clip.Kind {
	case timeline.ClipText:
		style := timeline.DefaultSubtitleStyle()
		if clip.Style != nil {
			style = style.Merge(clip.Style)
		}
		l.Style = &style
	case timeline.ClipVideo, timeline.ClipImage, timeline.ClipAudio:
		l.Pending = clip.URL == ""
	}

	if l.Visual {
		l.Transform = transformAt(clip, t)
		if clip.Color != nil {
			l.Filter = FilterStack(*clip.Color, c.luts)
		}
		if clip.Effects != nil && clip.Effects.KenBurns != timeline.KenBurnsNone {
			l.Motion = applyKenBurns(&l.Transform, clip.Effects.KenBurns, progress(clip, t))
		}
	}
	if clip.Kind.HasMedia() && !l.Pending {
		l.Volume = c.volume(st, track.Kind, clip, t, ducked)
	}
	return l
}

func transformAt(clip *timeline.Clip, t float64) Transform {
	pos := timeline.DefaultPositioning()
	if clip.Positioning != nil {
		pos = *clip.Positioning
	}
	return Transform{
		X:        clip.ValueAt(timeline.PropX, t),
		Y:        clip.ValueAt(timeline.PropY, t),
		Width:    pos.Width,
		Height:   pos.Height,
		Scale:    clip.ValueAt(timeline.PropScale, t),
		Rotation: clip.ValueAt(timeline.PropRotation, t),
		Opacity:  clamp01(clip.ValueAt(timeline.PropOpacity, t)),
	}
}

// volume is the clip's animated volume scaled by its track's mix level and,
// for music and sfx under an active voiceover, the ducking level.
func (c compositor) volume(st *timeline.State, kind timeline.TrackKind, clip *timeline.Clip, t float64, ducked bool) float64 {
	v := clamp01(clip.ValueAt(timeline.PropVolume, t))
	switch kind {
	case timeline.TrackVoiceover:
		v *= st.VoiceoverVolume
	case timeline.TrackMusic:
		v *= st.MusicVolume
		if ducked {
			v *= c.duckingLevel
		}
	case timeline.TrackSFX:
		if ducked {
			v *= c.duckingLevel
		}
	case timeline.TrackARoll, timeline.TrackBRoll, timeline.TrackOverlay, timeline.TrackText:
	}
	return v
}

func zIndex(track *timeline.Track, clip *timeline.Clip) int {
	if clip.Positioning != nil && clip.Positioning.ZIndex != nil {
		return *clip.Positioning.ZIndex
	}
	if track.Kind == timeline.TrackOverlay {
		return overlayZIndex
	}
	return defaultZIndex
}

func sortLayers(layers []Layer) {
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].ZIndex < layers[j].ZIndex })
}

// FilterStack renders a color grade as a CSS filter list: the LUT preset
// first, then one function per non-zero adjustment.
func FilterStack(g timeline.ColorGrade, luts map[string]string) string {
	var parts []string
	if base, ok := luts[g.LUT]; ok && base != "" {
		parts = append(parts, base)
	}
	if g.Exposure != 0 {
		parts = append(parts, "brightness("+num(1+g.Exposure/100)+")")
	}
	if g.Contrast != 0 {
		parts = append(parts, "contrast("+num(1+g.Contrast/100)+")")
	}
	if g.Saturation != 0 {
		parts = append(parts, "saturate("+num(1+g.Saturation/100)+")")
	}
	switch {
	case g.Temperature > 0:
		parts = append(parts, "sepia("+num(g.Temperature/200)+")")
	case g.Temperature < 0:
		parts = append(parts, "hue-rotate("+num(-g.Temperature*0.3)+"deg)")
	}
	return strings.Join(parts, " ")
}

func applyKenBurns(tr *Transform, dir timeline.KenBurns, p float64) *Motion {
	switch dir {
	case timeline.KenBurnsZoomIn:
		tr.Scale *= 1 + kenBurnsZoom*p
	case timeline.KenBurnsZoomOut:
		tr.Scale *= 1 + kenBurnsZoom*(1-p)
	case timeline.KenBurnsLeft:
		tr.X -= kenBurnsPan * p
	case timeline.KenBurnsRight:
		tr.X += kenBurnsPan * p
	case timeline.KenBurnsUp:
		tr.Y -= kenBurnsPan * p
	case timeline.KenBurnsDown:
		tr.Y += kenBurnsPan * p
	case timeline.KenBurnsNone:
		return nil
	default:
		return nil
	}
	return &Motion{Direction: dir, Progress: p}
}

func progress(clip *timeline.Clip, t float64) float64 {
	d := clip.Duration()
	if d <= 0 {
		return 0
	}
	return clamp01((t - clip.StartTime) / d)
}

// subtitleOverlay selects the first subtitle containing t. Word runs carry
// the line style merged with each word's override.
func subtitleOverlay(st *timeline.State, t float64) *SubtitleOverlay {
	sub := st.ActiveSubtitle(t)
	if sub == nil {
		return nil
	}
	out := &SubtitleOverlay{ID: sub.ID, Text: sub.Text, Style: sub.Style.Merge(nil)}
	for _, w := range sub.Words {
		out.Words = append(out.Words, WordRun{
			Text:   w.Text,
			Start:  w.Start,
			End:    w.End,
			Active: t >= w.Start && t < w.End,
			Style:  sub.Style.Merge(w.Style),
		})
	}
	return out
}

func voiceoverActive(st *timeline.State, t float64) bool {
	for _, track := range st.Tracks {
		if track.Kind != timeline.TrackVoiceover {
			continue
		}
		for i := range track.Clips {
			if track.Clips[i].URL != "" && track.Clips[i].ActiveAt(t) {
				return true
			}
		}
	}
	return false
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
