package playback

import (
	"context"
	"testing"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

func TestFilterStack(t *testing.T) {
	tests := []struct {
		name  string
		grade timeline.ColorGrade
		want  string
	}{
		{"empty", timeline.ColorGrade{}, ""},
		{"lut only", timeline.ColorGrade{LUT: "noir"}, "grayscale(1) contrast(1.2)"},
		{"unknown lut", timeline.ColorGrade{LUT: "mystery", Saturation: -50}, "saturate(0.5)"},
		{"adjustments", timeline.ColorGrade{LUT: "noir", Exposure: 20, Temperature: -50}, "grayscale(1) contrast(1.2) brightness(1.2) hue-rotate(15deg)"},
		{"warm", timeline.ColorGrade{Contrast: 10, Temperature: 40}, "contrast(1.1) sepia(0.2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterStack(tt.grade, DefaultLUTs); got != tt.want {
				t.Errorf("FilterStack() = %q, want %q", got, tt.want)
			}
		})
	}
}

func compositeState() *timeline.State {
	z := 5
	s := timeline.NewState()
	s.Tracks = []timeline.Track{
		{ID: "ov", Kind: timeline.TrackOverlay, Clips: []timeline.Clip{
			{ID: "logo", Kind: timeline.ClipImage, URL: "logo.png", StartTime: 0, EndTime: 10, Volume: 1, Opacity: 1},
		}},
		{ID: "a", Kind: timeline.TrackARoll, Clips: []timeline.Clip{
			{ID: "shot", Kind: timeline.ClipImage, URL: "shot.jpg", StartTime: 0, EndTime: 4, Volume: 1, Opacity: 1,
				Positioning: &timeline.Positioning{Width: 100, Height: 100, Scale: 1},
				Effects:     &timeline.Effects{KenBurns: timeline.KenBurnsZoomIn},
				Keyframes: timeline.KeyframeSet{
					Opacity: []timeline.Keyframe{{Time: 0, Value: 0}, {Time: 2, Value: 1}},
				}},
		}},
		{ID: "t", Kind: timeline.TrackText, Clips: []timeline.Clip{
			{ID: "title", Kind: timeline.ClipText, Text: "Hello", StartTime: 0, EndTime: 3, Volume: 1, Opacity: 1,
				Positioning: &timeline.Positioning{Width: 50, Height: 10, Scale: 1, ZIndex: &z},
				Style:       &timeline.TextStyle{FontSize: 72}},
		}},
	}
	s.Subtitles = []timeline.Subtitle{{
		ID: "s1", Text: "Grab a cup", Start: 0, End: 3,
		Style: timeline.DefaultSubtitleStyle(),
		Words: []timeline.Word{
			{Text: "Grab", Start: 0, End: 1},
			{Text: "a", Start: 1, End: 1.5},
			{Text: "cup", Start: 1.5, End: 3, Style: &timeline.TextStyle{Fill: &timeline.Fill{Kind: timeline.FillSolid, Color: "#FFD400"}}},
		},
	}}
	s.TotalDuration = 10
	return s
}

func TestReconcile_Composite(t *testing.T) {
	sync := NewSynchronizer(newFakeOpener(), DefaultOptions(), testLogger())
	frame := sync.Reconcile(context.Background(), compositeState(), 2, false)

	if len(frame.Layers) != 3 {
		t.Fatalf("layers = %d, want 3", len(frame.Layers))
	}
	order := []string{frame.Layers[0].ClipID, frame.Layers[1].ClipID, frame.Layers[2].ClipID}
	if order[0] != "shot" || order[1] != "title" || order[2] != "logo" {
		t.Errorf("z order = %v, want [shot title logo]", order)
	}

	shot, _ := frame.Layer("shot")
	if shot.Transform.Opacity != 1 {
		t.Errorf("opacity at 2s = %v, want 1", shot.Transform.Opacity)
	}
	if shot.Motion == nil || shot.Motion.Progress != 0.5 {
		t.Errorf("motion = %+v, want zoom-in halfway", shot.Motion)
	}
	if shot.Transform.Scale != 1.1 {
		t.Errorf("scale = %v, want 1.1", shot.Transform.Scale)
	}

	title, _ := frame.Layer("title")
	if title.Style == nil || title.Style.FontSize != 72 || title.Style.FontFamily == "" {
		t.Errorf("title style = %+v", title.Style)
	}

	if frame.Subtitle == nil || frame.Subtitle.ID != "s1" {
		t.Fatalf("subtitle = %+v", frame.Subtitle)
	}
	words := frame.Subtitle.Words
	if len(words) != 3 || !words[2].Active || words[0].Active {
		t.Errorf("word runs = %+v", words)
	}
	if words[2].Style.Fill.Color != "#FFD400" || words[0].Style.Fill.Color != "#FFFFFF" {
		t.Error("word style overrides not merged")
	}
}

func TestReconcile_OpacityKeyframesInterpolate(t *testing.T) {
	sync := NewSynchronizer(newFakeOpener(), DefaultOptions(), testLogger())
	frame := sync.Reconcile(context.Background(), compositeState(), 1, false)

	shot, _ := frame.Layer("shot")
	if shot.Transform.Opacity != 0.5 {
		t.Errorf("opacity at 1s = %v, want 0.5", shot.Transform.Opacity)
	}
	if frame.Subtitle.Words[0].Active != false || frame.Subtitle.Words[1].Active != true {
		t.Errorf("active word at 1s = %+v", frame.Subtitle.Words)
	}
}

func TestClock(t *testing.T) {
	t.Run("advances only while playing", func(t *testing.T) {
		c := NewClock(false)
		if got := c.Advance(1, 10); got != 0 {
			t.Errorf("paused Advance = %v", got)
		}
		c.Play()
		c.Advance(0.5, 10)
		if got := c.Advance(0.25, 10); got != 0.75 {
			t.Errorf("Advance = %v, want 0.75", got)
		}
	})

	t.Run("pauses at end", func(t *testing.T) {
		c := NewClock(false)
		c.Play()
		if got := c.Advance(12, 10); got != 10 || c.Playing() {
			t.Errorf("got %v playing=%v, want 10 paused", got, c.Playing())
		}
	})

	t.Run("loops", func(t *testing.T) {
		c := NewClock(true)
		c.Play()
		c.Seek(9.9)
		c.Advance(0.016, 10)
		if got := c.Advance(0.5, 10); got != 0 || !c.Playing() {
			t.Errorf("got %v playing=%v, want 0 playing", got, c.Playing())
		}
	})

	t.Run("seek wins over toggle in the same frame", func(t *testing.T) {
		c := NewClock(false)
		c.Play()
		c.Advance(1, 10)
		c.Seek(4)
		c.Toggle()
		c.Toggle()
		if got := c.Advance(0.016, 10); got != 4 {
			t.Errorf("Advance after seek = %v, want 4", got)
		}
		if got := c.Advance(1, 10); got != 5 {
			t.Errorf("next Advance = %v, want 5", got)
		}
	})
}
