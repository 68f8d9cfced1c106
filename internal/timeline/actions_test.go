package timeline

import (
	"encoding/json"
	"errors"
	"testing"
)

func twoSceneState(t *testing.T) *State {
	t.Helper()
	return FromScript([]Scene{
		{Timecode: "0:00", VisualDescription: "city skyline", Voiceover: "Hello there."},
		{Timecode: "0:05", VisualDescription: "coffee pour", Voiceover: "Grab a cup.", OnScreenText: "Coffee time"},
	}, DefaultSceneDuration)
}

func trackOfKind(s *State, kind TrackKind) *Track {
	for i := range s.Tracks {
		if s.Tracks[i].Kind == kind {
			return &s.Tracks[i]
		}
	}
	return nil
}

func TestFromScript_TwoScenes(t *testing.T) {
	s := twoSceneState(t)

	if s.TotalDuration != 10 {
		t.Fatalf("TotalDuration = %g, want 10", s.TotalDuration)
	}
	vo := trackOfKind(s, TrackVoiceover)
	if vo == nil {
		t.Fatal("voiceover track missing")
	}
	if len(vo.Clips) != 2 {
		t.Fatalf("voiceover clips = %d, want 2", len(vo.Clips))
	}
	if vo.Clips[0].StartTime != 0 || vo.Clips[0].EndTime != 5 {
		t.Errorf("clip 0 = [%g, %g), want [0, 5)", vo.Clips[0].StartTime, vo.Clips[0].EndTime)
	}
	if vo.Clips[1].StartTime != 5 || vo.Clips[1].EndTime != 10 {
		t.Errorf("clip 1 = [%g, %g), want [5, 10)", vo.Clips[1].StartTime, vo.Clips[1].EndTime)
	}
	if vo.Clips[0].Kind != ClipAudio || vo.Clips[0].URL != "" {
		t.Errorf("voiceover placeholder = %+v", vo.Clips[0])
	}

	aroll := trackOfKind(s, TrackARoll)
	if aroll == nil || len(aroll.Clips) != 2 {
		t.Fatal("a-roll track should have 2 clips")
	}
	if len(s.Subtitles) != 1 || s.Subtitles[0].Start != 5 {
		t.Errorf("subtitles = %+v, want one starting at 5", s.Subtitles)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := twoSceneState(t)
	clip := s.Tracks[0].Clips[0]

	next, err := Apply(s, CommitWindow{ClipID: clip.ID, Start: 1, End: 4})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if s.Tracks[0].Clips[0].StartTime != 0 {
		t.Error("input state was modified")
	}
	if c, _ := next.Clip(clip.ID); c.StartTime != 1 || c.EndTime != 4 {
		t.Errorf("committed clip = [%g, %g)", c.StartTime, c.EndTime)
	}
}

func TestApply_CommitWindowRejectsEmpty(t *testing.T) {
	s := twoSceneState(t)
	id := s.Tracks[0].Clips[0].ID

	_, err := Apply(s, CommitWindow{ClipID: id, Start: 3, End: 3})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("err = %v, want ErrInvalidWindow", err)
	}
	_, err = Apply(s, CommitWindow{ClipID: "missing", Start: 0, End: 1})
	if !errors.Is(err, ErrClipNotFound) {
		t.Fatalf("err = %v, want ErrClipNotFound", err)
	}
}

func TestApply_ShortWindowsWidenToMinimum(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name       string
		action     func(id string) Action
		start, end float64
	}{
		{"commit", func(id string) Action { return CommitWindow{ClipID: id, Start: 2, End: 2.1} }, 2, 2.5},
		{"patch end", func(id string) Action { return UpdateClip{ClipID: id, Patch: ClipPatch{EndTime: f(0.2)}} }, 0, 0.5},
		{"patch start", func(id string) Action { return UpdateClip{ClipID: id, Patch: ClipPatch{StartTime: f(4.9)}} }, 4.5, 5},
		{"patch both", func(id string) Action {
			return UpdateClip{ClipID: id, Patch: ClipPatch{StartTime: f(1), EndTime: f(1.25)}}
		}, 1, 1.5},
		{"long enough", func(id string) Action { return CommitWindow{ClipID: id, Start: 1, End: 1.5} }, 1, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := twoSceneState(t)
			id := s.Tracks[0].Clips[0].ID
			next, err := Apply(s, tt.action(id))
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			c, _ := next.Clip(id)
			if c.StartTime != tt.start || c.EndTime != tt.end {
				t.Errorf("window = [%g, %g), want [%g, %g)", c.StartTime, c.EndTime, tt.start, tt.end)
			}
		})
	}
}

func TestApply_InsertAssetFillsPlaceholder(t *testing.T) {
	s := twoSceneState(t)
	aroll := trackOfKind(s, TrackARoll)
	placeholder := aroll.Clips[0]
	scene := 0

	next, err := Apply(s, InsertAsset{Asset: Asset{
		URL:        "https://cdn.example.com/scene0.mp4",
		Kind:       ClipVideo,
		Duration:   7.5,
		TrackID:    aroll.ID,
		StartTime:  2,
		SceneIndex: &scene,
	}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	c, _ := next.Clip(placeholder.ID)
	if c.URL != "https://cdn.example.com/scene0.mp4" {
		t.Errorf("URL = %q", c.URL)
	}
	if c.StartTime != placeholder.StartTime || c.EndTime != placeholder.EndTime {
		t.Errorf("window changed: [%g, %g), want [%g, %g)", c.StartTime, c.EndTime, placeholder.StartTime, placeholder.EndTime)
	}
	if c.SourceDuration != 7.5 {
		t.Errorf("SourceDuration = %g, want 7.5", c.SourceDuration)
	}
	if len(trackOfKind(next, TrackARoll).Clips) != 2 {
		t.Error("filling a placeholder must not add a clip")
	}
}

func TestApply_InsertAssetAppendsAndExtendsDuration(t *testing.T) {
	s := twoSceneState(t)
	music := Track{ID: "music", Kind: TrackMusic}
	s.Tracks = append(s.Tracks, music)

	next, err := Apply(s, InsertAsset{Asset: Asset{
		ClipID:    "bed",
		URL:       "https://cdn.example.com/bed.mp3",
		Kind:      ClipAudio,
		Duration:  12,
		TrackID:   "music",
		StartTime: 0,
	}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	c, tr := next.Clip("bed")
	if c == nil || tr.ID != "music" {
		t.Fatal("inserted clip not found on music track")
	}
	if c.SceneIndex != -1 {
		t.Errorf("SceneIndex = %d, want -1", c.SceneIndex)
	}
	if next.TotalDuration != 12 {
		t.Errorf("TotalDuration = %g, want 12", next.TotalDuration)
	}

	_, err = Apply(s, InsertAsset{Asset: Asset{URL: "x", Kind: ClipAudio, TrackID: "nope"}})
	if !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("err = %v, want ErrTrackNotFound", err)
	}
}

func TestApply_ToggleKeyframeCapturesScale(t *testing.T) {
	s := twoSceneState(t)
	clip := trackOfKind(s, TrackARoll).Clips[0]
	clip.Positioning.Scale = 1.25
	s, _ = Apply(s, UpdateClip{ClipID: clip.ID, Patch: ClipPatch{Positioning: clip.Positioning}})

	next, err := Apply(s, ToggleKeyframeAt{ClipID: clip.ID, Property: PropScale, Time: 2})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	c, _ := next.Clip(clip.ID)
	kfs := c.Keyframes.Get(PropScale)
	if len(kfs) != 1 || kfs[0] != (Keyframe{Time: 2, Value: 1.25}) {
		t.Fatalf("scale keyframes = %v, want [{2 1.25}]", kfs)
	}

	again, err := Apply(next, ToggleKeyframeAt{ClipID: clip.ID, Property: PropScale, Time: 2})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	c, _ = again.Clip(clip.ID)
	if len(c.Keyframes.Get(PropScale)) != 0 {
		t.Fatalf("second toggle should remove keyframe, got %v", c.Keyframes.Get(PropScale))
	}
}

func TestApply_UpdateClipPartial(t *testing.T) {
	s := twoSceneState(t)
	clip := trackOfKind(s, TrackARoll).Clips[1]
	vol := 1.7
	url := "https://cdn.example.com/b.mp4"

	next, err := Apply(s, UpdateClip{ClipID: clip.ID, Patch: ClipPatch{
		URL:    &url,
		Volume: &vol,
		Color:  &ColorGrade{LUT: "teal-orange", Exposure: 250},
	}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	c, _ := next.Clip(clip.ID)
	if c.URL != url {
		t.Errorf("URL = %q", c.URL)
	}
	if c.Volume != 1 {
		t.Errorf("Volume = %g, want clamped 1", c.Volume)
	}
	if c.Color.Exposure != 100 {
		t.Errorf("Exposure = %g, want clamped 100", c.Color.Exposure)
	}
	if c.StartTime != clip.StartTime || c.Text != clip.Text {
		t.Error("untouched fields changed")
	}

	bad := 20.0
	_, err = Apply(s, UpdateClip{ClipID: clip.ID, Patch: ClipPatch{StartTime: &bad}})
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("err = %v, want ErrInvalidWindow", err)
	}
}

func TestApply_SubtitleLifecycle(t *testing.T) {
	s := twoSceneState(t)

	next, err := Apply(s, AddSubtitle{Subtitle: Subtitle{ID: "intro", Text: "Hi", Start: 0, End: 2}})
	if err != nil {
		t.Fatalf("AddSubtitle error = %v", err)
	}
	text := "Hello"
	next, err = Apply(next, UpdateSubtitle{SubtitleID: "intro", Patch: SubtitlePatch{Text: &text}})
	if err != nil {
		t.Fatalf("UpdateSubtitle error = %v", err)
	}
	if sub := next.Subtitles[next.FindSubtitle("intro")]; sub.Text != "Hello" || sub.End != 2 {
		t.Errorf("subtitle = %+v", sub)
	}
	next, err = Apply(next, RemoveSubtitle{SubtitleID: "intro"})
	if err != nil {
		t.Fatalf("RemoveSubtitle error = %v", err)
	}
	if next.FindSubtitle("intro") != -1 {
		t.Error("subtitle not removed")
	}
}

func TestActiveSubtitle_FirstMatchWins(t *testing.T) {
	s := NewState()
	s.Subtitles = []Subtitle{
		{ID: "a", Start: 0, End: 4},
		{ID: "b", Start: 2, End: 6},
	}
	if got := s.ActiveSubtitle(3); got == nil || got.ID != "a" {
		t.Errorf("ActiveSubtitle(3) = %v, want a", got)
	}
	if got := s.ActiveSubtitle(5); got == nil || got.ID != "b" {
		t.Errorf("ActiveSubtitle(5) = %v, want b", got)
	}
	if got := s.ActiveSubtitle(6); got != nil {
		t.Errorf("ActiveSubtitle(6) = %v, want nil", got)
	}
}

func TestState_UnmarshalRejectsUnknownKind(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{"tracks":[{"id":"t","kind":"hologram","clips":[]}]}`), &s)
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("unmarshal err = %v, want ErrInvalidKind", err)
	}
}

func TestReplaceState_NormalizesKeyframes(t *testing.T) {
	loaded := NewState()
	loaded.Tracks = []Track{{ID: "t", Kind: TrackBRoll, Clips: []Clip{{
		ID: "c", Kind: ClipImage, StartTime: 0, EndTime: 3, Volume: 1, Opacity: 1,
		Keyframes: KeyframeSet{Opacity: []Keyframe{{Time: 2, Value: 0}, {Time: 1, Value: 1}}},
	}}}}
	loaded.TotalDuration = 3

	next, err := Apply(NewState(), ReplaceState{State: loaded})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	c, _ := next.Clip("c")
	if kfs := c.Keyframes.Get(PropOpacity); kfs[0].Time != 1 || kfs[1].Time != 2 {
		t.Errorf("keyframes not sorted: %v", kfs)
	}
}

func TestReplaceState_ExtendsShortTotalDuration(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		want  float64
	}{
		{"short", 2, 5},
		{"missing", 0, 5},
		{"longer kept", 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded := twoSceneState(t)
			loaded.Tracks[0].Clips = loaded.Tracks[0].Clips[:1]
			loaded.Tracks[1].Clips = loaded.Tracks[1].Clips[:1]
			loaded.Subtitles = nil
			loaded.TotalDuration = tt.total

			next, err := Apply(NewState(), ReplaceState{State: loaded})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if next.TotalDuration != tt.want {
				t.Errorf("TotalDuration = %g, want %g", next.TotalDuration, tt.want)
			}
		})
	}
}

func TestMerge_WordOverride(t *testing.T) {
	base := DefaultSubtitleStyle()
	got := base.Merge(&TextStyle{Fill: &Fill{Kind: FillSolid, Color: "#FFD400"}, FontSize: 56})

	if got.Fill.Color != "#FFD400" || got.FontSize != 56 {
		t.Errorf("override not applied: %+v", got)
	}
	if got.FontFamily != base.FontFamily || got.Outline == nil {
		t.Errorf("base fields lost: %+v", got)
	}
	if base.Fill.Color != "#FFFFFF" {
		t.Error("Merge modified the base style")
	}
}
