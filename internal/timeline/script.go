package timeline

import "strings"

// Scene is one entry of a generated script.
type Scene struct {
	Timecode          string `json:"timecode"`
	VisualDescription string `json:"visual_description"`
	Voiceover         string `json:"voiceover"`
	OnScreenText      string `json:"on_screen_text,omitempty"`
}

// FromScript lays out one placeholder voiceover clip and one placeholder
// a-roll clip per scene, end to end, each sceneDuration seconds long.
// Scenes with on-screen text also get a subtitle spanning the scene.
func FromScript(scenes []Scene, sceneDuration float64) *State {
	if sceneDuration <= 0 {
		sceneDuration = DefaultSceneDuration
	}

	s := NewState()
	voiceover := Track{ID: NewID(), Kind: TrackVoiceover, Clips: make([]Clip, 0, len(scenes))}
	aroll := Track{ID: NewID(), Kind: TrackARoll, Clips: make([]Clip, 0, len(scenes))}

	for i, scene := range scenes {
		start := float64(i) * sceneDuration
		end := start + sceneDuration

		voiceover.Clips = append(voiceover.Clips, Clip{
			ID:             NewID(),
			Kind:           ClipAudio,
			Text:           strings.TrimSpace(scene.Voiceover),
			SceneIndex:     i,
			StartTime:      start,
			EndTime:        end,
			SourceDuration: sceneDuration,
			Volume:         1,
			Opacity:        1,
		})

		pos := DefaultPositioning()
		aroll.Clips = append(aroll.Clips, Clip{
			ID:             NewID(),
			Kind:           ClipVideo,
			Text:           strings.TrimSpace(scene.VisualDescription),
			SceneIndex:     i,
			StartTime:      start,
			EndTime:        end,
			SourceDuration: sceneDuration,
			Volume:         1,
			Opacity:        1,
			Positioning:    &pos,
		})

		if text := strings.TrimSpace(scene.OnScreenText); text != "" {
			s.Subtitles = append(s.Subtitles, Subtitle{
				ID:    NewID(),
				Text:  text,
				Start: start,
				End:   end,
				Style: DefaultSubtitleStyle(),
			})
		}
	}

	s.Tracks = append(s.Tracks, voiceover, aroll)
	s.TotalDuration = float64(len(scenes)) * sceneDuration
	return s
}
