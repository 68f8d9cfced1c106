package export

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

var ErrNoVisualTrack = errors.New("timeline has no visual track")

// SelectTrack returns the track with trackID, or the first visual track when
// trackID is empty.
func SelectTrack(st *timeline.State, trackID string) (*timeline.Track, error) {
	if trackID != "" {
		i := st.FindTrack(trackID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", timeline.ErrTrackNotFound, trackID)
		}
		return &st.Tracks[i], nil
	}
	for i := range st.Tracks {
		if !st.Tracks[i].Kind.IsAudio() && st.Tracks[i].Kind != timeline.TrackText {
			return &st.Tracks[i], nil
		}
	}
	return nil, ErrNoVisualTrack
}

// ClipsFromTrack turns the video and image clips of a track into EDL events
// ordered by timeline position. Record in is the clip's start on the
// timeline. Clips without media are returned by ID in skipped.
func ClipsFromTrack(tr *timeline.Track) (clips []ResolvedClip, skipped []string) {
	ordered := make([]timeline.Clip, len(tr.Clips))
	copy(ordered, tr.Clips)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartTime < ordered[j].StartTime })

	skipped = []string{}
	for _, c := range ordered {
		if c.Kind != timeline.ClipVideo && c.Kind != timeline.ClipImage {
			continue
		}
		if c.URL == "" {
			skipped = append(skipped, c.ID)
			continue
		}

		length := c.Duration()
		if c.Kind == timeline.ClipVideo && c.SourceDuration > 0 {
			length = math.Min(length, c.SourceDuration)
		}
		clips = append(clips, ResolvedClip{
			ClipID:    c.ID,
			ClipName:  clipName(c),
			MediaPath: MediaPath(c.URL),
			StartMs:   0,
			EndMs:     toMs(length),
			RecordMs:  toMs(c.StartTime),
		})
	}
	return clips, skipped
}

// MediaPath turns a clip URL into what an NLE can relink: file URLs become
// plain paths and anything else is kept as is.
func MediaPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return raw
	}
	return u.Path
}

func clipName(c timeline.Clip) string {
	if name := ClipName(c.Text); name != "" {
		return name
	}
	base := path.Base(MediaPath(c.URL))
	if name := ClipName(strings.TrimSuffix(base, path.Ext(base))); name != "" {
		return name
	}
	return c.ID
}

func toMs(seconds float64) int {
	return int(math.Round(seconds * 1000))
}
