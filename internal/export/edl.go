package export

import (
	"fmt"
	"math"
	"strings"
)

// timecode formats frame counts at a nominal rate. Drop-frame rates skip
// frame labels so the timecode tracks wall-clock time.
type timecode struct {
	rate float64
	fps  int
	drop int
}

func newTimecode(frameRate float64) timecode {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		return timecode{rate: DefaultFrameRate, fps: int(DefaultFrameRate)}
	}
	tc := timecode{rate: frameRate, fps: fps}
	if math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01 {
		tc.drop = fps / 15
	}
	return tc
}

func (tc timecode) dropFrame() bool { return tc.drop > 0 }

// frames counts whole frames in ms at the real rate.
func (tc timecode) frames(ms int) int {
	return int(math.Round(float64(ms) * tc.rate / 1000))
}

func (tc timecode) format(ms int) string {
	return tc.label(tc.frames(ms))
}

// label renders a frame count as HH:MM:SS:FF, or HH:MM:SS;FF with the first
// labels of every minute not divisible by ten skipped.
func (tc timecode) label(n int) string {
	sep := ":"
	if tc.dropFrame() {
		sep = ";"
		perMinute := tc.fps*60 - tc.drop
		perTen := perMinute*10 + tc.drop
		tens, rem := n/perTen, n%perTen
		n += 9 * tc.drop * tens
		if rem > tc.drop {
			n += tc.drop * ((rem - tc.drop) / perMinute)
		}
	}
	ff := n % tc.fps
	secs := n / tc.fps
	return fmt.Sprintf("%02d:%02d:%02d%s%02d", secs/3600, secs/60%60, secs%60, sep, ff)
}

// GenerateEDL renders clips as a CMX 3600 edit decision list. Each event
// starts at its record position unless that would overlap the previous
// event, in which case it follows it.
func GenerateEDL(clips []ResolvedClip, title string, frameRate float64) string {
	tc := newTimecode(frameRate)

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if tc.dropFrame() {
		b.WriteString("FCM: DROP FRAME\n\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n\n")
	}

	record := 0
	for i, clip := range clips {
		record = max(record, clip.RecordMs)
		length := clip.EndMs - clip.StartMs

		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n", i+1, "AX", "V",
			tc.format(clip.StartMs), tc.format(clip.EndMs),
			tc.format(record), tc.format(record+length))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", clip.ClipName)
		fmt.Fprintf(&b, "* MEDIA PATH:  %s\n", clip.MediaPath)

		record += length
	}
	return b.String()
}
