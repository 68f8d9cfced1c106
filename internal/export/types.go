package export

type ExportRequest struct {
	ProjectName string  `json:"project_name"`
	Format      string  `json:"format"`
	FrameRate   float64 `json:"frame_rate"`
	OutputDir   string  `json:"output_dir"`
	// TrackID picks the track to export. Empty means the first visual track.
	TrackID string `json:"track_id,omitempty"`
}

// ResolvedClip is one EDL event. RecordMs is where the event starts on the
// record side; events never overlap, so a clip starting before the previous
// one ended is pushed back.
type ResolvedClip struct {
	ClipID    string
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
	RecordMs  int
}

type ExportResponse struct {
	Status       string   `json:"status"`
	Format       string   `json:"format"`
	OutputPath   string   `json:"output_path"`
	TrackID      string   `json:"track_id"`
	ClipCount    int      `json:"clip_count"`
	SkippedClips []string `json:"skipped_clips"`
}
