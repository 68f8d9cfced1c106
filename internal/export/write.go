package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

var (
	ErrUnsupportedFormat = errors.New("format must be edl")
	ErrInvalidOutputDir  = errors.New("invalid output directory")
	ErrNoClips           = errors.New("no clips could be resolved")
)

const (
	DefaultFrameRate   = 30.0
	DefaultProjectName = "heimdex_export"
)

// WriteEDL exports one track of st to <OutputDir>/<name>.edl. The name is
// req.ProjectName, falling back to projectName.
func WriteEDL(st *timeline.State, projectName string, req ExportRequest) (*ExportResponse, error) {
	if req.Format != "" && strings.ToLower(req.Format) != "edl" {
		return nil, ErrUnsupportedFormat
	}
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutputDir, err)
	}

	track, err := SelectTrack(st, req.TrackID)
	if err != nil {
		return nil, err
	}
	clips, skipped := ClipsFromTrack(track)
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	name := req.ProjectName
	if name == "" {
		name = projectName
	}
	name = FileName(name)
	if name == "" {
		name = DefaultProjectName
	}

	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	outputPath := filepath.Join(req.OutputDir, name+".edl")
	if err := os.WriteFile(outputPath, []byte(GenerateEDL(clips, name, frameRate)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	return &ExportResponse{
		Status:       "ok",
		Format:       "edl",
		OutputPath:   outputPath,
		TrackID:      track.ID,
		ClipCount:    len(clips),
		SkippedClips: skipped,
	}, nil
}
