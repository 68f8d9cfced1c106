package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

func TestWriteEDL(t *testing.T) {
	dir := t.TempDir()
	resp, err := WriteEDL(exportTimeline(), "My Project", ExportRequest{OutputDir: dir, Format: "EDL"})
	if err != nil {
		t.Fatalf("WriteEDL() error = %v", err)
	}
	if resp.OutputPath != filepath.Join(dir, "My Project.edl") || resp.TrackID != "main" || resp.ClipCount != 2 {
		t.Errorf("response = %+v", resp)
	}

	body, err := os.ReadFile(resp.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	edl := string(body)
	if !strings.HasPrefix(edl, "TITLE: My Project\nFCM: NON-DROP FRAME\n") {
		t.Errorf("header = %q", edl[:40])
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/intro take.mp4") {
		t.Errorf("edl missing first clip:\n%s", edl)
	}
}

func TestWriteEDL_NameOverrideAndFallback(t *testing.T) {
	dir := t.TempDir()
	resp, err := WriteEDL(exportTimeline(), "ignored", ExportRequest{OutputDir: dir, ProjectName: "Cut/2"})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resp.OutputPath) != "Cut_2.edl" {
		t.Errorf("output = %q", resp.OutputPath)
	}

	resp, err = WriteEDL(exportTimeline(), "", ExportRequest{OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resp.OutputPath) != DefaultProjectName+".edl" {
		t.Errorf("output = %q", resp.OutputPath)
	}
}

func TestWriteEDL_Errors(t *testing.T) {
	dir := t.TempDir()
	placeholders := timeline.FromScript([]timeline.Scene{{Voiceover: "a"}}, 5)

	tests := []struct {
		name string
		st   *timeline.State
		req  ExportRequest
		want error
	}{
		{"format", exportTimeline(), ExportRequest{OutputDir: dir, Format: "fcpxml"}, ErrUnsupportedFormat},
		{"missing dir", exportTimeline(), ExportRequest{OutputDir: filepath.Join(dir, "nope")}, ErrInvalidOutputDir},
		{"unknown track", exportTimeline(), ExportRequest{OutputDir: dir, TrackID: "x"}, timeline.ErrTrackNotFound},
		{"only placeholders", placeholders, ExportRequest{OutputDir: dir}, ErrNoClips},
	}
	for _, tt := range tests {
		if _, err := WriteEDL(tt.st, "p", tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
