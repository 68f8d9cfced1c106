package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// EditorSettings tunes interaction, playback and persistence. Fields left
// out of the YAML file keep their defaults.
type EditorSettings struct {
	SnapTolerance   float64           `yaml:"snap_tolerance"`
	MinClipDuration float64           `yaml:"min_clip_duration"`
	TrackAreaWidth  float64           `yaml:"track_area_width_px"`
	SceneDuration   float64           `yaml:"scene_duration"`
	SyncTolerance   float64           `yaml:"sync_tolerance"`
	FrameRate       int               `yaml:"frame_rate"`
	DuckingLevel    float64           `yaml:"ducking_level"`
	Loop            bool              `yaml:"loop"`
	WritesPerSecond float64           `yaml:"writes_per_second"`
	NoticeLimit     int               `yaml:"notice_limit"`
	LUTs            map[string]string `yaml:"luts"`
}

func DefaultEditorSettings() EditorSettings {
	return EditorSettings{
		SnapTolerance:   0.2,
		MinClipDuration: 0.5,
		TrackAreaWidth:  1000,
		SceneDuration:   5,
		SyncTolerance:   0.2,
		FrameRate:       30,
		DuckingLevel:    0.25,
		Loop:            true,
		WritesPerSecond: 4,
		NoticeLimit:     50,
	}
}

// LoadEditorSettings reads path over the defaults. A missing file yields the
// defaults unless required is set.
func LoadEditorSettings(path string, required bool) (EditorSettings, error) {
	settings := DefaultEditorSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return settings, nil
		}
		return settings, fmt.Errorf("read editor config: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse editor config %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("editor config %s: %w", path, err)
	}
	return settings, nil
}

func (s EditorSettings) Validate() error {
	switch {
	case s.SnapTolerance < 0:
		return fmt.Errorf("snap_tolerance must not be negative")
	case s.MinClipDuration <= 0:
		return fmt.Errorf("min_clip_duration must be positive")
	case s.TrackAreaWidth <= 0:
		return fmt.Errorf("track_area_width_px must be positive")
	case s.SceneDuration <= 0:
		return fmt.Errorf("scene_duration must be positive")
	case s.SyncTolerance <= 0:
		return fmt.Errorf("sync_tolerance must be positive")
	case s.FrameRate < 1 || s.FrameRate > 240:
		return fmt.Errorf("frame_rate must be between 1 and 240")
	case s.DuckingLevel <= 0 || s.DuckingLevel > 1:
		return fmt.Errorf("ducking_level must be in (0, 1]")
	case s.WritesPerSecond <= 0:
		return fmt.Errorf("writes_per_second must be positive")
	case s.NoticeLimit < 1:
		return fmt.Errorf("notice_limit must be at least 1")
	}
	return nil
}
