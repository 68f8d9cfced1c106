package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strconv"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

const defaultFFProbeTimeout = 15 * time.Second

// FFProbe adds duration and frame size to local file probes. Without an
// ffprobe binary on PATH it behaves like FileProber.
type FFProbe struct {
	base    Prober
	path    string
	timeout time.Duration
	logger  *slog.Logger

	// run executes ffprobe and returns its JSON output.
	run func(ctx context.Context, bin, file string) ([]byte, error)
}

func NewFFProbe(logger *slog.Logger) *FFProbe {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		if logger != nil {
			logger.Info("ffprobe not found, local media durations will not be detected")
		}
		bin = ""
	}
	return &FFProbe{
		base:    FileProber{},
		path:    bin,
		timeout: defaultFFProbeTimeout,
		logger:  logger,
		run:     runFFProbe,
	}
}

func (p *FFProbe) Available() bool {
	return p.path != ""
}

func (p *FFProbe) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	res, err := p.base.Probe(ctx, rawURL)
	if err != nil || !p.Available() || res.Kind == timeline.ClipImage {
		return res, err
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		path = u.Path
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	out, err := p.run(ctx, p.path, path)
	if err != nil {
		// The file exists, so a decode failure still leaves it usable.
		if p.logger != nil {
			p.logger.Warn("ffprobe failed", "path", path, "error", err)
		}
		return res, nil
	}
	if err := applyFFProbeOutput(res, out); err != nil && p.logger != nil {
		p.logger.Warn("ffprobe output unreadable", "path", path, "error", err)
	}
	return res, nil
}

func runFFProbe(ctx context.Context, bin, file string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		file,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return out, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// applyFFProbeOutput fills res from ffprobe JSON. A file with only audio
// streams is reported as audio even if its extension suggested video.
func applyFFProbeOutput(res *ProbeResult, out []byte) error {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d > 0 {
		res.Duration = d
	}

	var video, audio bool
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if !video {
				res.Width, res.Height = s.Width, s.Height
			}
			video = true
		case "audio":
			audio = true
		}
	}
	if audio && !video {
		res.Kind = timeline.ClipAudio
	} else if video && res.Kind == "" {
		res.Kind = timeline.ClipVideo
	}
	return nil
}
