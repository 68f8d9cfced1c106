// Package media checks that a clip's asset is reachable before a playback
// handle is opened for it.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported media scheme")
	ErrEmptyURL          = errors.New("media url is empty")
)

type ProbeResult struct {
	URL         string            `json:"url"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Kind        timeline.ClipKind `json:"kind,omitempty"`
	Duration    float64           `json:"duration,omitempty"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	ProbedAt    time.Time         `json:"probed_at"`
}

type Prober interface {
	Probe(ctx context.Context, rawURL string) (*ProbeResult, error)
}

// ProbeError reports a media location that answered but cannot be played.
type ProbeError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("media %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("media %s: %s", e.URL, e.Reason)
}

// HTTPProber issues a HEAD request, falling back to a one-byte ranged GET for
// servers that reject HEAD.
type HTTPProber struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPProber(timeout time.Duration, logger *slog.Logger) *HTTPProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}, logger: logger}
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	resp, err := p.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = p.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode >= 400 {
		return nil, &ProbeError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if p.logger != nil {
		p.logger.Debug("media probed", "url", rawURL, "content_type", contentType)
	}
	return &ProbeResult{
		URL:         rawURL,
		ContentType: contentType,
		Size:        resp.ContentLength,
		Kind:        KindOf(contentType, rawURL),
		ProbedAt:    time.Now(),
	}, nil
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	resp.Body.Close()
	return resp, nil
}

// FileProber checks local files, given as plain paths or file:// URLs.
type FileProber struct{}

func (FileProber) Probe(_ context.Context, rawURL string) (*ProbeResult, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ProbeError{URL: rawURL, Reason: err.Error()}
	}
	if info.IsDir() {
		return nil, &ProbeError{URL: rawURL, Reason: "is a directory"}
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	return &ProbeResult{
		URL:         rawURL,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        KindOf(contentType, path),
		ProbedAt:    time.Now(),
	}, nil
}

// SchemeProber dispatches on the URL scheme.
type SchemeProber struct {
	HTTP Prober
	File Prober
}

func (p *SchemeProber) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		if p.HTTP != nil {
			return p.HTTP.Probe(ctx, rawURL)
		}
	case "", "file":
		if p.File != nil {
			return p.File.Probe(ctx, rawURL)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// StubProber accepts every non-empty URL without touching it.
type StubProber struct {
	logger *slog.Logger
}

func NewStubProber(logger *slog.Logger) *StubProber {
	return &StubProber{logger: logger}
}

func (p *StubProber) Probe(_ context.Context, rawURL string) (*ProbeResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrEmptyURL
	}
	if p.logger != nil {
		p.logger.Debug("media stub: probe skipped", "url", rawURL)
	}
	return &ProbeResult{URL: rawURL, Kind: KindOf("", rawURL), ProbedAt: time.Now()}, nil
}

var extKinds = map[string]timeline.ClipKind{
	".mp4": timeline.ClipVideo, ".m4v": timeline.ClipVideo, ".mov": timeline.ClipVideo,
	".webm": timeline.ClipVideo, ".mkv": timeline.ClipVideo,
	".mp3": timeline.ClipAudio, ".m4a": timeline.ClipAudio, ".wav": timeline.ClipAudio,
	".aac": timeline.ClipAudio, ".ogg": timeline.ClipAudio, ".flac": timeline.ClipAudio,
	".png": timeline.ClipImage, ".jpg": timeline.ClipImage, ".jpeg": timeline.ClipImage,
	".gif": timeline.ClipImage, ".webp": timeline.ClipImage,
}

// KindOf guesses the clip kind from a content type, falling back to the
// file extension.
func KindOf(contentType, name string) timeline.ClipKind {
	if contentType == "" {
		if u, err := url.Parse(name); err == nil {
			name = u.Path
		}
		ext := strings.ToLower(filepath.Ext(name))
		if k, ok := extKinds[ext]; ok {
			return k
		}
		contentType = mime.TypeByExtension(ext)
	}
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return timeline.ClipVideo
	case strings.HasPrefix(contentType, "audio/"):
		return timeline.ClipAudio
	case strings.HasPrefix(contentType, "image/"):
		return timeline.ClipImage
	}
	return ""
}
