package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.WriteHeader(http.StatusOK)
		case "/nohead.mp3":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if r.Header.Get("Range") != "bytes=0-0" {
				t.Errorf("fallback GET missing Range header")
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusPartialContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewHTTPProber(time.Second, testLogger())

	res, err := p.Probe(context.Background(), server.URL+"/clip.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if res.Kind != timeline.ClipVideo {
		t.Errorf("result = %+v", res)
	}

	res, err = p.Probe(context.Background(), server.URL+"/nohead.mp3")
	if err != nil {
		t.Fatalf("Probe() fallback error = %v", err)
	}
	if res.Kind != timeline.ClipAudio {
		t.Errorf("Kind = %q, want audio", res.Kind)
	}

	_, err = p.Probe(context.Background(), server.URL+"/missing.mp4")
	var perr *ProbeError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusNotFound {
		t.Errorf("err = %v, want ProbeError 404", err)
	}
}

func TestFileProber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "still.png")
	if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := FileProber{}.Probe(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if res.Kind != timeline.ClipImage || res.Size != 3 {
		t.Errorf("result = %+v", res)
	}

	if _, err := (FileProber{}).Probe(context.Background(), dir); err == nil {
		t.Error("directory should not probe")
	}
	if _, err := (FileProber{}).Probe(context.Background(), filepath.Join(dir, "nope.mp4")); err == nil {
		t.Error("missing file should not probe")
	}
}

func TestSchemeProber(t *testing.T) {
	p := &SchemeProber{File: FileProber{}}

	if _, err := p.Probe(context.Background(), ""); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("err = %v, want ErrEmptyURL", err)
	}
	if _, err := p.Probe(context.Background(), "rtmp://live/stream"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("err = %v, want ErrUnsupportedScheme", err)
	}
	if _, err := p.Probe(context.Background(), "https://cdn.example.com/a.mp4"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("err = %v, want ErrUnsupportedScheme without an HTTP prober", err)
	}
}

type countingProber struct {
	calls int
	err   error
}

func (p *countingProber) Probe(_ context.Context, rawURL string) (*ProbeResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &ProbeResult{URL: rawURL, ProbedAt: time.Now()}, nil
}

func TestCachedProber(t *testing.T) {
	inner := &countingProber{}
	c := NewCachedProber(inner, time.Minute, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Probe(ctx, "a.mp4"); err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}

	inner.err = errors.New("offline")
	if _, err := c.Refresh(ctx, "a.mp4"); err != nil {
		t.Errorf("Refresh() should fall back to stale entry, got %v", err)
	}
	if _, err := c.Probe(ctx, "b.mp4"); err == nil {
		t.Error("uncached failure should surface")
	}

	c.Invalidate("a.mp4")
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		contentType string
		name        string
		want        timeline.ClipKind
	}{
		{"video/webm", "", timeline.ClipVideo},
		{"", "https://cdn.example.com/vo.mp3?sig=abc", timeline.ClipAudio},
		{"", "photo.JPG", timeline.ClipImage},
		{"application/json", "x.json", ""},
	}
	for _, tt := range tests {
		if got := KindOf(tt.contentType, tt.name); got != tt.want {
			t.Errorf("KindOf(%q, %q) = %q, want %q", tt.contentType, tt.name, got, tt.want)
		}
	}
}

func TestCachedProber_InvalidatePath(t *testing.T) {
	c := NewCachedProber(&countingProber{}, time.Minute, nil)
	ctx := context.Background()
	for _, u := range []string{"/media/a.mp4", "file:///media/a.mp4", "/media/b.mp4"} {
		if _, err := c.Probe(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	c.InvalidatePath("/media/a.mp4")
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want only b.mp4 left", c.Len())
	}
}
