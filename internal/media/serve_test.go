package media

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantFirst int64
		wantLast  int64
		wantOK    bool
		wantErr   error
	}{
		{"no header", "", 1000, 0, 0, false, nil},
		{"whole file", "bytes=0-999", 1000, 0, 999, true, nil},
		{"open ended", "bytes=500-", 1000, 500, 999, true, nil},
		{"suffix", "bytes=-500", 1000, 500, 999, true, nil},
		{"suffix longer than file", "bytes=-2000", 500, 0, 499, true, nil},
		{"end clamped", "bytes=0-2000", 1000, 0, 999, true, nil},
		{"first of many", "bytes=0-99, 200-299", 1000, 0, 99, true, nil},
		{"last byte", "bytes=999-", 1000, 999, 999, true, nil},

		{"start past end of file", "bytes=1000-", 1000, 0, 0, false, ErrRangeNotSatisfiable},
		{"suffix of empty file", "bytes=-10", 0, 0, 0, false, ErrRangeNotSatisfiable},
		{"wrong unit", "items=0-10", 1000, 0, 0, false, ErrMalformedRange},
		{"reversed", "bytes=200-100", 1000, 0, 0, false, ErrMalformedRange},
		{"garbage start", "bytes=x-100", 1000, 0, 0, false, ErrMalformedRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrMalformedRange},
		{"no dash", "bytes=100", 1000, 0, 0, false, ErrMalformedRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br, ok, err := ParseByteRange(tt.header, tt.size)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (br.First != tt.wantFirst || br.Last != tt.wantLast) {
				t.Errorf("range = %d-%d, want %d-%d", br.First, br.Last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func writeMedia(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileServer(t *testing.T) {
	path := writeMedia(t, "clip.mp4", "0123456789")
	srv := NewFileServer(testLogger())

	tests := []struct {
		name       string
		method     string
		rangeHdr   string
		wantStatus int
		wantBody   string
		wantRange  string
	}{
		{"full", http.MethodGet, "", http.StatusOK, "0123456789", ""},
		{"partial", http.MethodGet, "bytes=2-5", http.StatusPartialContent, "2345", "bytes 2-5/10"},
		{"malformed falls back to full", http.MethodGet, "pages=1", http.StatusOK, "0123456789", ""},
		{"unsatisfiable", http.MethodGet, "bytes=20-", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10"},
		{"head has no body", http.MethodHead, "", http.StatusOK, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/media", nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			rec := httptest.NewRecorder()
			if err := srv.ServeFile(rec, req, path); err != nil {
				t.Fatalf("ServeFile() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusRequestedRangeNotSatisfiable && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
		})
	}
}

func TestFileServer_HeadersAndMissing(t *testing.T) {
	path := writeMedia(t, "still.png", "abc")
	srv := NewFileServer(testLogger())

	rec := httptest.NewRecorder()
	if err := srv.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/media", nil), path); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges not set")
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Content-Length") != "3" {
		t.Errorf("Content-Length = %q", rec.Header().Get("Content-Length"))
	}

	for _, p := range []string{filepath.Join(t.TempDir(), "gone.mp4"), t.TempDir()} {
		rec = httptest.NewRecorder()
		if err := srv.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/media", nil), p); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, rec.Code)
		}
	}
}
