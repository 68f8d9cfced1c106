package media

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileService streams local media to the editor's media elements.
type FileService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, path string) error
}

// FileServer serves single files with byte-range support. Errors returned
// from ServeFile happened before anything was written.
type FileServer struct {
	logger *slog.Logger
}

func NewFileServer(logger *slog.Logger) *FileServer {
	return &FileServer{logger: logger}
}

func (s *FileServer) ServeFile(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "media not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	br, partial, err := ParseByteRange(r.Header.Get("Range"), size)
	switch err {
	case nil:
	case ErrRangeNotSatisfiable:
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	default:
		// A malformed header is ignored and the whole file is sent.
		partial = false
	}

	status := http.StatusOK
	length := size
	if partial {
		status = http.StatusPartialContent
		length = br.Length()
		h.Set("Content-Range", br.ContentRange(size))
		if _, err := f.Seek(br.First, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek media: %w", err)
		}
	}
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}

	start := time.Now()
	n, err := io.CopyN(w, f, length)
	if err != nil && s.logger != nil {
		// Seeking players drop connections mid-stream.
		s.logger.Debug("media stream ended early", "path", filepath.Base(path), "sent", n, "want", length, "error", err)
		return nil
	}
	if s.logger != nil {
		s.logger.Debug("media served", "path", filepath.Base(path), "bytes", n, "partial", partial, "duration", time.Since(start))
	}
	return nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
