package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var errOutsideMediaDir = errors.New("path is outside the media directory")

// mediaHandler streams a local media file with range support. Only files
// under the configured media directory are served.
func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("path")
		if raw == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}
		if cfg.Files == nil || cfg.MediaDir == "" {
			WriteError(w, http.StatusServiceUnavailable, "media serving is not configured", "UNAVAILABLE")
			return
		}

		path, err := resolveMediaPath(cfg.MediaDir, raw)
		if err != nil {
			WriteError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
			return
		}

		if err := cfg.Files.ServeFile(w, r, path); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("media serve failed", "path", path, "error", err)
			}
			WriteError(w, http.StatusInternalServerError, "failed to serve media", "INTERNAL_ERROR")
		}
	}
}

// resolveMediaPath maps raw, absolute or relative to root, to a cleaned
// absolute path that stays inside root.
func resolveMediaPath(root, raw string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return "", errOutsideMediaDir
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideMediaDir
	}
	return path, nil
}
