package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-studio/internal/export"
)

// exportEDLHandler writes one track of a project as a CMX 3600 EDL into the
// requested directory.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p, err := cfg.Studio.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEditError(w, err)
			return
		}

		resp, err := export.WriteEDL(p.State, p.Name, req)
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, resp)
		case errors.Is(err, export.ErrUnsupportedFormat), errors.Is(err, export.ErrInvalidOutputDir):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		case errors.Is(err, export.ErrNoClips), errors.Is(err, export.ErrNoVisualTrack):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "UNRESOLVABLE_CLIPS")
		default:
			writeEditError(w, err)
		}
	}
}
