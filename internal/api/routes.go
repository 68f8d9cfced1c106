package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-studio/internal/interaction"
	"github.com/heimdex/heimdex-studio/internal/studio"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

var errBadCommand = errors.New("invalid command")

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", listProjectsHandler(cfg))
			r.Post("/", createProjectHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))
				r.Put("/timeline", importTimelineHandler(cfg))

				r.Patch("/clips/{clipID}", updateClipHandler(cfg))
				r.Delete("/clips/{clipID}", removeClipHandler(cfg))
				r.Post("/subtitles", addSubtitleHandler(cfg))
				r.Patch("/subtitles/{subID}", updateSubtitleHandler(cfg))
				r.Delete("/subtitles/{subID}", removeSubtitleHandler(cfg))
				r.Post("/keyframes/toggle", toggleKeyframeHandler(cfg))
				r.Post("/assets", insertAssetHandler(cfg))
				r.Put("/mix", setMixHandler(cfg))

				r.Post("/pointer", pointerHandler(cfg))
				r.Post("/playback", playbackControlHandler(cfg))
				r.Get("/frame", frameHandler(cfg))
				r.Get("/notices", noticesHandler(cfg))
				r.Get("/stream", streamHandler(cfg))
				r.Post("/export/edl", exportEDLHandler(cfg))
			})
		})

		r.With(LoopbackGuard()).Method(http.MethodGet, "/media", mediaHandler(cfg))
		r.With(LoopbackGuard()).Method(http.MethodHead, "/media", mediaHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Studio.Status()
		resp := StatusResponse{
			State:        "idle",
			OpenSessions: st.OpenSessions,
			Playing:      st.Playing,
		}
		if st.Playing > 0 {
			resp.State = "playing"
		}
		if cfg.Driver != nil && cfg.Driver.IsPaused() {
			resp.State = "paused"
			resp.DriverPaused = true
		}
		if cfg.Writer != nil {
			stats := cfg.Writer.Stats()
			resp.Persistence = &stats
			if stats.Failed > 0 && resp.State == "idle" {
				resp.State = "degraded"
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Studio.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p, false)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p, err := cfg.Studio.CreateProject(r.Context(), req.Name, req.Scenes)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p, true))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Studio.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p, true))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Studio.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var st timeline.State
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid timeline: "+err.Error(), "BAD_REQUEST")
			return
		}

		next, err := cfg.Studio.ImportProject(r.Context(), chi.URLParam(r, "id"), &st)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: next})
	}
}

// openSession resolves the {id} URL parameter to a live session, writing the
// error response itself when it cannot.
func openSession(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess, err := cfg.Studio.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEditError(w, err)
		return nil, false
	}
	return sess, true
}

func writeEditError(w http.ResponseWriter, err error) {
	switch {
	case studio.IsNotFound(err),
		errors.Is(err, timeline.ErrClipNotFound),
		errors.Is(err, timeline.ErrTrackNotFound),
		errors.Is(err, timeline.ErrSubtitleNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, timeline.ErrInvalidWindow),
		errors.Is(err, timeline.ErrInvalidKind),
		errors.Is(err, timeline.ErrInvalidState),
		errors.Is(err, errBadCommand),
		errors.Is(err, interaction.ErrInvalidZone),
		errors.Is(err, interaction.ErrEmptyTimeline):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
