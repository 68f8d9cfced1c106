package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

// dispatch applies a to the session named in the URL and writes the new
// timeline.
func dispatch(cfg ServerConfig, w http.ResponseWriter, r *http.Request, a timeline.Action, status int) {
	sess, ok := openSession(cfg, w, r)
	if !ok {
		return
	}
	next, err := sess.Dispatch(a)
	if err != nil {
		writeEditError(w, err)
		return
	}
	WriteJSON(w, status, TimelineResponse{Timeline: next})
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch timeline.ClipPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		dispatch(cfg, w, r, timeline.UpdateClip{ClipID: chi.URLParam(r, "clipID"), Patch: patch}, http.StatusOK)
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispatch(cfg, w, r, timeline.RemoveClip{ClipID: chi.URLParam(r, "clipID")}, http.StatusOK)
	}
}

func addSubtitleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub timeline.Subtitle
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		dispatch(cfg, w, r, timeline.AddSubtitle{Subtitle: sub}, http.StatusCreated)
	}
}

func updateSubtitleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch timeline.SubtitlePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		dispatch(cfg, w, r, timeline.UpdateSubtitle{SubtitleID: chi.URLParam(r, "subID"), Patch: patch}, http.StatusOK)
	}
}

func removeSubtitleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dispatch(cfg, w, r, timeline.RemoveSubtitle{SubtitleID: chi.URLParam(r, "subID")}, http.StatusOK)
	}
}

func toggleKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ToggleKeyframeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ClipID == "" {
			WriteError(w, http.StatusBadRequest, "clip_id is required", "BAD_REQUEST")
			return
		}

		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		next, err := sess.ToggleKeyframe(req.ClipID, req.Property, req.Time)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: next})
	}
}

// insertAssetHandler receives a finished asset from the generation service.
func insertAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var asset timeline.Asset
		if err := json.NewDecoder(r.Body).Decode(&asset); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if asset.URL == "" {
			WriteError(w, http.StatusBadRequest, "url is required", "BAD_REQUEST")
			return
		}

		if (asset.Kind == "" || asset.Duration <= 0) && cfg.Prober != nil {
			res, err := cfg.Prober.Probe(r.Context(), asset.URL)
			switch {
			case err != nil && asset.Kind == "":
				WriteError(w, http.StatusUnprocessableEntity, "media_kind missing and probe failed: "+err.Error(), "UNPROBEABLE_ASSET")
				return
			case err == nil:
				if asset.Kind == "" {
					asset.Kind = res.Kind
				}
				if asset.Duration <= 0 {
					asset.Duration = res.Duration
				}
			}
		}
		dispatch(cfg, w, r, timeline.InsertAsset{Asset: asset}, http.StatusOK)
	}
}

func setMixHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mix timeline.SetMix
		if err := json.NewDecoder(r.Body).Decode(&mix); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		dispatch(cfg, w, r, mix, http.StatusOK)
	}
}
