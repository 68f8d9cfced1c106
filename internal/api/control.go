package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-studio/internal/interaction"
	"github.com/heimdex/heimdex-studio/internal/studio"
)

func pointerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PointerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "BAD_REQUEST")
			return
		}

		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		resp, err := applyPointer(sess, req)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// applyPointer routes one pointer event to the session. It is shared by the
// HTTP endpoint and the frame stream.
func applyPointer(sess *studio.Session, req PointerRequest) (PointerResponse, error) {
	if req.TrackAreaWidth > 0 {
		sess.SetTrackAreaWidth(req.TrackAreaWidth)
	}

	var resp PointerResponse
	switch req.Action {
	case "down":
		target := interaction.Target{ClipID: req.ClipID, Zone: req.Zone}
		if err := sess.PointerDown(target, req.X); err != nil {
			return resp, err
		}
	case "move":
		sess.PointerMove(req.X)
	case "up":
		committed, err := sess.PointerUp(req.X)
		if err != nil {
			return resp, err
		}
		resp.Committed = committed
		if committed {
			resp.Timeline = sess.Snapshot()
		}
	case "cancel":
		sess.PointerCancel()
	default:
		return resp, fmt.Errorf("%w: unknown pointer action %q", errBadCommand, req.Action)
	}

	view := sess.View()
	resp.Mode = view.Mode
	resp.Ghost = view.Ghost
	return resp, nil
}

func playbackControlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlaybackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := applyPlayback(sess, req); err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sess.Tick(r.Context(), 0))
	}
}

func applyPlayback(sess *studio.Session, req PlaybackRequest) error {
	if req.Loop != nil {
		sess.SetLoop(*req.Loop)
	}
	switch req.Action {
	case "play":
		sess.Play()
	case "pause":
		sess.Pause()
	case "toggle":
		sess.Toggle()
	case "seek":
		if req.Time == nil {
			return fmt.Errorf("%w: seek requires time", errBadCommand)
		}
		sess.Seek(*req.Time)
	case "":
		if req.Loop == nil {
			return fmt.Errorf("%w: action is required", errBadCommand)
		}
	default:
		return fmt.Errorf("%w: unknown playback action %q", errBadCommand, req.Action)
	}
	return nil
}

// frameHandler renders the current frame without advancing the clock.
func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, sess.Tick(r.Context(), 0))
	}
}

func noticesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		notices, err := cfg.Studio.Notices(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeEditError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NoticesResponse{Notices: notices})
	}
}
