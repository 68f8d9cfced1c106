package api

import (
	"time"

	"github.com/heimdex/heimdex-studio/internal/interaction"
	"github.com/heimdex/heimdex-studio/internal/persist"
	"github.com/heimdex/heimdex-studio/internal/store"
	"github.com/heimdex/heimdex-studio/internal/studio"
	"github.com/heimdex/heimdex-studio/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string         `json:"state"`
	OpenSessions int            `json:"open_sessions"`
	Playing      int            `json:"playing"`
	DriverPaused bool           `json:"driver_paused"`
	Persistence  *persist.Stats `json:"persistence,omitempty"`
}

type CreateProjectRequest struct {
	Name   string           `json:"name"`
	Scenes []timeline.Scene `json:"scenes"`
}

type ProjectResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Revision  int64           `json:"revision"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Timeline  *timeline.State `json:"timeline,omitempty"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type TimelineResponse struct {
	Timeline *timeline.State `json:"timeline"`
}

type ToggleKeyframeRequest struct {
	ClipID   string            `json:"clip_id"`
	Property timeline.Property `json:"property"`
	// Time defaults to the playhead.
	Time *float64 `json:"time,omitempty"`
}

type PointerRequest struct {
	Action         string           `json:"action"`
	ClipID         string           `json:"clip_id,omitempty"`
	Zone           interaction.Zone `json:"zone"`
	X              float64          `json:"x"`
	TrackAreaWidth float64          `json:"track_area_width_px,omitempty"`
}

type PointerResponse struct {
	Mode      interaction.Mode   `json:"mode"`
	Ghost     *interaction.Ghost `json:"ghost,omitempty"`
	Committed bool               `json:"committed"`
	Timeline  *timeline.State    `json:"timeline,omitempty"`
}

type PlaybackRequest struct {
	Action string   `json:"action"`
	Time   *float64 `json:"time,omitempty"`
	Loop   *bool    `json:"loop,omitempty"`
}

type NoticesResponse struct {
	Notices []persist.Notice `json:"notices"`
}

// StreamCommand is a message sent by the editor over the frame stream.
type StreamCommand struct {
	Pointer  *PointerRequest  `json:"pointer,omitempty"`
	Playback *PlaybackRequest `json:"playback,omitempty"`
}

// StreamMessage is a message pushed to the editor over the frame stream.
type StreamMessage struct {
	Type  string       `json:"type"`
	Frame *studio.View `json:"frame,omitempty"`
	Error string       `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func ProjectToResponse(p *store.Project, withTimeline bool) ProjectResponse {
	resp := ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Revision:  p.Revision,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
	if withTimeline {
		resp.Timeline = p.State
	}
	return resp
}
