package cloud

import (
	"context"
	"log/slog"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

// StubClient accepts every snapshot and only logs it. It is used when no
// remote backend is configured.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error {
	if c.logger != nil {
		c.logger.Debug("cloud stub: timeline snapshot", "project_id", projectID, "tracks", len(st.Tracks))
	}
	return nil
}
