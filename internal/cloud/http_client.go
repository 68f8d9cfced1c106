package cloud

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/heimdex/heimdex-studio/internal/timeline"
)

// UploadError represents a non-2xx answer from the timeline endpoint.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("timeline upload failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *UploadError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// TimelineSnapshot is the body exchanged with the remote backend.
type TimelineSnapshot struct {
	ProjectID string          `json:"project_id"`
	Timeline  *timeline.State `json:"timeline"`
	SavedAt   time.Time       `json:"saved_at"`
}

// HTTPClient stores timeline snapshots on the Heimdex backend.
type HTTPClient struct {
	baseURL    string
	token      string
	orgSlug    string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token, orgSlug string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		orgSlug: orgSlug,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

// SaveSnapshot sends the whole timeline for projectID.
func (c *HTTPClient) SaveSnapshot(ctx context.Context, projectID string, st *timeline.State) error {
	_, err := c.PutTimeline(ctx, projectID, st)
	return err
}

// PutTimeline uploads st and returns the timeline the backend answered with.
// An empty response body means the backend accepted st unchanged.
func (c *HTTPClient) PutTimeline(ctx context.Context, projectID string, st *timeline.State) (*timeline.State, error) {
	body, err := json.Marshal(TimelineSnapshot{ProjectID: projectID, Timeline: st, SavedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal timeline snapshot: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, projectID, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.logger != nil {
		c.logger.Debug("uploading timeline",
			"url", req.URL.String(),
			"host", req.Host,
			"project_id", projectID,
			"body_bytes", len(body),
		)
	}

	respBody, err := c.do(req, 1<<20)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return st, nil
	}

	var result TimelineSnapshot
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal timeline response: %w", err)
	}
	if result.Timeline == nil {
		return st, nil
	}
	return result.Timeline, nil
}

// GetTimeline fetches the backend's copy of a project's timeline.
func (c *HTTPClient) GetTimeline(ctx context.Context, projectID string) (*timeline.State, error) {
	req, err := c.newRequest(ctx, http.MethodGet, projectID, nil)
	if err != nil {
		return nil, err
	}

	respBody, err := c.do(req, 8<<20)
	if err != nil {
		return nil, err
	}

	var result TimelineSnapshot
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal timeline response: %w", err)
	}
	if result.Timeline == nil {
		return nil, fmt.Errorf("timeline response for %s has no timeline", projectID)
	}
	return result.Timeline, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, projectID string, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/api/projects/%s/timeline", c.baseURL, url.PathEscape(projectID))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Heimdex-Request-Id", generateRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Heimdex-Device-Id", c.deviceID)
	}

	// The backend resolves the org from the Host subdomain.
	if c.orgSlug != "" {
		req.Host = c.orgSlug + ".app.heimdex.local"
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, limit int64) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, limit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
