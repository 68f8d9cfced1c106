package media

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CachedProber remembers successful probes per URL for a TTL so reopening a
// clip does not hit the network every time.
type CachedProber struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*ProbeResult
}

func NewCachedProber(prober Prober, ttl time.Duration, logger *slog.Logger) *CachedProber {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProber{
		prober:  prober,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*ProbeResult),
	}
}

// Probe returns a cached result if fresh, otherwise re-probes.
func (c *CachedProber) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	c.mu.RLock()
	res, ok := c.entries[rawURL]
	c.mu.RUnlock()
	if ok && time.Since(res.ProbedAt) < c.ttl {
		return res, nil
	}
	return c.Refresh(ctx, rawURL)
}

// Refresh probes rawURL regardless of cache freshness. A failed refresh
// returns the stale entry when there is one.
func (c *CachedProber) Refresh(ctx context.Context, rawURL string) (*ProbeResult, error) {
	res, err := c.prober.Probe(ctx, rawURL)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		stale, ok := c.entries[rawURL]
		if !ok {
			return nil, err
		}
		if c.logger != nil {
			c.logger.Warn("media probe failed, using stale result", "url", rawURL, "error", err)
		}
		return stale, nil
	}
	c.entries[rawURL] = res
	return res, nil
}

func (c *CachedProber) Invalidate(rawURL string) {
	c.mu.Lock()
	delete(c.entries, rawURL)
	c.mu.Unlock()
}

func (c *CachedProber) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// InvalidatePath drops entries for a local file under both its plain path
// and file:// forms.
func (c *CachedProber) InvalidatePath(path string) {
	u := url.URL{Scheme: "file", Path: path}
	c.mu.Lock()
	delete(c.entries, path)
	delete(c.entries, u.String())
	c.mu.Unlock()
}
