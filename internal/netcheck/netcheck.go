// Package netcheck reports whether the news backend is reachable and how
// good the link is, so callers can pick request timeouts and show an
// offline badge without issuing a doomed chat request.
package netcheck

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// Effective connection types, using the buckets browsers expose through
// the Network Information API.
const (
	Effective4G     = "4g"
	Effective3G     = "3g"
	Effective2G     = "2g"
	EffectiveSlow2G = "slow-2g"
)

// Round-trip thresholds for the buckets above.
const (
	rtt3G     = 270 * time.Millisecond
	rtt2G     = 1400 * time.Millisecond
	rttSlow2G = 2 * time.Second
)

// Status is a point-in-time snapshot of backend reachability.
type Status struct {
	Online        bool
	EffectiveType string
	RTT           time.Duration
}

// Slow reports whether the link is degraded enough that callers should
// stretch their timeouts.
func (s Status) Slow() bool {
	return s.EffectiveType == Effective2G || s.EffectiveType == EffectiveSlow2G
}

// Timeout scales base by link quality: unchanged on a good link, doubled
// on a 3g-class link, tripled on 2g and worse. Offline returns zero so
// callers fail fast instead of waiting out a timer.
func (s Status) Timeout(base time.Duration) time.Duration {
	if !s.Online {
		return 0
	}
	switch s.EffectiveType {
	case Effective3G:
		return 2 * base
	case Effective2G, EffectiveSlow2G:
		return 3 * base
	default:
		return base
	}
}

// Checker reports the current network status. Implementations may cache.
type Checker interface {
	Check(ctx context.Context) Status
}

const (
	probeTimeout    = 3 * time.Second
	defaultCacheTTL = 10 * time.Second
)

// HTTPChecker probes a health endpoint and classifies the link by the
// observed round-trip time. Results are cached for a short TTL so the
// per-send check stays cheap.
type HTTPChecker struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu      sync.Mutex
	cached  Status
	checked time.Time
}

// NewHTTPChecker builds a checker that probes healthURL with GET.
func NewHTTPChecker(healthURL string) *HTTPChecker {
	return &HTTPChecker{
		url:    healthURL,
		client: &http.Client{Timeout: probeTimeout},
		ttl:    defaultCacheTTL,
	}
}

// Check returns the cached status when fresh, otherwise probes.
func (c *HTTPChecker) Check(ctx context.Context) Status {
	c.mu.Lock()
	if !c.checked.IsZero() && time.Since(c.checked) < c.ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	status := c.probe(ctx)

	c.mu.Lock()
	c.cached = status
	c.checked = time.Now()
	c.mu.Unlock()
	return status
}

// probe treats any HTTP response as proof of reachability; a broken
// backend still answers, whereas a dead link or stopped server does not.
func (c *HTTPChecker) probe(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Status{}
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	rtt := time.Since(start)
	return Status{Online: true, EffectiveType: effectiveType(rtt), RTT: rtt}
}

func effectiveType(rtt time.Duration) string {
	switch {
	case rtt >= rttSlow2G:
		return EffectiveSlow2G
	case rtt >= rtt2G:
		return Effective2G
	case rtt >= rtt3G:
		return Effective3G
	default:
		return Effective4G
	}
}
