// Package ratelimit paces outbound requests per host. The inter-request
// delay is a hard sequencing requirement for the hosting platforms we
// scrape: bursty clients get throttled or blocked upstream.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per target host.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval rate.Limit
	burst    int
}

// NewFixedDelay builds a limiter that admits one request per delay per
// host, with no burst allowance. A non-positive delay disables pacing.
func NewFixedDelay(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		interval: limit,
		burst:    1,
	}
}

// Wait blocks until the host's bucket admits the request or the context
// finishes.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.interval, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}
