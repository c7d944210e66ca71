package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/provenance/internal/validate"
)

// Limiter paces outbound requests per source domain
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per domain.
// A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL's domain is allowed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := validate.Domain(rawURL)
	if domain == "" {
		return fmt.Errorf("rate limit: no host in %q", rawURL)
	}
	return l.limiter(domain).Wait(ctx)
}

// Allow reports whether a request may go out now without waiting
func (l *Limiter) Allow(rawURL string) bool {
	domain := validate.Domain(rawURL)
	if domain == "" {
		return false
	}
	return l.limiter(domain).Allow()
}

func (l *Limiter) limiter(domain string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[domain]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[domain]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[domain] = limiter
	return limiter
}

// SetCrawlDelay slows a domain down to one request per delay, as asked by
// its robots.txt. Delays shorter than the default pace are ignored.
func (l *Limiter) SetCrawlDelay(rawURL string, delay time.Duration) {
	domain := validate.Domain(rawURL)
	if domain == "" || delay <= 0 {
		return
	}
	limit := rate.Every(delay)
	if limit >= l.defaultRate {
		return
	}

	limiter := l.limiter(domain)
	if limiter.Limit() > limit {
		limiter.SetLimit(limit)
		limiter.SetBurst(1)
	}
}
