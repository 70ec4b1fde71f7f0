// Package ratelimit limits request rates per key, either in process or
// shared across instances through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Key builds the limiter key for a principal and action.
func Key(principal, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", principal, action)
}

// LocalLimiter keeps a token bucket per key in process memory. Buckets are
// refilled at perMinute tokens per minute up to burst.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

var _ Limiter = (*LocalLimiter)(nil)

// NewLocalLimiter creates a LocalLimiter. A burst below 1 is raised to 1.
func NewLocalLimiter(perMinute, burst int) *LocalLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    burst,
	}
}

// Allow implements Limiter.
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow(), nil
}
