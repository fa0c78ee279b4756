package action

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per key.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether key may fire now. A key allows limit events per
// window, refilled evenly; a non-positive limit or window never limits.
func (r *rateLimiter) Allow(key string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return true
	}

	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)
		r.limiters[key] = l
	}
	r.mu.Unlock()

	return l.Allow()
}
