package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window limiter whose counters live in Redis,
// so every API instance shares the same budget per client.
type RateLimiter struct {
	cache  *Cache
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window for each identifier.
func NewRateLimiter(cache *Cache, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{cache: cache, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one request for identifier and reports whether it fits the window.
func (r *RateLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	count, err := r.cache.IncrWithExpiry(ctx, RateLimitKey(identifier, slot), r.window)
	if err != nil {
		return false, err
	}
	return count <= r.limit, nil
}
