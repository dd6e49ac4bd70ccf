package redis

import (
	"context"
	"errors"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/circuitbreaker"
)

// ProgressCache implements progression.Cache using the generic Cache.
// Calls go through a circuit breaker; while it is open every read is a miss
// and writes are skipped, so callers fall through to the database.
type ProgressCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *ProgressCache {
	if breaker == nil {
		breaker = circuitbreaker.CacheBreaker(nil)
	}
	return &ProgressCache{cache: cache, breaker: breaker}
}

var _ progression.Cache = (*ProgressCache)(nil)

// GetSnapshot returns the cached snapshot; ok is false on a miss.
func (p *ProgressCache) GetSnapshot(ctx context.Context, userID shared.UserID) (progression.Snapshot, bool, error) {
	var snap progression.Snapshot
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		err := p.cache.Get(ctx, ProgressKey(userID.String()), &snap)
		if errors.Is(err, ErrCacheMiss) {
			// a miss is a healthy answer
			return nil
		}
		return err
	})
	if err != nil {
		if circuitbreaker.IsRejected(err) {
			return progression.Snapshot{}, false, nil
		}
		return progression.Snapshot{}, false, err
	}
	if snap.UserID == "" {
		return progression.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// SetSnapshot stores a snapshot with ttl; zero ttl uses TTLProgressSnapshot.
func (p *ProgressCache) SetSnapshot(ctx context.Context, snap progression.Snapshot, ttl time.Duration) error {
	if ttl == 0 {
		ttl = TTLProgressSnapshot
	}
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.cache.Set(ctx, ProgressKey(snap.UserID.String()), snap, ttl)
	})
	if circuitbreaker.IsRejected(err) {
		return nil
	}
	return err
}

// Invalidate removes a user's snapshot.
func (p *ProgressCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.cache.Delete(ctx, ProgressKey(userID.String()))
	})
}
