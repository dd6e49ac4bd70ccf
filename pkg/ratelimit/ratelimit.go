// Package ratelimit provides an in-process token bucket limiter keyed by client.
//
// It backs the HTTP API on single-node deployments that run without Redis.
// Each instance keeps its own buckets; use the Redis limiter when several
// API instances must share one budget.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN BUCKET
// ══════════════════════════════════════════════════════════════════════════════

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// refill adds tokens for the time elapsed since the last refill, capped at capacity.
func (b *bucket) refill(now time.Time, rate, capacity float64) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * rate
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now
}

// ══════════════════════════════════════════════════════════════════════════════
// LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// Limiter allows a sustained rate per identifier with bursts up to Burst.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rate  float64 // tokens per second
	burst float64

	// buckets idle longer than this are full again and can be dropped
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithBurst sets the bucket capacity. Defaults to the per-minute limit.
func WithBurst(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.burst = float64(n)
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New allows perMinute requests per minute for each identifier.
func New(perMinute int, opts ...Option) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(perMinute) / 60,
		burst:   float64(perMinute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.idleTTL = time.Duration(l.burst / l.rate * float64(time.Second))
	l.lastSweep = l.now()
	return l
}

// Allow consumes one token for identifier. It never returns an error;
// the signature matches the shared limiter interface.
func (l *Limiter) Allow(_ context.Context, identifier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[identifier]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[identifier] = b
	}
	b.refill(now, l.rate, l.burst)

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// WaitTime returns how long identifier must wait for its next token.
func (l *Limiter) WaitTime(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identifier]
	if !ok {
		return 0
	}
	b.refill(l.now(), l.rate, l.burst)
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep drops idle buckets at most once per idleTTL. Must be called with lock held.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for id, b := range l.buckets {
		if now.Sub(b.lastRefill) >= l.idleTTL {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}
