// Package ratelimit implements the executor's infra-failure circuit breaker
// and steps/minute token bucket (§4.H).
package ratelimit

import (
	"sync"
	"time"
)

// defaultMaxStepsPerMinute is the default token bucket capacity and refill
// rate when the caller doesn't override it.
const defaultMaxStepsPerMinute = 60

// TokenBucket gates step dispatch to maxStepsPerMinute. Only live mode
// consumes tokens; shadow mode must always be able to observe, so callers
// check shadow/live before calling Take.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       float64
	tokens         float64
	refillPerSec   float64
	lastRefillTime time.Time
	now            func() time.Time
}

// Option configures a TokenBucket at construction.
type Option func(*TokenBucket)

// WithMaxStepsPerMinute overrides the default 60 steps/minute capacity.
func WithMaxStepsPerMinute(n int) Option {
	return func(b *TokenBucket) {
		b.capacity = float64(n)
		b.refillPerSec = float64(n) / 60.0
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(b *TokenBucket) { b.now = now }
}

// New creates a TokenBucket starting full.
func New(opts ...Option) *TokenBucket {
	b := &TokenBucket{
		capacity:     defaultMaxStepsPerMinute,
		refillPerSec: defaultMaxStepsPerMinute / 60.0,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = b.capacity
	b.lastRefillTime = b.now()
	return b
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefillTime).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefillTime = now
}

// Take consumes one token if available, returning false if the bucket is
// empty — the executor's tick returns without side effects in that case
// (§4.F step 13, "if live and bucket empty, return (no dry-run side
// effects)").
func (b *TokenBucket) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Available reports the current token count, for diagnostics/metrics.
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}
