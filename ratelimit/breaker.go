package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/resilience"
)

// defaultCooldown is the inner breaker's fixed SleepWindow and the base of
// the cooldown ladder reported by CurrentCooldown, which doubles it on each
// repeated trip.
const defaultCooldown = 30 * time.Second

// maxCooldown caps the cooldown ladder reported by CurrentCooldown.
const maxCooldown = 10 * time.Minute

// Breaker wraps resilience.CircuitBreaker with the executor's specific trip
// policy: three infra failures within a window opens the breaker. Each trip
// advances a cooldown ladder (defaultCooldown, doubling on each repeated
// trip, capped at maxCooldown) that CurrentCooldown reports. The ladder does
// not change the inner breaker's SleepWindow, which stays at
// defaultCooldown, so the open to half-open timing is the same on every trip.
type Breaker struct {
	inner *resilience.CircuitBreaker

	mu          sync.Mutex
	tripCount   int
	currentCool time.Duration
}

// NewBreaker creates a Breaker with the executor's default trip policy
// (three failures trips it; fixed 30s sleep window; the reported cooldown
// ladder starts at 30s and doubles on each subsequent trip).
func NewBreaker(logger core.Logger) (*Breaker, error) {
	cfg := resilience.DefaultConfig()
	cfg.Name = "executor-bot-interface"
	cfg.VolumeThreshold = 3
	cfg.ErrorThreshold = 1.0
	cfg.SleepWindow = defaultCooldown
	cfg.Logger = logger

	inner, err := resilience.NewCircuitBreaker(cfg)
	if err != nil {
		return nil, err
	}

	b := &Breaker{inner: inner, currentCool: defaultCooldown}
	inner.AddStateChangeListener(func(name string, from, to resilience.CircuitState) {
		if to == resilience.StateOpen {
			b.onTrip()
		}
	})
	return b, nil
}

func (b *Breaker) onTrip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripCount++
	cool := defaultCooldown
	for i := 1; i < b.tripCount; i++ {
		cool *= 2
		if cool >= maxCooldown {
			cool = maxCooldown
			break
		}
	}
	b.currentCool = cool
}

// CanExecute reports whether a dispatch attempt is currently allowed.
func (b *Breaker) CanExecute() bool {
	return b.inner.CanExecute()
}

// RecordSuccess resets the internal failure counter (§4.H, recordSuccess()
// resets counter) and the trip-count escalation ladder.
func (b *Breaker) RecordSuccess() {
	b.inner.RecordSuccess()
	b.mu.Lock()
	b.tripCount = 0
	b.currentCool = defaultCooldown
	b.mu.Unlock()
}

// RecordFailure records an infra failure toward the trip threshold.
func (b *Breaker) RecordFailure() {
	b.inner.RecordFailure()
}

// Execute runs fn through the breaker, recording success/failure.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	return b.inner.Execute(ctx, fn)
}

// State returns the breaker's current state string ("closed"/"open"/
// "half-open").
func (b *Breaker) State() string {
	return b.inner.GetState()
}

// CurrentCooldown returns the ladder's cooldown for the most recent trip
// (defaultCooldown before any trip or after a success). The value is
// reported only; the inner breaker does not use it.
func (b *Breaker) CurrentCooldown() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentCool
}
