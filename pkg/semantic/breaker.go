package semantic

import (
	"sync"
	"time"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

// BreakerState is the state of a judge's circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through
	BreakerClosed BreakerState = 0
	// BreakerOpen rejects every call
	BreakerOpen BreakerState = 1
	// BreakerHalfOpen lets probe calls through
	BreakerHalfOpen BreakerState = 2
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker stops calling a judge after consecutive failures and probes it
// again once the recovery timeout has elapsed.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker reporting its state under name.
func NewBreaker(name string, failureThreshold, successThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
		state:            BreakerClosed,
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(BreakerClosed))
	return b
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()
	return b.state != BreakerOpen
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.transition(BreakerClosed)
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	case BreakerClosed:
		if b.failures >= b.failureThreshold {
			b.transition(BreakerOpen)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()
	return b.state
}

// maybeHalfOpen must be called with the lock held.
func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
		b.transition(BreakerHalfOpen)
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(state BreakerState) {
	b.state = state
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(state))

	switch state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes = 0
	}
}
