// Package breaker implements a per-retailer circuit breaker.
//
// Each retailer owns an independent Breaker instance, so a string of
// failures on one site never gates fetches against another.
package breaker

import (
	"sync"
	"time"
)

// State is the current mode of a circuit breaker.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Breaker gates calls to a failing dependency. It is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration

	state      State
	failures   int
	lastFailAt time.Time
}

// New creates a closed Breaker that opens after threshold consecutive
// failures and allows a trial call once recovery has elapsed.
func New(threshold int, recovery time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		recovery:  recovery,
		state:     StateClosed,
	}
}

// CanExecute reports whether a call should be attempted. When the breaker is
// open and the recovery timeout has elapsed, it moves to half-open and the
// caller's next call is treated as a trial.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailAt) >= b.recovery {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure counter and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure increments the failure counter and opens the breaker when
// the threshold is reached. A failed half-open trial reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailAt = time.Now()

	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
	}
}

// State returns the breaker's current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
