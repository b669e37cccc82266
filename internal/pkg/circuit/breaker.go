// Package circuit implements per-key circuit breakers used to stop asking a
// failing price source on every settlement pass.
package circuit

import (
	"errors"
	"sync"
	"time"

	"papertrade/internal/logger"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Counts is a point-in-time view of a breaker.
type Counts struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// CircuitBreaker opens after threshold consecutive failures. Once timeout has
// passed since opening, exactly one trial call is let through; its outcome closes
// or re-opens the breaker.
type CircuitBreaker struct {
	name      string
	threshold int
	timeout   time.Duration
	nowFn     func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trialing bool
	onChange func(name string, from, to State)
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{name: name, threshold: threshold, timeout: timeout, nowFn: time.Now}
}

// SetStateChangeHandler replaces the default log line on transitions. The
// handler runs synchronously under the breaker lock and must not call back.
func (cb *CircuitBreaker) SetStateChangeHandler(fn func(name string, from, to State)) {
	cb.mu.Lock()
	cb.onChange = fn
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{State: cb.state, ConsecutiveFailures: cb.failures, OpenedAt: cb.openedAt}
}

// Allow reports whether a call may proceed and must be paired with
// RecordSuccess or RecordFailure when it returns true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		if cb.nowFn().Sub(cb.openedAt) < cb.timeout {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trialing = true
		return true
	case StateHalfOpen:
		if cb.trialing {
			return false
		}
		cb.trialing = true
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.trialing = false
	if cb.state != StateClosed {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.trialing = false
	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.threshold) {
		cb.openedAt = cb.nowFn()
		cb.setState(StateOpen)
	}
}

// Do runs fn when the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to)
		return
	}
	if to == StateOpen {
		logger.Warnf("[circuit] %s %s -> %s after %d failures, retry in %s", cb.name, from, to, cb.failures, cb.timeout)
		return
	}
	logger.Infof("[circuit] %s %s -> %s", cb.name, from, to)
}
