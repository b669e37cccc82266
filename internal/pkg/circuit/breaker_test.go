package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker("price", 2, time.Minute)
	cb.nowFn = clock.now
	cb.SetStateChangeHandler(func(string, State, State) {})

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	clock.t = clock.t.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("price", 2, time.Minute)
	cb.SetStateChangeHandler(func(string, State, State) {})
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
}

func TestSetIsKeyed(t *testing.T) {
	s := NewSet("oracle", 1, time.Minute)
	a := s.Get("BTC")
	assert.Same(t, a, s.Get("BTC"))
	a.SetStateChangeHandler(func(string, State, State) {})
	a.RecordFailure()

	assert.Equal(t, []string{"BTC"}, s.Open())
	assert.True(t, s.Get("ETH").Allow())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "HALF-OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestHalfOpenAllowsSingleTrial(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker("price", 1, time.Second)
	cb.nowFn = clock.now
	cb.SetStateChangeHandler(func(string, State, State) {})

	cb.RecordFailure()
	opened := cb.Counts()
	assert.Equal(t, StateOpen, opened.State)
	assert.Equal(t, clock.t, opened.OpenedAt)

	clock.t = clock.t.Add(time.Second)
	assert.True(t, cb.Allow(), "first trial call")
	assert.False(t, cb.Allow(), "second caller waits for the trial call")
	cb.RecordSuccess()
	assert.True(t, cb.Allow())
	assert.Zero(t, cb.Counts().ConsecutiveFailures)
}

func TestDo(t *testing.T) {
	cb := NewCircuitBreaker("price", 1, time.Hour)
	var transitions []State
	cb.SetStateChangeHandler(func(_ string, _, to State) { transitions = append(transitions, to) })

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Do(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Do(func() error { return nil }), ErrOpen)
	assert.Equal(t, []State{StateOpen}, transitions)
}
