package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFixedTimeAfter(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before anchor", anchor.Add(-time.Second), anchor},
		{"at anchor", anchor, anchor.Add(5 * time.Second)},
		{"mid interval", anchor.Add(7 * time.Second), anchor.Add(10 * time.Second)},
		{"on boundary", anchor.Add(10 * time.Second), anchor.Add(15 * time.Second)},
		{"skips missed ticks", anchor.Add(31 * time.Second), anchor.Add(35 * time.Second)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextFixedTimeAfter(anchor, 5*time.Second, tc.now))
		})
	}
}

func TestIntervalSchedulerRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(ctx, "test", 5*time.Millisecond)
	s.RunImmediately = true

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Start(func() { runs.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestIntervalSchedulerRejectsInvalidInterval(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), "", 0)
	called := false
	s.Start(func() { called = true })
	assert.False(t, called)
}

func TestIntervalSchedulerCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewIntervalScheduler(ctx, "", time.Hour)
	s.RunImmediately = true
	called := false
	s.Start(func() { called = true })
	assert.False(t, called)
}
