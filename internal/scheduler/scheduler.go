package scheduler

import (
	"context"
	"time"

	"papertrade/internal/logger"
)

// IntervalScheduler runs a task on a fixed cadence anchored at its start
// time. A task that overruns skips the ticks it missed instead of queuing them.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, name string, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Name:     name,
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the scheduler's context is done.
func (s *IntervalScheduler) Start(task func()) {
	if s == nil {
		return
	}
	prefix := s.prefix()
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	anchor := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s run_immediately=%v at=%s",
		prefix, s.Interval, s.RunImmediately, anchor.Format(time.RFC3339))

	if s.RunImmediately {
		if s.ctx.Err() != nil {
			return
		}
		task()
	}

	for {
		nextAt := nextFixedTimeAfter(anchor, s.Interval, s.nowFn().UTC())
		if !s.waitUntil(nextAt) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		task()
	}
}

func (s *IntervalScheduler) prefix() string {
	if s.Name == "" {
		return "IntervalScheduler"
	}
	return "IntervalScheduler[" + s.Name + "]"
}

func (s *IntervalScheduler) waitUntil(target time.Time) bool {
	wait := target.Sub(s.nowFn().UTC())
	if wait <= 0 {
		select {
		case <-s.ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(wait)
	select {
	case <-s.ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

func nextFixedTimeAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}
