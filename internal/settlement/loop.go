// Package settlement drives the periodic re-evaluation of pending orders.
package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/scheduler"
)

const DefaultInterval = 5 * time.Second

// Settler runs one settlement pass. The desk routes it through its event loop
// so passes never overlap with order placement.
type Settler interface {
	Settle(ctx context.Context, trigger string) (ledger.SettleReport, error)
}

type Stats struct {
	Passes  uint64    `json:"passes"`
	Filled  uint64    `json:"filled"`
	Exits   uint64    `json:"exits"`
	Failed  uint64    `json:"failed"`
	LastRun time.Time `json:"last_run"`
}

// Loop is the cancellable handle of the recurring settlement task.
type Loop struct {
	settler        Settler
	interval       time.Duration
	runImmediately bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	passes  atomic.Uint64
	filled  atomic.Uint64
	exits   atomic.Uint64
	failed  atomic.Uint64
	lastRun atomic.Value
}

func NewLoop(settler Settler, interval time.Duration, runImmediately bool) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{settler: settler, interval: interval, runImmediately: runImmediately}
}

// Start launches the loop on its own goroutine. Calling Start on a running
// loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		l.run(ctx)
	}(l.done)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.run(ctx)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	l.running.Store(true)
	defer l.running.Store(false)
	s := scheduler.NewIntervalScheduler(ctx, "settlement", l.interval)
	s.RunImmediately = l.runImmediately
	s.Start(func() { l.RunOnce(ctx) })
	logger.Infof("[settlement] loop stopped after %d passes", l.passes.Load())
}

// RunOnce executes a single pass.
func (l *Loop) RunOnce(ctx context.Context) (ledger.SettleReport, error) {
	passCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()
	report, err := l.settler.Settle(passCtx, "interval")
	l.lastRun.Store(time.Now())
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("[settlement] pass failed: %v", err)
		}
		return report, err
	}
	l.passes.Add(1)
	l.filled.Add(uint64(report.Filled))
	l.exits.Add(uint64(report.Exits))
	l.failed.Add(uint64(report.Failed))
	logger.Debugf("[settlement] pass attempted=%d filled=%d exits=%d failed=%d",
		report.Attempted, report.Filled, report.Exits, report.Failed)
	return report, nil
}

func (l *Loop) Running() bool { return l.running.Load() }

func (l *Loop) Stats() Stats {
	st := Stats{
		Passes: l.passes.Load(),
		Filled: l.filled.Load(),
		Exits:  l.exits.Load(),
		Failed: l.failed.Load(),
	}
	if t, ok := l.lastRun.Load().(time.Time); ok {
		st.LastRun = t
	}
	return st
}
