package app

import (
	"context"
	"fmt"

	"papertrade/internal/config"
	"papertrade/internal/logger"
	"papertrade/internal/market"
	"papertrade/internal/settlement"
	"papertrade/internal/trader"
	deskhttp "papertrade/internal/transport/http/desk"

	"golang.org/x/sync/errgroup"
)

// App wires the desk, the settlement loop, price feeds and the HTTP API.
type App struct {
	cfg     *config.Config
	desk    *trader.Desk
	oracle  *market.StaticOracle
	guarded *market.GuardedOracle
	loop    *settlement.Loop
	feed    *market.RedisFeed
	http    *deskhttp.Server
	closers []func() error
	Summary *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.desk == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	a.desk.Start()
	defer a.shutdown()

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("desk http server error: %w", err)
			}
			return nil
		})
	}
	if a.feed != nil {
		group.Go(func() error {
			return a.feed.Run(ctx)
		})
	}
	group.Go(func() error {
		return a.loop.Run(ctx)
	})
	return group.Wait()
}

func (a *App) shutdown() {
	a.desk.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}
	logger.Infof("papertrade stopped")
}

// Follow applies hot-reloadable settings whenever w reloads.
func (a *App) Follow(w *config.Watcher) {
	if a == nil || w == nil {
		return
	}
	w.Subscribe(a.applyConfig)
}

// applyConfig updates the log level and re-seeds configured prices. Other
// sections need a restart.
func (a *App) applyConfig(snap config.Snapshot) {
	cfg := snap.Config
	logger.SetLevel(cfg.App.LogLevel)
	seed, err := cfg.Market.PriceSeed()
	if err != nil {
		logger.Warnf("config v%d: %v", snap.Version, err)
		return
	}
	n := a.oracle.SetAll(seed, market.SourceConfig)
	logger.Infof("config v%d applied: log_level=%s prices=%d", snap.Version, cfg.App.LogLevel, n)
}

// Desk exposes the trading desk (for tests and embedding).
func (a *App) Desk() *trader.Desk {
	if a == nil {
		return nil
	}
	return a.desk
}

func (a *App) Oracle() *market.StaticOracle {
	if a == nil {
		return nil
	}
	return a.oracle
}

// Health reports live counters for /healthz.
func (a *App) Health() map[string]any {
	out := map[string]any{
		"users":          len(a.desk.Users()),
		"pending_orders": a.desk.PendingCount(),
	}
	if a.loop != nil {
		out["settlement"] = a.loop.Stats()
	}
	if a.guarded != nil {
		if open := a.guarded.OpenSymbols(); len(open) > 0 {
			out["unpriced_symbols"] = open
		}
	}
	return out
}
