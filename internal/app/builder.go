package app

import (
	"context"
	"fmt"

	"papertrade/internal/config"
	"papertrade/internal/ledger"
	"papertrade/internal/logger"
	"papertrade/internal/settlement"
	"papertrade/internal/trader"
	deskhttp "papertrade/internal/transport/http/desk"
)

type AppBuilder struct {
	cfg *config.Config

	marketStackFn func(context.Context, *config.Config) (*MarketStack, error)
	journalFn     func(config.StoreConfig) (*journalStack, error)
	fillSinksFn   func(config.NotifyConfig) (*sinkStack, error)
	httpFn        func(config.AppConfig, deskhttp.ServerConfig) (*deskhttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithMarketStack replaces the price oracle construction (tests).
func WithMarketStack(fn func(context.Context, *config.Config) (*MarketStack, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.marketStackFn = fn
		}
	}
}

func WithFillSinks(fn func(config.NotifyConfig) (*sinkStack, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.fillSinksFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		journalFn:     buildJournal,
		fillSinksFn:   buildFillSinks,
		httpFn:        buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	params, err := cfg.Ledger.Params(cfg.Settlement.ProtectiveExits)
	if err != nil {
		return nil, err
	}

	ms, err := b.marketStackFn(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, ms.closers...)

	js, err := b.journalFn(cfg.Store)
	if err != nil {
		return nil, err
	}

	ss, err := b.fillSinksFn(cfg.Notify)
	if err != nil {
		if js.store != nil {
			_ = js.store.Close()
		}
		return nil, err
	}
	closers = append(closers, ss.closers...)

	sinks := append([]trader.FillSink(nil), ss.sinks...)
	if js.sink != nil {
		sinks = append(sinks, js.sink)
	}
	deskOpts := []trader.Option{trader.WithFillSinks(sinks...)}
	if js.store != nil {
		deskOpts = append(deskOpts, trader.WithEventStore(js.store))
	}
	if ms.Guarded != nil {
		deskOpts = append(deskOpts, trader.WithLedgerOptions(ledger.WithSettlementPrices(ms.Guarded)))
	}
	desk := trader.NewDesk(params, ms.Oracle, deskOpts...)

	loop := settlement.NewLoop(desk, cfg.Settlement.Interval(), cfg.Settlement.RunImmediately)

	a := &App{
		cfg:     cfg,
		desk:    desk,
		oracle:  ms.Oracle,
		guarded: ms.Guarded,
		loop:    loop,
		feed:    ms.Feed,
		closers: closers,
	}

	srvCfg := deskhttp.ServerConfig{
		Desk:    desk,
		Prices:  ms.Oracle,
		Limiter: deskhttp.NewUserLimiter(cfg.Ledger.MaxOrdersPerMinute),
		Health:  a.Health,
	}
	if js.journal != nil {
		srvCfg.Journal = js.journal
	}
	if js.events != nil {
		srvCfg.Events = js.events
	}
	a.http, err = b.httpFn(cfg.App, srvCfg)
	if err != nil {
		desk.Stop()
		return nil, err
	}

	a.Summary = &StartupSummary{
		Env:             cfg.App.Env,
		HTTPAddr:        a.http.Addr(),
		Params:          params,
		SettleInterval:  cfg.Settlement.Interval(),
		Symbols:         ms.Symbols(),
		FeedSymbols:     cfg.Market.Redis.Symbols,
		FeedEnabled:     ms.Feed != nil,
		BreakerEnabled:  ms.Guarded != nil,
		Store:           js.describe,
		Notifiers:       ss.names,
		OrdersPerMinute: cfg.Ledger.MaxOrdersPerMinute,
	}
	logger.Infof("papertrade ready: %d symbols priced, store=%s", len(a.Summary.Symbols), js.describe)
	return a, nil
}

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}
