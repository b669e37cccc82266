package app

import (
	"context"

	"papertrade/internal/config"
	"papertrade/internal/logger"
	"papertrade/internal/market"
	"papertrade/internal/pkg/circuit"
)

// MarketStack groups the price components.
type MarketStack struct {
	Oracle  *market.StaticOracle
	Guarded *market.GuardedOracle
	Feed    *market.RedisFeed

	// closers release connections opened for the stack.
	closers []func() error
}

func (m *MarketStack) Symbols() []string {
	quotes := m.Oracle.Snapshot()
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q.Symbol)
	}
	return out
}

func buildMarketStack(_ context.Context, cfg *config.Config) (*MarketStack, error) {
	seed, err := cfg.Market.PriceSeed()
	if err != nil {
		return nil, err
	}
	stack := &MarketStack{Oracle: market.NewStaticOracle(seed)}
	logger.Infof("price oracle seeded with %d symbols", len(seed))

	if st := cfg.Settlement; st.BreakerThreshold > 0 {
		breakers := circuit.NewSet("oracle", st.BreakerThreshold, st.BreakerTimeout())
		stack.Guarded = market.NewGuardedOracle(stack.Oracle, breakers)
	}

	if rc := cfg.Market.Redis; rc.Enabled {
		store := market.NewRedisStore(market.RedisConfig{
			Addr:      rc.Addr,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
		})
		stack.Feed = market.NewRedisFeed(store, stack.Oracle, rc.Symbols, rc.PollInterval())
		stack.closers = append(stack.closers, store.Close)
		logger.Infof("redis price feed enabled: %s (%d symbols every %s)", rc.Addr, len(rc.Symbols), rc.PollInterval())
	}
	return stack, nil
}
