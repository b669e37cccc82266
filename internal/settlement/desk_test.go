package settlement

import (
	"context"
	"testing"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/trader"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopFillsRestingOrdersThroughDesk(t *testing.T) {
	oracle := market.NewStaticOracle(map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(105)})
	desk := trader.NewDesk(ledger.DefaultParams(), oracle)
	desk.Start()
	defer desk.Stop()

	limit := decimal.NewFromInt(100)
	res, err := desk.PlaceOrder(context.Background(), "alice", ledger.OrderRequest{
		Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit,
		Quantity: decimal.NewFromInt(1), LimitPrice: &limit,
	})
	require.NoError(t, err)
	require.False(t, res.Executed)

	loop := NewLoop(desk, 5*time.Millisecond, false)
	loop.Start(context.Background())
	defer loop.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, desk.PendingCount(), "mark above limit keeps the order resting")

	require.NoError(t, oracle.Set("BTCUSDT", decimal.NewFromInt(99), market.SourceAPI))
	require.Eventually(t, func() bool { return desk.PendingCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	trades := desk.ListTrades("alice", 0)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(limit))
	assert.GreaterOrEqual(t, loop.Stats().Filled, uint64(1))
}
