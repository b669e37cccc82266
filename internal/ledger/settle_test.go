package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPrices struct {
	mapPrices
	calls map[string]int
}

func (c *countingPrices) CurrentPrice(symbol string) (decimal.Decimal, error) {
	c.calls[symbol]++
	return c.mapPrices.CurrentPrice(symbol)
}

func TestSettleCachesPricesPerPass(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	counting := &countingPrices{mapPrices: prices, calls: map[string]int{}}
	l := newTestLedger(t, prices, WithSettlementPrices(counting))

	for _, user := range []string{"a", "b", "c"} {
		_, err := l.Place(user, limit(SideBuy, "1", "50"))
		require.NoError(t, err)
	}
	report := l.Settle()
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 1, counting.calls["BTCUSDT"])
}

func TestSettleSkipsUnpricedSymbols(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	prices.set("ETHUSDT", "10")
	l := newTestLedger(t, prices)

	_, err := l.Place("alice", OrderRequest{Symbol: "ETHUSDT", Side: SideBuy, Kind: KindLimit, Quantity: d("1"), LimitPrice: dp("5")})
	require.NoError(t, err)
	_, err = l.Place("alice", limit(SideBuy, "1", "90"))
	require.NoError(t, err)

	delete(prices, "ETHUSDT")
	prices.set("BTCUSDT", "80")
	report := l.Settle()
	assert.Equal(t, 1, report.Unpriced)
	assert.Equal(t, 1, report.Filled)
	assert.Equal(t, []string{"alice"}, report.Touched)
}

func TestSettleIsolatesPanics(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	calls := 0
	l := newTestLedger(t, prices, WithFillHook(func(Fill) {
		calls++
		if calls == 1 {
			panic("observer blew up")
		}
	}))

	_, err := l.Place("alice", limit(SideBuy, "1", "90"))
	require.NoError(t, err)
	_, err = l.Place("bob", limit(SideBuy, "1", "90"))
	require.NoError(t, err)

	prices.set("BTCUSDT", "90")
	report := l.Settle()
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Filled)
	// the failing order was applied before the observer ran and is never refilled
	assert.Zero(t, l.PendingCount())
	assert.Len(t, l.View("alice").Trades, 1)
	assert.Len(t, l.View("bob").Trades, 1)
}

func TestProtectiveExits(t *testing.T) {
	cases := []struct {
		name   string
		side   Side
		sl, tp string
		mark   string
		reason ExitReason
	}{
		{"long stop loss", SideBuy, "90", "120", "89", ExitStopLoss},
		{"long take profit", SideBuy, "90", "120", "120", ExitTakeProfit},
		{"short stop loss", SideSell, "110", "80", "111", ExitStopLoss},
		{"short take profit", SideSell, "110", "80", "79", ExitTakeProfit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prices := mapPrices{}
			prices.set("BTCUSDT", "100")
			l := newTestLedger(t, prices)
			_, err := l.Place("alice", OrderRequest{
				Symbol: "BTCUSDT", Side: tc.side, Kind: KindMarket, Quantity: d("2"),
				StopLoss: dp(tc.sl), TakeProfit: dp(tc.tp),
			})
			require.NoError(t, err)

			prices.set("BTCUSDT", "100.5")
			assert.Zero(t, l.Settle().Exits)

			prices.set("BTCUSDT", tc.mark)
			report := l.Settle()
			assert.Equal(t, 1, report.Exits)

			v := l.View("alice")
			assert.Empty(t, v.Positions)
			require.Len(t, v.Orders, 2)
			exit := v.Orders[1]
			assert.Equal(t, string(tc.reason), exit.Reason)
			assert.Equal(t, tc.side.Opposite(), exit.Side)
			assert.Equal(t, StatusFilled, exit.Status)
			assert.True(t, exit.FilledPrice.Equal(d(tc.mark)))
		})
	}
}

func TestProtectiveExitsDisabled(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	params := DefaultParams()
	params.ProtectiveExits = false
	l := New(params, prices)

	_, err := l.Place("alice", OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Kind: KindMarket, Quantity: d("1"), StopLoss: dp("90")})
	require.NoError(t, err)
	prices.set("BTCUSDT", "50")
	report := l.Settle()
	assert.Zero(t, report.Exits)

	v := l.View("alice")
	require.Len(t, v.Positions, 1)
	assert.True(t, v.Positions[0].MarkPrice.Equal(d("50")), "marks still refresh")
}

type withheldPrices struct{}

func (withheldPrices) CurrentPrice(string) (decimal.Decimal, error) {
	return decimal.Zero, errors.Join(ErrPriceUnavailable, errors.New("breaker open"))
}

func TestSettleWithheldPrices(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	l := newTestLedger(t, prices, WithSettlementPrices(withheldPrices{}))
	_, err := l.Place("alice", limit(SideBuy, "1", "50"))
	require.NoError(t, err)

	report := l.Settle()
	assert.Equal(t, 1, report.Unpriced)
	assert.Zero(t, report.Attempted)
}

func TestProtectionHitChecksStopFirst(t *testing.T) {
	pos := Position{Side: PositionLong, StopLoss: dp("100"), TakeProfit: dp("100")}
	reason, hit := protectionHit(pos, d("100"))
	assert.True(t, hit)
	assert.Equal(t, ExitStopLoss, reason)

	_, hit = protectionHit(Position{Side: PositionLong}, d("1"))
	assert.False(t, hit)
}
