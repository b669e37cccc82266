package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeZeroPositions(t *testing.T) {
	info := Summarize(EmptyView("alice", d("10000")), mapPrices{}, d("0.1"))
	assert.True(t, info.MarginLevel.IsZero())
	assert.True(t, info.UsedMargin.IsZero())
	assert.True(t, info.Equity.Equal(d("10000")))
	assert.True(t, info.FreeMargin.Equal(d("10000")))
	assert.Zero(t, info.OpenPositions)
}

func TestSummarizeRepricesPositions(t *testing.T) {
	prices := mapPrices{}
	prices.set("BTCUSDT", "100")
	prices.set("ETHUSDT", "50")
	l := newTestLedger(t, prices)

	_, err := l.Place("alice", market(SideBuy, "2"))
	require.NoError(t, err)
	_, err = l.Place("alice", OrderRequest{Symbol: "ETHUSDT", Side: SideSell, Kind: KindMarket, Quantity: d("4")})
	require.NoError(t, err)
	_, err = l.Place("alice", limit(SideBuy, "1", "10"))
	require.NoError(t, err)

	prices.set("BTCUSDT", "110")
	prices.set("ETHUSDT", "45")

	v := l.View("alice")
	info := Summarize(v, prices, l.Params().MarginRate)

	// balance: 10000 - 200 - 0.2 + 200 - 0.2
	assert.True(t, info.Balance.Equal(d("9999.6")), info.Balance.String())
	// long +20, short +20
	assert.True(t, info.UnrealizedPnL.Equal(d("40")), info.UnrealizedPnL.String())
	assert.True(t, info.Equity.Equal(d("10039.6")))
	// (200 + 200) * 0.1
	assert.True(t, info.UsedMargin.Equal(d("40")))
	assert.True(t, info.FreeMargin.Equal(d("9999.6")))
	assert.True(t, info.MarginLevel.Equal(d("25099")), info.MarginLevel.String())
	assert.Equal(t, 2, info.OpenPositions)
	assert.Equal(t, 1, info.PendingOrders)
}

func TestRepriceFallsBackToLastMark(t *testing.T) {
	v := AccountView{Positions: []Position{{
		Symbol: "XYZ", Side: PositionLong, Quantity: d("1"), EntryPrice: d("10"), MarkPrice: d("12"),
	}}}
	out := Reprice(v, mapPrices{})
	require.Len(t, out, 1)
	assert.True(t, out[0].MarkPrice.Equal(d("12")))
	assert.True(t, out[0].Unrealized.Equal(d("2")))
}

func TestSummarizeNegativeEquity(t *testing.T) {
	v := AccountView{
		Balance: d("100"),
		Positions: []Position{{
			Symbol: "BTC", Side: PositionLong, Quantity: d("10"), EntryPrice: d("100"),
		}},
	}
	info := Summarize(v, mapPrices{"BTC": d("80")}, d("0.1"))
	assert.True(t, info.Equity.Equal(d("-100")))
	assert.True(t, info.MarginLevel.Equal(decimal.NewFromInt(-100)))
}
