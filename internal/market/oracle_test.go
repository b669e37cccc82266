package market

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStaticOracle(t *testing.T) {
	o := NewStaticOracle(map[string]decimal.Decimal{"btcusdt": d("100"), "BAD": d("0")})

	p, err := o.CurrentPrice("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("100")))

	_, err = o.CurrentPrice("BAD")
	assert.True(t, errors.Is(err, ErrUnknownSymbol))

	require.NoError(t, o.Set(" ethusdt ", d("10"), SourceAPI))
	p, err = o.CurrentPrice("ETHUSDT")
	require.NoError(t, err)
	assert.True(t, p.Equal(d("10")))

	assert.Error(t, o.Set("ETHUSDT", d("-1"), SourceAPI))
	assert.Error(t, o.Set("", d("1"), SourceAPI))

	snap := o.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "BTCUSDT", snap[0].Symbol)
	assert.Equal(t, SourceConfig, snap[0].Source)
	assert.Equal(t, SourceAPI, snap[1].Source)

	o.Remove("btcusdt")
	_, err = o.CurrentPrice("BTCUSDT")
	assert.Error(t, err)
}

func TestStaticOracleConcurrentAccess(t *testing.T) {
	o := NewStaticOracle(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 1; j <= 100; j++ {
				_ = o.Set("BTC", decimal.NewFromInt(int64(i*100+j)), SourceAPI)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = o.CurrentPrice("BTC")
				_ = o.Snapshot()
			}
		}()
	}
	wg.Wait()
	p, err := o.CurrentPrice("BTC")
	require.NoError(t, err)
	assert.True(t, p.IsPositive())
}
