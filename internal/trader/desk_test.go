package trader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func newTestDesk(t *testing.T, opts ...Option) (*Desk, *market.StaticOracle) {
	t.Helper()
	oracle := market.NewStaticOracle(map[string]decimal.Decimal{
		"BTCUSDT": d("100"),
		"ETHUSDT": d("10"),
	})
	desk := NewDesk(ledger.DefaultParams(), oracle, opts...)
	desk.Start()
	t.Cleanup(desk.Stop)
	return desk, oracle
}

func marketBuy(qty string) ledger.OrderRequest {
	return ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindMarket, Quantity: d(qty)}
}

func TestDeskPlaceAndRead(t *testing.T) {
	desk, oracle := newTestDesk(t)
	ctx := context.Background()

	res, err := desk.PlaceOrder(ctx, "alice", marketBuy("2"))
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, ledger.StatusFilled, res.Order.Status)

	orders := desk.ListOrders("alice", "")
	require.Len(t, orders, 1)
	assert.Equal(t, res.Order.ID, orders[0].ID)

	require.NoError(t, oracle.Set("BTCUSDT", d("110"), market.SourceAPI))
	positions := desk.ListPositions("alice")
	require.Len(t, positions, 1)
	assert.True(t, positions[0].MarkPrice.Equal(d("110")))
	assert.True(t, positions[0].Unrealized.Equal(d("20")))

	info := desk.AccountInfo("alice")
	assert.True(t, info.Balance.Equal(d("9799.8")))
	assert.True(t, info.Equity.Equal(d("9819.8")))
	assert.Equal(t, 1, info.OpenPositions)

	trades := desk.ListTrades("alice", 10)
	require.Len(t, trades, 1)
	assert.Equal(t, []string{"alice"}, desk.Users())
}

func TestDeskUnknownUserReads(t *testing.T) {
	desk, _ := newTestDesk(t)
	assert.Empty(t, desk.ListOrders("nobody", ""))
	assert.Empty(t, desk.ListPositions("nobody"))
	info := desk.AccountInfo("nobody")
	assert.True(t, info.Balance.Equal(d("10000")))
	assert.True(t, info.MarginLevel.IsZero())
}

func TestDeskPropagatesTypedErrors(t *testing.T) {
	desk, _ := newTestDesk(t)
	ctx := context.Background()

	_, err := desk.PlaceOrder(ctx, "alice", marketBuy("1000"))
	var ib *ledger.InsufficientBalanceError
	assert.True(t, errors.As(err, &ib))

	_, err = desk.PlaceOrder(ctx, "alice", ledger.OrderRequest{Symbol: "DOGE", Side: ledger.SideBuy, Kind: ledger.KindMarket, Quantity: d("1")})
	var us *ledger.UnknownSymbolError
	assert.True(t, errors.As(err, &us))

	_, err = desk.CancelOrder(ctx, "alice", "missing")
	var nf *ledger.NotFoundError
	assert.True(t, errors.As(err, &nf))

	assert.Empty(t, desk.ListOrders("alice", ""))
}

func TestDeskCancelAndSettle(t *testing.T) {
	desk, oracle := newTestDesk(t)
	ctx := context.Background()

	keep, err := desk.PlaceOrder(ctx, "alice", ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit, Quantity: d("1"), LimitPrice: dp("95")})
	require.NoError(t, err)
	drop, err := desk.PlaceOrder(ctx, "alice", ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit, Quantity: d("1"), LimitPrice: dp("90")})
	require.NoError(t, err)
	assert.Equal(t, 2, desk.PendingCount())

	cancelled, err := desk.CancelOrder(ctx, "alice", drop.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, cancelled.Status)

	require.NoError(t, oracle.Set("BTCUSDT", d("80"), market.SourceAPI))
	report, err := desk.Settle(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Filled)
	assert.Zero(t, desk.PendingCount())

	filled := desk.ListOrders("alice", ledger.StatusFilled)
	require.Len(t, filled, 1)
	assert.Equal(t, keep.Order.ID, filled[0].ID)
	assert.True(t, filled[0].FilledPrice.Equal(d("95")))

	_, err = desk.CancelOrder(ctx, "alice", keep.Order.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestDeskConcurrentPlacementAndSettlement(t *testing.T) {
	desk, oracle := newTestDesk(t)
	ctx := context.Background()

	const users, perUser = 6, 20
	var wg sync.WaitGroup
	stop := make(chan struct{})

	go func() {
		prices := []string{"90", "100", "110"}
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = oracle.Set("BTCUSDT", d(prices[i%len(prices)]), market.SourceAPI)
			_, _ = desk.Settle(ctx, "test")
			i++
		}
	}()

	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", u)
			for i := 0; i < perUser; i++ {
				req := ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit, Quantity: d("0.5"), LimitPrice: dp("100")}
				if i%2 == 1 {
					req.Side = ledger.SideSell
				}
				_, err := desk.PlaceOrder(ctx, user, req)
				assert.NoError(t, err)
				_ = desk.ListOrders(user, "")
				_ = desk.AccountInfo(user)
			}
		}(u)
	}
	wg.Wait()
	close(stop)

	require.NoError(t, oracle.Set("BTCUSDT", d("100"), market.SourceAPI))
	_, err := desk.Settle(ctx, "final")
	require.NoError(t, err)

	for u := 0; u < users; u++ {
		user := fmt.Sprintf("user-%d", u)
		orders := desk.ListOrders(user, "")
		require.Len(t, orders, perUser)

		trades := desk.ListTrades(user, 0)
		seen := map[string]bool{}
		balance := d("10000")
		for _, tr := range trades {
			assert.False(t, seen[tr.OrderID], "order %s filled twice", tr.OrderID)
			seen[tr.OrderID] = true
			notional := tr.Price.Mul(tr.Quantity)
			if tr.Side == ledger.SideBuy {
				balance = balance.Sub(notional).Sub(tr.Commission)
			} else {
				balance = balance.Add(notional).Sub(tr.Commission)
			}
		}
		assert.Len(t, trades, perUser, "every order fills at mark 100")
		assert.True(t, balance.Equal(desk.AccountInfo(user).Balance), "balance for %s", user)
	}
}

type recordingSink struct {
	mu    sync.Mutex
	fills []ledger.Fill
}

func (s *recordingSink) OnFill(_ context.Context, f ledger.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, f)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fills)
}

type failingSink struct{}

func (failingSink) OnFill(context.Context, ledger.Fill) error { return errors.New("unreachable") }

type panickingSink struct{}

func (panickingSink) OnFill(context.Context, ledger.Fill) error { panic("boom") }

func TestDeskDeliversFillsToSinks(t *testing.T) {
	sink := &recordingSink{}
	desk, _ := newTestDesk(t, WithFillSinks(panickingSink{}, failingSink{}, sink, nil))
	ctx := context.Background()

	_, err := desk.PlaceOrder(ctx, "alice", marketBuy("1"))
	require.NoError(t, err)
	_, err = desk.PlaceOrder(ctx, "alice", ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideSell, Kind: ledger.KindMarket, Quantity: d("1")})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, ledger.SideBuy, sink.fills[0].Trade.Side)
	assert.True(t, sink.fills[1].Realized.IsZero())
}

func TestDeskPersistsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := NewFileEventStore(path)
	require.NoError(t, err)

	oracle := market.NewStaticOracle(map[string]decimal.Decimal{"BTCUSDT": d("100")})
	desk := NewDesk(ledger.DefaultParams(), oracle, WithEventStore(store))
	desk.Start()
	ctx := context.Background()

	res, err := desk.PlaceOrder(ctx, "alice", ledger.OrderRequest{Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit, Quantity: d("1"), LimitPrice: dp("50")})
	require.NoError(t, err)
	_, err = desk.CancelOrder(ctx, "alice", res.Order.ID)
	require.NoError(t, err)
	_, err = desk.Settle(ctx, "test")
	require.NoError(t, err)
	desk.Stop()

	var events []EventEnvelope
	require.NoError(t, ReplayEventFile(path, func(evt EventEnvelope) error {
		events = append(events, evt)
		return nil
	}))
	require.Len(t, events, 2)
	assert.Equal(t, EvtPlaceOrder, events[0].Type)
	assert.Equal(t, EvtCancelOrder, events[1].Type)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Contains(t, string(events[1].Payload), res.Order.ID)
}

func TestDeskSkipsRejectedCommandsInJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	store, err := NewFileEventStore(path)
	require.NoError(t, err)

	oracle := market.NewStaticOracle(map[string]decimal.Decimal{"BTCUSDT": d("100")})
	desk := NewDesk(ledger.DefaultParams(), oracle, WithEventStore(store))
	desk.Start()
	ctx := context.Background()

	_, err = desk.PlaceOrder(ctx, "alice", marketBuy("1000"))
	var insufficient *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	_, err = desk.CancelOrder(ctx, "alice", "missing")
	var notFound *ledger.NotFoundError
	require.ErrorAs(t, err, &notFound)
	_, err = desk.PlaceOrder(ctx, "alice", marketBuy("1"))
	require.NoError(t, err)
	desk.Stop()

	var events []EventEnvelope
	require.NoError(t, ReplayEventFile(path, func(evt EventEnvelope) error {
		events = append(events, evt)
		return nil
	}))
	require.Len(t, events, 1)
	assert.Equal(t, EvtPlaceOrder, events[0].Type)
}

func TestDeskDeliversEveryFillOfALargePass(t *testing.T) {
	sink := &recordingSink{}
	desk, oracle := newTestDesk(t, WithFillSinks(sink))
	ctx := context.Background()

	const orders = 600
	for i := 0; i < orders; i++ {
		_, err := desk.PlaceOrder(ctx, fmt.Sprintf("user-%d", i%7), ledger.OrderRequest{
			Symbol: "BTCUSDT", Side: ledger.SideBuy, Kind: ledger.KindLimit, Quantity: d("0.01"), LimitPrice: dp("50"),
		})
		require.NoError(t, err)
	}
	require.NoError(t, oracle.Set("BTCUSDT", d("40"), market.SourceAPI))

	report, err := desk.Settle(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, orders, report.Filled)

	desk.Stop()
	assert.Equal(t, orders, sink.count())
}

func TestDeskStopped(t *testing.T) {
	oracle := market.NewStaticOracle(nil)
	desk := NewDesk(ledger.DefaultParams(), oracle)
	desk.Start()
	desk.Stop()
	desk.Stop()

	_, err := desk.PlaceOrder(context.Background(), "alice", marketBuy("1"))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDeskUnknownEvent(t *testing.T) {
	desk, _ := newTestDesk(t)
	_, err := desk.SendSync(context.Background(), EventEnvelope{ID: "x", Type: "NOPE"})
	assert.Error(t, err)
}

func TestDeskSnapshotIsStableAcrossEvents(t *testing.T) {
	desk, _ := newTestDesk(t)
	ctx := context.Background()

	_, err := desk.PlaceOrder(ctx, "alice", marketBuy("1"))
	require.NoError(t, err)
	before := desk.Snapshot()

	_, err = desk.PlaceOrder(ctx, "bob", marketBuy("1"))
	require.NoError(t, err)
	after := desk.Snapshot()

	assert.Len(t, before.Accounts, 1)
	assert.Len(t, after.Accounts, 2)
	assert.Greater(t, after.Version, before.Version)
}
