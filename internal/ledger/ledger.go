// Package ledger holds the order book, execution rules, position ledger and
// account aggregation of the simulated single-dealer desk.
//
// A Ledger is not safe for concurrent use. The trader package owns one
// instance and serialises every mutation through its event loop.
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource supplies the current mark price for a symbol.
type PriceSource interface {
	CurrentPrice(symbol string) (decimal.Decimal, error)
}

// Params are the economic constants of the desk.
type Params struct {
	StartingBalance decimal.Decimal
	CommissionRate  decimal.Decimal
	// BalanceHaircut is the share of the balance a buy may commit.
	BalanceHaircut decimal.Decimal
	MarginRate     decimal.Decimal
	// ProtectiveExits enables stop-loss/take-profit closes during settlement.
	ProtectiveExits bool
}

func DefaultParams() Params {
	return Params{
		StartingBalance: decimal.NewFromInt(10000),
		CommissionRate:  decimal.RequireFromString("0.001"),
		BalanceHaircut:  decimal.RequireFromString("0.95"),
		MarginRate:      decimal.RequireFromString("0.1"),
		ProtectiveExits: true,
	}
}

// FillHook observes fills after they have been applied.
type FillHook func(Fill)

type Option func(*Ledger)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides the order/trade id generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithSettlementPrices sets a separate price source for settlement passes,
// typically one guarded by a circuit breaker.
func WithSettlementPrices(src PriceSource) Option {
	return func(l *Ledger) {
		if src != nil {
			l.settlePrices = src
		}
	}
}

// WithFillHook registers an observer invoked synchronously for each fill.
func WithFillHook(h FillHook) Option {
	return func(l *Ledger) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

type Ledger struct {
	params       Params
	prices       PriceSource
	settlePrices PriceSource
	accounts     map[string]*account
	hooks        []FillHook

	now   func() time.Time
	newID func() string
	seq   uint64
}

type account struct {
	userID    string
	balance   decimal.Decimal
	realized  decimal.Decimal
	orders    []*Order
	byID      map[string]*Order
	trades    []Trade
	positions map[string]*Position
}

func New(params Params, prices PriceSource, opts ...Option) *Ledger {
	l := &Ledger{
		params:   params,
		prices:   prices,
		accounts: make(map[string]*account),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.settlePrices == nil {
		l.settlePrices = prices
	}
	return l
}

func (l *Ledger) Params() Params { return l.params }

func (l *Ledger) account(userID string) *account {
	acct, ok := l.accounts[userID]
	if !ok {
		acct = &account{
			userID:    userID,
			balance:   l.params.StartingBalance,
			byID:      make(map[string]*Order),
			positions: make(map[string]*Position),
		}
		l.accounts[userID] = acct
	}
	return acct
}

// Users returns the ids of every user that has touched the ledger, sorted.
func (l *Ledger) Users() []string {
	out := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Balance returns a user's cash balance.
func (l *Ledger) Balance(userID string) decimal.Decimal {
	if acct, ok := l.accounts[userID]; ok {
		return acct.balance
	}
	return l.params.StartingBalance
}

// ApplyFill folds a fill directly into the position ledger without touching
// cash or order state. It returns the realized P&L.
func (l *Ledger) ApplyFill(userID, symbol string, side Side, qty, price decimal.Decimal) decimal.Decimal {
	realized, _ := l.account(userID).applyFill(NormalizeSymbol(symbol), side, qty, price, l.now())
	return realized
}

// View returns an immutable copy of a user's state. Unknown users get a
// fresh account view without being registered.
func (l *Ledger) View(userID string) AccountView {
	acct, ok := l.accounts[userID]
	if !ok {
		return EmptyView(userID, l.params.StartingBalance)
	}
	return acct.view()
}

func (a *account) view() AccountView {
	v := AccountView{
		UserID:      a.userID,
		Balance:     a.balance,
		RealizedPnL: a.realized,
		Orders:      make([]Order, len(a.orders)),
		Trades:      make([]Trade, len(a.trades)),
		Positions:   make([]Position, 0, len(a.positions)),
	}
	for i, o := range a.orders {
		v.Orders[i] = o.clone()
	}
	copy(v.Trades, a.trades)
	for _, p := range a.positions {
		v.Positions = append(v.Positions, p.clone())
	}
	sort.Slice(v.Positions, func(i, j int) bool { return v.Positions[i].Symbol < v.Positions[j].Symbol })
	return v
}

func (l *Ledger) nextSeq() uint64 {
	l.seq++
	return l.seq
}
