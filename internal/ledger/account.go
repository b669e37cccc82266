package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AccountView is an immutable copy of one user's ledger state. Orders and
// trades are stored in placement order.
type AccountView struct {
	UserID      string          `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Orders      []Order         `json:"orders"`
	Trades      []Trade         `json:"trades"`
	Positions   []Position      `json:"positions"`
}

// EmptyView is the view of a user that has never placed an order.
func EmptyView(userID string, balance decimal.Decimal) AccountView {
	return AccountView{
		UserID:    userID,
		Balance:   balance,
		Orders:    []Order{},
		Trades:    []Trade{},
		Positions: []Position{},
	}
}

// ListOrders returns orders newest-first, optionally filtered by status.
// An empty status means no filter.
func (v AccountView) ListOrders(status OrderStatus) []Order {
	out := make([]Order, 0, len(v.Orders))
	for i := len(v.Orders) - 1; i >= 0; i-- {
		o := v.Orders[i]
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].seq > out[j].seq
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListTrades returns up to limit trades newest-first; limit <= 0 returns all.
func (v AccountView) ListTrades(limit int) []Trade {
	n := len(v.Trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Trade, 0, n)
	for i := len(v.Trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, v.Trades[i])
	}
	return out
}

func (v AccountView) PendingCount() int {
	n := 0
	for _, o := range v.Orders {
		if o.Status == StatusPending {
			n++
		}
	}
	return n
}

// AccountInfo holds the derived risk metrics of one account.
type AccountInfo struct {
	UserID        string          `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	Equity        decimal.Decimal `json:"equity"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UsedMargin    decimal.Decimal `json:"used_margin"`
	FreeMargin    decimal.Decimal `json:"free_margin"`
	MarginLevel   decimal.Decimal `json:"margin_level"`
	OpenPositions int             `json:"open_positions"`
	PendingOrders int             `json:"pending_orders"`
}

// Reprice returns the view's positions valued at the current marks. A symbol
// the source cannot price keeps its last observed mark.
func Reprice(v AccountView, prices PriceSource) []Position {
	out := make([]Position, 0, len(v.Positions))
	for _, p := range v.Positions {
		cp := p
		if prices != nil {
			if mark, err := prices.CurrentPrice(p.Symbol); err == nil && mark.IsPositive() {
				cp.MarkPrice = mark
			}
		}
		cp.Unrealized = cp.UnrealizedAt(cp.MarkPrice)
		out = append(out, cp)
	}
	return out
}

// Summarize computes AccountInfo for v. Margin level is zero when no margin
// is in use.
func Summarize(v AccountView, prices PriceSource, marginRate decimal.Decimal) AccountInfo {
	positions := Reprice(v, prices)
	unrealized := decimal.Zero
	used := decimal.Zero
	for _, p := range positions {
		unrealized = unrealized.Add(p.Unrealized)
		used = used.Add(p.Notional().Mul(marginRate))
	}
	equity := v.Balance.Add(unrealized)
	level := decimal.Zero
	if used.IsPositive() {
		level = equity.Div(used).Mul(hundred)
	}
	return AccountInfo{
		UserID:        v.UserID,
		Balance:       v.Balance,
		Equity:        equity,
		UnrealizedPnL: unrealized,
		RealizedPnL:   v.RealizedPnL,
		UsedMargin:    used,
		FreeMargin:    equity.Sub(used),
		MarginLevel:   level,
		OpenPositions: len(positions),
		PendingOrders: v.PendingCount(),
	}
}
