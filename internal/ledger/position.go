package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a user's net open exposure to one symbol.
type Position struct {
	UserID      string           `json:"user_id"`
	Symbol      string           `json:"symbol"`
	Side        PositionSide     `json:"side"`
	Quantity    decimal.Decimal  `json:"quantity"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	MarkPrice   decimal.Decimal  `json:"mark_price"`
	Unrealized  decimal.Decimal  `json:"unrealized_pnl"`
	RealizedPnL decimal.Decimal  `json:"realized_pnl"`
	StopLoss    *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit  *decimal.Decimal `json:"take_profit,omitempty"`
	OpenedAt    time.Time        `json:"opened_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// UnrealizedAt values the position at mark.
func (p Position) UnrealizedAt(mark decimal.Decimal) decimal.Decimal {
	if p.Side == PositionShort {
		return p.EntryPrice.Sub(mark).Mul(p.Quantity)
	}
	return mark.Sub(p.EntryPrice).Mul(p.Quantity)
}

// Notional is the position size valued at its entry price.
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

func (p *Position) clone() Position {
	cp := *p
	cp.StopLoss = cloneDec(p.StopLoss)
	cp.TakeProfit = cloneDec(p.TakeProfit)
	return cp
}

// attachProtection copies non-nil exit levels from a filled order; the most
// recent level wins.
func (p *Position) attachProtection(stopLoss, takeProfit *decimal.Decimal) {
	if stopLoss != nil {
		p.StopLoss = cloneDec(stopLoss)
	}
	if takeProfit != nil {
		p.TakeProfit = cloneDec(takeProfit)
	}
}

// applyFill folds one fill into the account's positions and returns the
// P&L realized by it (zero for opening or increasing fills).
//
// A reducing fill larger than the open quantity closes the position and the
// excess is dropped rather than opening the opposite side.
func (a *account) applyFill(symbol string, side Side, qty, price decimal.Decimal, now time.Time) (decimal.Decimal, *Position) {
	pos, ok := a.positions[symbol]
	if !ok {
		pos = &Position{
			UserID:     a.userID,
			Symbol:     symbol,
			Side:       positionSideFor(side),
			Quantity:   qty,
			EntryPrice: price,
			MarkPrice:  price,
			OpenedAt:   now,
			UpdatedAt:  now,
		}
		a.positions[symbol] = pos
		return decimal.Zero, pos
	}

	pos.MarkPrice = price
	pos.UpdatedAt = now

	if pos.Side.increases(side) {
		total := pos.Quantity.Add(qty)
		cost := pos.Quantity.Mul(pos.EntryPrice).Add(qty.Mul(price))
		pos.EntryPrice = cost.Div(total)
		pos.Quantity = total
		return decimal.Zero, pos
	}

	closed := decimal.Min(qty, pos.Quantity)
	realized := realizedPnL(pos.Side, pos.EntryPrice, price, closed)
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	a.realized = a.realized.Add(realized)

	if qty.GreaterThanOrEqual(pos.Quantity) {
		delete(a.positions, symbol)
		pos.Quantity = decimal.Zero
		return realized, pos
	}
	pos.Quantity = pos.Quantity.Sub(qty)
	return realized, pos
}

func realizedPnL(side PositionSide, entry, exit, qty decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(entry)
	if side == PositionShort {
		diff = diff.Neg()
	}
	return diff.Mul(qty)
}
