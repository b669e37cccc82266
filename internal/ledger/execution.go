package ledger

import (
	"github.com/shopspring/decimal"
)

// fillPrice decides whether order fills at mark and at what price.
func fillPrice(order *Order, mark decimal.Decimal) (decimal.Decimal, bool) {
	switch order.Kind {
	case KindMarket:
		return mark, true
	case KindLimit:
		if order.LimitPrice == nil {
			return decimal.Zero, false
		}
		limit := *order.LimitPrice
		switch order.Side {
		case SideBuy:
			if mark.LessThanOrEqual(limit) {
				return limit, true
			}
		case SideSell:
			if mark.GreaterThanOrEqual(limit) {
				return limit, true
			}
		}
		return decimal.Zero, false
	case KindStop, KindStopLimit:
		// Stop kinds are accepted and rest as pending; no trigger is evaluated.
		return decimal.Zero, false
	default:
		return decimal.Zero, false
	}
}

// execute fills order at mark if its rule allows it. Every side effect of a
// fill (trade, cash, position, order status) is applied before it returns,
// and an order that is no longer pending is never filled again.
func (l *Ledger) execute(acct *account, order *Order, mark decimal.Decimal) (Fill, bool) {
	if order.Status.Terminal() {
		return Fill{}, false
	}
	price, ok := fillPrice(order, mark)
	if !ok {
		return Fill{}, false
	}
	return l.fill(acct, order, price), true
}

func (l *Ledger) fill(acct *account, order *Order, price decimal.Decimal) Fill {
	now := l.now()
	qty := order.Quantity
	notional := price.Mul(qty)
	commission := notional.Mul(l.params.CommissionRate)

	trade := Trade{
		ID:         l.newID(),
		OrderID:    order.ID,
		UserID:     acct.userID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		ExecutedAt: now,
	}

	switch order.Side {
	case SideBuy:
		acct.balance = acct.balance.Sub(notional).Sub(commission)
	case SideSell:
		acct.balance = acct.balance.Add(notional).Sub(commission)
	}

	existing, had := acct.positions[order.Symbol]
	opening := !had || existing.Side.increases(order.Side)
	realized, pos := acct.applyFill(order.Symbol, order.Side, qty, price, now)
	if opening {
		pos.attachProtection(order.StopLoss, order.TakeProfit)
	}

	acct.trades = append(acct.trades, trade)

	order.Status = StatusFilled
	order.FilledAt = &now
	order.FilledPrice = price
	order.FilledQuantity = qty
	order.UpdatedAt = now

	f := Fill{
		Order:    order.clone(),
		Trade:    trade,
		Realized: realized,
		Balance:  acct.balance,
	}
	for _, h := range l.hooks {
		h(f)
	}
	return f
}
