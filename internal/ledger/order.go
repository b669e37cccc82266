package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the client-supplied part of an order.
type OrderRequest struct {
	Symbol      string           `json:"symbol" validate:"required"`
	Side        Side             `json:"side" validate:"required,side"`
	Kind        OrderKind        `json:"kind" validate:"required,order_kind"`
	Quantity    decimal.Decimal  `json:"quantity"`
	LimitPrice  *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
	StopLoss    *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit  *decimal.Decimal `json:"take_profit,omitempty"`
	TimeInForce TimeInForce      `json:"time_in_force,omitempty" validate:"omitempty,time_in_force"`
}

// Order is one entry in a user's order history.
type Order struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Symbol      string           `json:"symbol"`
	Side        Side             `json:"side"`
	Kind        OrderKind        `json:"kind"`
	Quantity    decimal.Decimal  `json:"quantity"`
	LimitPrice  *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
	StopLoss    *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit  *decimal.Decimal `json:"take_profit,omitempty"`
	TimeInForce TimeInForce      `json:"time_in_force"`
	Status      OrderStatus      `json:"status"`
	// Reason is set on system-generated exit orders and on expired IOC/FOK orders.
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FilledAt       *time.Time      `json:"filled_at,omitempty"`
	FilledPrice    decimal.Decimal `json:"filled_price"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`

	seq uint64
}

// Trade is the immutable record of one fill.
type Trade struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Fill bundles everything a successful execution produced; it is handed to
// observers (journal, notifiers) after the ledger has applied it.
type Fill struct {
	Order    Order           `json:"order"`
	Trade    Trade           `json:"trade"`
	Realized decimal.Decimal `json:"realized_pnl"`
	Balance  decimal.Decimal `json:"balance"`
}

// PlaceResult is the outcome of a successful placement.
type PlaceResult struct {
	Order    Order  `json:"order"`
	Executed bool   `json:"executed"`
	Message  string `json:"message"`
	Trade    *Trade `json:"trade,omitempty"`
}

func (o *Order) clone() Order {
	cp := *o
	cp.LimitPrice = cloneDec(o.LimitPrice)
	cp.StopPrice = cloneDec(o.StopPrice)
	cp.StopLoss = cloneDec(o.StopLoss)
	cp.TakeProfit = cloneDec(o.TakeProfit)
	if o.FilledAt != nil {
		ts := *o.FilledAt
		cp.FilledAt = &ts
	}
	return cp
}

// referencePrice is the price used for the pre-trade balance estimate: the
// order's own price when it has one, the mark otherwise.
func (o *Order) referencePrice(mark decimal.Decimal) decimal.Decimal {
	if o.LimitPrice != nil {
		return *o.LimitPrice
	}
	if o.StopPrice != nil {
		return *o.StopPrice
	}
	return mark
}

func cloneDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
