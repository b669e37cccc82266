package ledger

import (
	"strings"

	"papertrade/internal/pkg/symbol"
)

// Side is the direction of an order or a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell:
		return true
	default:
		return false
	}
}

// Opposite returns the side that reduces a position opened by s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind selects the fill rule applied by the execution engine.
type OrderKind string

const (
	KindMarket    OrderKind = "market"
	KindLimit     OrderKind = "limit"
	KindStop      OrderKind = "stop"
	KindStopLimit OrderKind = "stop_limit"
)

func (k OrderKind) Valid() bool {
	switch k {
	case KindMarket, KindLimit, KindStop, KindStopLimit:
		return true
	default:
		return false
	}
}

// NeedsLimitPrice reports whether orders of this kind must carry a limit price.
func (k OrderKind) NeedsLimitPrice() bool {
	return k == KindLimit || k == KindStopLimit
}

// NeedsStopPrice reports whether orders of this kind must carry a stop price.
func (k OrderKind) NeedsStopPrice() bool {
	return k == KindStop || k == KindStopLimit
}

// TimeInForce controls what happens to an order that cannot fill on placement.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

func (t TimeInForce) Valid() bool {
	switch t {
	case GTC, IOC, FOK:
		return true
	default:
		return false
	}
}

// OrderStatus is the order lifecycle state. Pending is the only non-terminal value.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

func (s OrderStatus) Terminal() bool {
	return s != StatusPending
}

// ParseOrderStatus accepts the canonical names case-insensitively; "" means no filter.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", true
	}
	if raw == "canceled" {
		raw = string(StatusCancelled)
	}
	st := OrderStatus(raw)
	return st, st.Valid()
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// positionSideFor maps the side of an opening fill to the resulting position side.
func positionSideFor(side Side) PositionSide {
	if side == SideSell {
		return PositionShort
	}
	return PositionLong
}

// increases reports whether a fill on side adds to a position held on ps.
func (ps PositionSide) increases(side Side) bool {
	switch ps {
	case PositionLong:
		return side == SideBuy
	case PositionShort:
		return side == SideSell
	default:
		return false
	}
}

// ExitReason tags orders the system places on a user's behalf.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// NormalizeSymbol maps the accepted pair spellings onto one key so
// "btcusdt ", "BTC/USDT" and "BTCUSDT" share a position.
func NormalizeSymbol(s string) string {
	return symbol.Normalize(s)
}
