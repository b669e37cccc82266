package ledger

import (
	"fmt"
	"strings"
)

// Place validates req, records the order as pending and attempts to execute
// it against the current mark. Rejected placements leave no order behind.
func (l *Ledger) Place(userID string, req OrderRequest) (PlaceResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PlaceResult{}, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	req, err := ValidateRequest(req)
	if err != nil {
		return PlaceResult{}, err
	}
	mark, err := l.prices.CurrentPrice(req.Symbol)
	if err != nil {
		return PlaceResult{}, &UnknownSymbolError{Symbol: req.Symbol, Err: err}
	}
	if !mark.IsPositive() {
		return PlaceResult{}, &UnknownSymbolError{Symbol: req.Symbol, Err: fmt.Errorf("non-positive mark %s", mark)}
	}

	now := l.now()
	order := &Order{
		ID:          l.newID(),
		UserID:      userID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Kind:        req.Kind,
		Quantity:    req.Quantity,
		LimitPrice:  cloneDec(req.LimitPrice),
		StopPrice:   cloneDec(req.StopPrice),
		StopLoss:    cloneDec(req.StopLoss),
		TakeProfit:  cloneDec(req.TakeProfit),
		TimeInForce: req.TimeInForce,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if order.Side == SideBuy {
		cost := order.referencePrice(mark).Mul(order.Quantity)
		spendable := l.Balance(userID).Mul(l.params.BalanceHaircut)
		if cost.GreaterThan(spendable) {
			return PlaceResult{}, &InsufficientBalanceError{Required: cost, Available: spendable}
		}
	}

	acct := l.account(userID)
	order.seq = l.nextSeq()
	acct.orders = append(acct.orders, order)
	acct.byID[order.ID] = order

	res := PlaceResult{}
	if fill, ok := l.execute(acct, order, mark); ok {
		trade := fill.Trade
		res.Executed = true
		res.Trade = &trade
		res.Message = fmt.Sprintf("order filled: %s %s %s @ %s", order.Side, order.Quantity, order.Symbol, trade.Price)
	} else if order.TimeInForce == IOC || order.TimeInForce == FOK {
		l.expire(order, fmt.Sprintf("%s order not immediately fillable", order.TimeInForce))
		res.Message = "order cancelled: " + order.Reason
	} else {
		res.Message = fmt.Sprintf("order accepted: %s %s pending", order.Kind, order.Side)
	}
	res.Order = order.clone()
	return res, nil
}

// Cancel moves a pending order owned by userID to cancelled.
func (l *Ledger) Cancel(userID, orderID string) (Order, error) {
	acct, ok := l.accounts[strings.TrimSpace(userID)]
	if !ok {
		return Order{}, &NotFoundError{OrderID: orderID}
	}
	order, ok := acct.byID[strings.TrimSpace(orderID)]
	if !ok {
		return Order{}, &NotFoundError{OrderID: orderID}
	}
	if order.Status.Terminal() {
		return Order{}, &InvalidStateError{OrderID: order.ID, Status: order.Status}
	}
	order.Status = StatusCancelled
	order.UpdatedAt = l.now()
	return order.clone(), nil
}

func (l *Ledger) expire(order *Order, reason string) {
	order.Status = StatusCancelled
	order.Reason = reason
	order.UpdatedAt = l.now()
}

// PendingCount returns the number of pending orders across all users.
func (l *Ledger) PendingCount() int {
	n := 0
	for _, acct := range l.accounts {
		for _, o := range acct.orders {
			if o.Status == StatusPending {
				n++
			}
		}
	}
	return n
}
