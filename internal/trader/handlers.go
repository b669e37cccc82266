package trader

import (
	"encoding/json"
	"fmt"

	"papertrade/internal/logger"
)

type PlaceOrderHandler struct{}

func (h *PlaceOrderHandler) Type() EventType { return EvtPlaceOrder }

func (h *PlaceOrderHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	var p PlaceOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid payload for place_order: %w", err)
	}
	res, err := ctx.Ledger().Place(p.UserID, p.Request)
	if err != nil {
		logger.Infof("[desk] place rejected user=%s symbol=%s trace=%s: %v", p.UserID, p.Request.Symbol, traceID, err)
		return err
	}
	ctx.Touch(res.Order.UserID)
	ctx.Reply(res)
	logger.Infof("[desk] placed %s user=%s %s %s %s qty=%s status=%s",
		res.Order.ID, res.Order.UserID, res.Order.Kind, res.Order.Side, res.Order.Symbol, res.Order.Quantity, res.Order.Status)
	return nil
}

type CancelOrderHandler struct{}

func (h *CancelOrderHandler) Type() EventType { return EvtCancelOrder }

func (h *CancelOrderHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	var p CancelOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invalid payload for cancel_order: %w", err)
	}
	order, err := ctx.Ledger().Cancel(p.UserID, p.OrderID)
	if err != nil {
		logger.Infof("[desk] cancel rejected user=%s order=%s trace=%s: %v", p.UserID, p.OrderID, traceID, err)
		return err
	}
	ctx.Touch(order.UserID)
	ctx.Reply(order)
	logger.Infof("[desk] cancelled %s user=%s", order.ID, order.UserID)
	return nil
}

type SettleHandler struct{}

func (h *SettleHandler) Type() EventType { return EvtSettle }

func (h *SettleHandler) Handle(ctx *HandlerContext, payload []byte, traceID string) error {
	report := ctx.Ledger().Settle()
	ctx.Touch(report.Touched...)
	ctx.Reply(report)
	if report.Filled > 0 || report.Exits > 0 || report.Failed > 0 {
		logger.Infof("[desk] settlement attempted=%d filled=%d exits=%d failed=%d unpriced=%d",
			report.Attempted, report.Filled, report.Exits, report.Failed, report.Unpriced)
	}
	return nil
}
