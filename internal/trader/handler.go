package trader

import "papertrade/internal/ledger"

// EventHandler handles one event type inside the desk's event loop.
type EventHandler interface {
	Type() EventType

	// Handle processes the event. The result for synchronous callers is set
	// with HandlerContext.Reply.
	Handle(ctx *HandlerContext, payload []byte, traceID string) error
}

// HandlerContext gives a handler the ledger and records what the handler
// changed so the desk can republish only those accounts.
type HandlerContext struct {
	desk    *Desk
	touched map[string]struct{}
	result  any
}

func NewHandlerContext(d *Desk) *HandlerContext {
	return &HandlerContext{desk: d, touched: make(map[string]struct{})}
}

func (c *HandlerContext) Ledger() *ledger.Ledger {
	return c.desk.ledger
}

// Touch marks a user's account as changed.
func (c *HandlerContext) Touch(userIDs ...string) {
	for _, id := range userIDs {
		if id != "" {
			c.touched[id] = struct{}{}
		}
	}
}

func (c *HandlerContext) Reply(v any) {
	c.result = v
}
