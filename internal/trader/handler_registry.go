package trader

import "papertrade/internal/logger"

// HandlerRegistry maps event types to the handler that serves them.
type HandlerRegistry struct {
	handlers map[EventType]EventHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: map[EventType]EventHandler{}}
}

// Register installs hs. A later handler for the same type wins.
func (r *HandlerRegistry) Register(hs ...EventHandler) {
	for _, h := range hs {
		if h != nil {
			r.handlers[h.Type()] = h
		}
	}
}

func (r *HandlerRegistry) Get(t EventType) (EventHandler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// RegisterDefaultHandlers installs the order and settlement handlers.
func (r *HandlerRegistry) RegisterDefaultHandlers() {
	r.Register(&PlaceOrderHandler{}, &CancelOrderHandler{}, &SettleHandler{})
	logger.Debugf("[desk] %d event handlers ready", len(r.handlers))
}
