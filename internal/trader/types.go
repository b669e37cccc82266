package trader

import (
	"encoding/json"
	"time"

	"papertrade/internal/ledger"
)

// EventType names a command handled by the desk's event loop.
type EventType string

const (
	// EvtPlaceOrder places an order for one user.
	EvtPlaceOrder EventType = "PLACE_ORDER"
	// EvtCancelOrder cancels a pending order.
	EvtCancelOrder EventType = "CANCEL_ORDER"
	// EvtSettle runs one settlement pass over all pending orders.
	EvtSettle EventType = "SETTLE"
)

type PlaceOrderPayload struct {
	UserID  string              `json:"user_id"`
	Request ledger.OrderRequest `json:"request"`
}

type CancelOrderPayload struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
}

type SettlePayload struct {
	Trigger string `json:"trigger,omitempty"`
}

// Reply is what a synchronous caller gets back from the event loop.
type Reply struct {
	Value any
	Err   error
}

// EventEnvelope is the message accepted by the desk actor.
type EventEnvelope struct {
	ID        string
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time
	UserID    string `json:",omitempty"`

	// ReplyCh receives exactly one Reply and is then closed (optional).
	ReplyCh chan Reply `json:"-"`
}

// State is the read-only view published after every event. It is never
// mutated once stored; each refresh builds a new map.
type State struct {
	Accounts map[string]ledger.AccountView
	Pending  int
	Version  uint64
	Params   ledger.Params
}

func NewState(params ledger.Params) *State {
	return &State{Accounts: make(map[string]ledger.AccountView), Params: params}
}

// Account returns the view of userID, or a fresh account when the user has
// not traded yet.
func (s *State) Account(userID string) ledger.AccountView {
	if v, ok := s.Accounts[userID]; ok {
		return v
	}
	return ledger.EmptyView(userID, s.Params.StartingBalance)
}
