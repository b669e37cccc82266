package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels let callers match a failure class with errors.Is; the typed
// errors below carry the details and match their sentinel.
var (
	ErrValidation          = errors.New("invalid order")
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("order not found")
	ErrInvalidState        = errors.New("invalid order state")
)

// ValidationError reports a malformed or missing order field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnknownSymbolError is returned when the price oracle cannot price a symbol.
type UnknownSymbolError struct {
	Symbol string
	Err    error
}

func (e *UnknownSymbolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v %q: %v", ErrUnknownSymbol, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%v %q", ErrUnknownSymbol, e.Symbol)
}

func (e *UnknownSymbolError) Is(target error) bool { return target == ErrUnknownSymbol }

func (e *UnknownSymbolError) Unwrap() error { return e.Err }

// InsufficientBalanceError is returned when a buy's estimated cost exceeds the
// spendable share of the balance.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%v: required %s, available %s", ErrInsufficientBalance, e.Required.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// NotFoundError is returned for unknown orders and for orders owned by another user.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNotFound, e.OrderID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError is returned when an operation needs a pending order.
type InvalidStateError struct {
	OrderID string
	Status  OrderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%v: order %s is %s", ErrInvalidState, e.OrderID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }
