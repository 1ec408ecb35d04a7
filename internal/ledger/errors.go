package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound covers unknown tickers, orders, accounts and missing holdings.
// Confirm/cancel on an order that already reached a terminal state surfaces
// as ErrNotFound as well: the lookup filters on Under Review, so there is no
// matching order.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected input. No mutation happened.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientFundsError carries the shortfall so the voice surface can read
// it back to the caller.
type InsufficientFundsError struct {
	Available float64
	Required  float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient cash balance: available %.2f, required %.2f", e.Available, e.Required)
}

// InsufficientQuantityError means a sell would exceed the units available
// after reserving other pending sells of the same instrument.
type InsufficientQuantityError struct {
	Ticker    string
	Available float64
	Requested float64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity for %s: available %.2f, requested %.2f", e.Ticker, e.Available, e.Requested)
}
