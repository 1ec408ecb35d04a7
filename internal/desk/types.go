// Package desk is the order state machine: it carries a trade request from
// placement through review to confirmation or cancellation, and is the only
// caller of the ledger's settlement paths.
package desk

import (
	"time"

	"tradedesk/internal/ledger"
)

// Config tunes the state machine behavior.
type Config struct {
	// PersistRejectedOrders preserves the historical behavior where a buy
	// that fails the buying-power check at placement still leaves the order
	// in Under Review. When false the placement rolls back instead.
	PersistRejectedOrders bool
	// OrderTTL cancels Under Review orders older than this before each
	// mutating operation. Zero disables expiry.
	OrderTTL time.Duration
}

// PlaceRequest carries the inputs of a new trade intent.
type PlaceRequest struct {
	UserID     int64
	Ticker     string
	Side       string
	Kind       string
	Quantity   float64
	LimitPrice *float64
}

// UpdateRequest mutates an Under Review order. Only provided fields are
// applied; a nil OrderID targets the user's most recent Under Review order.
type UpdateRequest struct {
	UserID     int64
	OrderID    *int64
	Ticker     string
	Side       string
	Kind       string
	Quantity   *float64
	LimitPrice *float64
}

// OrderResult is returned by every mutating operation. Book always carries
// the user's complete order listing, all statuses, as a side channel for UI
// refresh; it is a full snapshot, never a delta.
type OrderResult struct {
	TraceID       string         `json:"trace_id"`
	Order         *ledger.Order  `json:"order,omitempty"`
	AvailableCash float64        `json:"available_cash"`
	Message       string         `json:"message,omitempty"`
	Book          []ledger.Order `json:"order_book"`
}

// OrderView is the read-only status answer.
type OrderView struct {
	Order ledger.Order   `json:"order"`
	Book  []ledger.Order `json:"order_book"`
}
