// Package ledger holds the domain model shared by the order state machine,
// the bank transfer gate and the persistence layer.
package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

// CashTicker is the reserved instrument representing the dollar balance.
// The (user, CASH) holding stores dollars in both total_units and
// invested_amount.
const CashTicker = "CASH"

type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide accepts the voice-surface spelling ("buy"/"sell") in any case.
func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	}
	return "", false
}

type OrderKind string

const (
	KindMarket OrderKind = "Market"
	KindLimit  OrderKind = "Limit"
)

func ParseOrderKind(raw string) (OrderKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "market":
		return KindMarket, true
	case "limit":
		return KindLimit, true
	}
	return "", false
}

type OrderStatus string

const (
	StatusUnderReview OrderStatus = "Under Review"
	StatusPlaced      OrderStatus = "Placed"
	StatusCancelled   OrderStatus = "Cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusPlaced || s == StatusCancelled
}

// Rank defines the order-book listing order: pending orders first, then
// executed, then cancelled, then anything unexpected.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusUnderReview:
		return 1
	case StatusPlaced:
		return 2
	case StatusCancelled:
		return 3
	}
	return 4
}

// User is read-only to the core; provisioning owns its lifecycle.
type User struct {
	ID          int64
	Name        string
	Username    string
	Email       string
	PhoneNumber string
}

// Instrument is a tradable ticker and its descriptive metadata. Created by
// data-loading jobs, never mutated by the core.
type Instrument struct {
	ID       int64
	Ticker   string
	Name     string
	Class    string
	Category string
	Manager  string
	// Composition carries the raw sector/allocation breakdown as stored.
	Composition json.RawMessage
}

// Holding is the quantity of one instrument a user owns. Exactly one row per
// (user, instrument) pair. TotalUnits never goes negative after a committed
// mutation; enforcement happens at confirmation, not at placement.
type Holding struct {
	UserID         int64
	InstrumentID   int64
	Ticker         string
	TotalUnits     float64
	AvgCostPerUnit float64
	InvestedAmount float64
}

// Order is a trade intent moving through Under Review -> Placed | Cancelled.
// UnitPrice always reflects the oracle price at the moment of the last
// placement/update; the limit price is kept separately.
type Order struct {
	ID           int64
	UserID       int64
	InstrumentID int64
	Ticker       string
	Side         Side
	Kind         OrderKind
	Quantity     float64
	UnitPrice    float64
	LimitPrice   *float64
	Amount       float64
	Status       OrderStatus
	CreatedAt    time.Time
}

// Transaction is an immutable record of an executed fill. One per confirmed
// order, never mutated.
type Transaction struct {
	ID           int64
	UserID       int64
	InstrumentID int64
	Ticker       string
	Side         Side
	Date         time.Time
	Units        float64
	PricePerUnit float64
	Cost         float64
}

// BankAccount is an external cash source. Transfers decrement its balance;
// the order state machine never touches it.
type BankAccount struct {
	ID               int64
	UserID           int64
	BankName         string
	AccountNumber    string
	AccountType      string
	AvailableBalance float64
	Active           bool
}

type CashDirection string

const (
	CashAdd      CashDirection = "add"
	CashSubtract CashDirection = "subtract"
)

func ParseCashDirection(raw string) (CashDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "add":
		return CashAdd, true
	case "subtract":
		return CashSubtract, true
	}
	return "", false
}
