// Package store declares the persistence surface consumed by the desk and
// bank services. The gormstore package provides the SQLite implementation.
package store

import (
	"context"
	"time"

	"tradedesk/internal/ledger"
)

// ConfirmResult is the outcome of an order settlement.
type ConfirmResult struct {
	Order ledger.Order
	// AvailableCash is recomputed after the settlement committed.
	AvailableCash float64
}

// TransferResult is the outcome of a bank transfer.
type TransferResult struct {
	Account ledger.BankAccount
	// CashBalance is the cash holding balance after the transfer.
	CashBalance float64
}

// Ledger is the entry point for ledger persistence. Every mutating method
// runs as a single database transaction: solvency and quantity checks happen
// inside the same transaction as the writes they guard, so concurrent calls
// cannot both pass a check against the same stale balance.
type Ledger interface {
	// Catalog (read-only to the core).
	GetUser(ctx context.Context, userID int64) (ledger.User, error)
	GetUserByPhone(ctx context.Context, phone string) (ledger.User, error)
	GetInstrumentByTicker(ctx context.Context, ticker string) (ledger.Instrument, error)

	// Holdings and cash.
	GetHoldingByTicker(ctx context.Context, userID int64, ticker string) (ledger.Holding, error)
	ListHoldings(ctx context.Context, userID int64) ([]ledger.Holding, error)
	// AvailableCash is the single path for spendable cash: committed cash
	// holding minus amounts reserved by Under Review buy orders.
	AvailableCash(ctx context.Context, userID int64) (float64, error)
	// AdjustCash adds or subtracts a positive amount on the cash holding and
	// returns the new balance. Subtracting below zero fails.
	AdjustCash(ctx context.Context, userID int64, amount float64, dir ledger.CashDirection) (float64, error)

	// Orders.
	GetOrder(ctx context.Context, userID, orderID int64) (ledger.Order, error)
	// LatestOrder returns the user's most recent order, optionally filtered
	// to the given statuses.
	LatestOrder(ctx context.Context, userID int64, statuses ...ledger.OrderStatus) (ledger.Order, error)
	// ListOrderBook returns all of the user's orders sorted Under Review,
	// Placed, Cancelled; newest first within each group.
	ListOrderBook(ctx context.Context, userID int64) ([]ledger.Order, error)
	// PlaceOrder persists a new Under Review order after checking buying
	// power for buys inside the same transaction. When persistRejected is
	// true a failed check still commits the order and the returned error is
	// a *ledger.InsufficientFundsError alongside the persisted order.
	PlaceOrder(ctx context.Context, order ledger.Order, persistRejected bool) (ledger.Order, error)
	// UpdateOrder saves a mutated Under Review order, re-running the buying
	// power check for buys; the update rolls back on failure.
	UpdateOrder(ctx context.Context, order ledger.Order) (ledger.Order, error)
	// ConfirmOrder settles an Under Review order: mutates cash and the
	// target holding, appends a fill transaction and marks the order Placed,
	// all atomically.
	ConfirmOrder(ctx context.Context, userID, orderID int64) (ConfirmResult, error)
	// CancelOrder marks an Under Review order Cancelled. No ledger mutation.
	CancelOrder(ctx context.Context, userID, orderID int64) (ledger.Order, error)
	// ExpireStaleOrders cancels Under Review orders older than ttl and
	// returns how many were cancelled. A ttl of zero is a no-op.
	ExpireStaleOrders(ctx context.Context, userID int64, ttl time.Duration) (int, error)

	// Fills.
	ListTransactions(ctx context.Context, userID int64) ([]ledger.Transaction, error)

	// Bank accounts.
	ListBankAccounts(ctx context.Context, userID int64) ([]ledger.BankAccount, error)
	GetBankAccount(ctx context.Context, userID, accountID int64) (ledger.BankAccount, error)
	GetBankAccountByName(ctx context.Context, userID int64, name string) (ledger.BankAccount, error)
	// TransferFromBank moves funds from an active account into the cash
	// holding, creating the holding when absent.
	TransferFromBank(ctx context.Context, userID, accountID int64, amount float64) (TransferResult, error)

	// ResetDemo clears the user's order book and restores the cash holding
	// to the given balance. Demo tooling only.
	ResetDemo(ctx context.Context, userID int64, cash float64) error

	Close() error
}
