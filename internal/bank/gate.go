package bank

import (
	"context"
	"fmt"
	"strings"

	"tradedesk/internal/ledger"
	"tradedesk/internal/logger"
	"tradedesk/internal/store"
	"tradedesk/internal/store/tradelog"

	"github.com/google/uuid"
)

// Gate handles cash movements that do not go through the order book: bank
// transfers in, manual cash adjustments and the demo reset.
type Gate struct {
	store   store.Ledger
	journal *tradelog.Store
}

func NewGate(st store.Ledger, journal *tradelog.Store) *Gate {
	return &Gate{store: st, journal: journal}
}

// TransferRequest identifies the source account either by id or by bank
// name; id wins when both are set.
type TransferRequest struct {
	UserID    int64
	AccountID *int64
	BankName  string
	Amount    float64
}

// TransferResult reports the post-transfer state of both sides of the move.
type TransferResult struct {
	TraceID     string
	Account     ledger.BankAccount
	CashBalance float64
}

// Transfer moves funds from a linked bank account into the trading cash
// balance. The balance check and both balance writes happen in one store
// transaction.
func (g *Gate) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	traceID := uuid.NewString()

	if req.Amount <= 0 {
		err := ledger.Invalid("amount", "must be greater than zero")
		g.journalOp(ctx, traceID, req.UserID, "bank_transfer", nil, err)
		return TransferResult{TraceID: traceID}, err
	}
	account, err := g.resolveAccount(ctx, req.UserID, req.AccountID, req.BankName)
	if err != nil {
		g.journalOp(ctx, traceID, req.UserID, "bank_transfer", nil, err)
		return TransferResult{TraceID: traceID}, err
	}

	moved, err := g.store.TransferFromBank(ctx, req.UserID, account.ID, req.Amount)
	if err != nil {
		g.journalOp(ctx, traceID, req.UserID, "bank_transfer", map[string]any{
			"bank": account.BankName, "amount": req.Amount,
		}, err)
		return TransferResult{TraceID: traceID}, err
	}

	g.journalOp(ctx, traceID, req.UserID, "bank_transfer", map[string]any{
		"bank": moved.Account.BankName, "amount": req.Amount, "cash_balance": moved.CashBalance,
	}, nil)
	logger.Infof("transferred $%.2f from %s for user %d", req.Amount, moved.Account.BankName, req.UserID)
	return TransferResult{TraceID: traceID, Account: moved.Account, CashBalance: moved.CashBalance}, nil
}

// AdjustCash adds funds to or removes funds from the cash balance directly.
// Removing more than the current balance fails without changing anything.
func (g *Gate) AdjustCash(ctx context.Context, userID int64, direction string, amount float64) (float64, error) {
	traceID := uuid.NewString()

	if amount <= 0 {
		err := ledger.Invalid("amount", "must be greater than zero")
		g.journalOp(ctx, traceID, userID, "adjust_cash", nil, err)
		return 0, err
	}
	dir, ok := ledger.ParseCashDirection(direction)
	if !ok {
		err := ledger.Invalid("direction", "must be add or subtract")
		g.journalOp(ctx, traceID, userID, "adjust_cash", nil, err)
		return 0, err
	}

	balance, err := g.store.AdjustCash(ctx, userID, amount, dir)
	g.journalOp(ctx, traceID, userID, "adjust_cash", map[string]any{
		"direction": string(dir), "amount": amount, "cash_balance": balance,
	}, err)
	if err != nil {
		return 0, err
	}
	logger.Infof("cash %s of $%.2f for user %d, balance now $%.2f", dir, amount, userID, balance)
	return balance, nil
}

// ListAccounts returns the user's active linked bank accounts.
func (g *Gate) ListAccounts(ctx context.Context, userID int64) ([]ledger.BankAccount, error) {
	return g.store.ListBankAccounts(ctx, userID)
}

// ResetDemo wipes the user's order book and restores the starting cash
// balance.
func (g *Gate) ResetDemo(ctx context.Context, userID int64, cash float64) error {
	traceID := uuid.NewString()
	err := g.store.ResetDemo(ctx, userID, cash)
	g.journalOp(ctx, traceID, userID, "reset_demo", map[string]any{"cash": cash}, err)
	return err
}

func (g *Gate) journalOp(ctx context.Context, traceID string, userID int64, op string, detail map[string]any, opErr error) {
	if g.journal == nil {
		return
	}
	rec := tradelog.Record{TraceID: traceID, UserID: userID, Op: op, Detail: detail}
	if opErr != nil {
		rec.Err = opErr.Error()
	}
	if err := g.journal.Append(ctx, rec); err != nil {
		logger.Warnf("tradelog append failed (%s): %v", op, err)
	}
}

func (g *Gate) resolveAccount(ctx context.Context, userID int64, accountID *int64, bankName string) (ledger.BankAccount, error) {
	if accountID != nil {
		return g.store.GetBankAccount(ctx, userID, *accountID)
	}
	name := strings.TrimSpace(bankName)
	if name == "" {
		return ledger.BankAccount{}, ledger.Invalid("bank", "account id or bank name required")
	}
	account, err := g.store.GetBankAccountByName(ctx, userID, name)
	if err != nil {
		return ledger.BankAccount{}, fmt.Errorf("bank account %q: %w", name, err)
	}
	return account, nil
}
