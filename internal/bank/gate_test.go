package bank

import (
	"context"
	"path/filepath"
	"testing"

	"tradedesk/internal/ledger"
	"tradedesk/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = int64(1)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	st, err := gormstore.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.EnsureUser(ctx, ledger.User{
		ID: testUserID, Name: "Alex Morgan", Username: "alexm",
		Email: "alex@example.com", PhoneNumber: "+15550100",
	}))
	require.NoError(t, st.EnsureInstrument(ctx, ledger.Instrument{
		ID: 1, Ticker: "CASH", Name: "Cash Balance", Class: "Cash",
	}))
	require.NoError(t, st.EnsureHolding(ctx, testUserID, "CASH", 3025, 1, 3025))
	require.NoError(t, st.EnsureBankAccount(ctx, ledger.BankAccount{
		ID: 1, UserID: testUserID, BankName: "First National",
		AccountNumber: "****4821", AccountType: "Checking",
		AvailableBalance: 12000, Active: true,
	}))
	require.NoError(t, st.EnsureBankAccount(ctx, ledger.BankAccount{
		ID: 2, UserID: testUserID, BankName: "Old Closed Bank",
		AccountNumber: "****0000", AccountType: "Checking",
		AvailableBalance: 500, Active: false,
	}))
	return NewGate(st, nil)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("by account id", func(t *testing.T) {
		gate := newTestGate(t)
		id := int64(1)
		result, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, AccountID: &id, Amount: 500})
		require.NoError(t, err)
		assert.NotEmpty(t, result.TraceID)
		assert.InDelta(t, 11500, result.Account.AvailableBalance, 0.001)
		assert.InDelta(t, 3525, result.CashBalance, 0.001)
	})

	t.Run("by bank name case-insensitively", func(t *testing.T) {
		gate := newTestGate(t)
		result, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, BankName: "FIRST national", Amount: 250})
		require.NoError(t, err)
		assert.InDelta(t, 3275, result.CashBalance, 0.001)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, BankName: "First National", Amount: 0})
		var validation *ledger.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
	})

	t.Run("neither id nor name", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, Amount: 100})
		var validation *ledger.ValidationError
		require.ErrorAs(t, err, &validation)
	})

	t.Run("inactive account is invisible", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, BankName: "Old Closed Bank", Amount: 100})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("exceeds the bank balance", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.Transfer(ctx, TransferRequest{UserID: testUserID, BankName: "First National", Amount: 20000})
		var funds *ledger.InsufficientFundsError
		require.ErrorAs(t, err, &funds)
	})
}

func TestAdjustCash(t *testing.T) {
	ctx := context.Background()

	t.Run("add and subtract", func(t *testing.T) {
		gate := newTestGate(t)
		balance, err := gate.AdjustCash(ctx, testUserID, "add", 100)
		require.NoError(t, err)
		assert.InDelta(t, 3125, balance, 0.001)

		balance, err = gate.AdjustCash(ctx, testUserID, "SUBTRACT", 25)
		require.NoError(t, err)
		assert.InDelta(t, 3100, balance, 0.001)
	})

	t.Run("bad direction", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.AdjustCash(ctx, testUserID, "remove", 100)
		var validation *ledger.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "direction", validation.Field)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		gate := newTestGate(t)
		_, err := gate.AdjustCash(ctx, testUserID, "add", -5)
		var validation *ledger.ValidationError
		require.ErrorAs(t, err, &validation)
	})
}

func TestListAccounts(t *testing.T) {
	gate := newTestGate(t)
	accounts, err := gate.ListAccounts(context.Background(), testUserID)
	require.NoError(t, err)
	// Inactive accounts stay hidden.
	require.Len(t, accounts, 1)
	assert.Equal(t, "First National", accounts[0].BankName)
}

func TestResetDemo(t *testing.T) {
	ctx := context.Background()
	gate := newTestGate(t)
	_, err := gate.AdjustCash(ctx, testUserID, "subtract", 3000)
	require.NoError(t, err)

	require.NoError(t, gate.ResetDemo(ctx, testUserID, 3025))
	balance, err := gate.AdjustCash(ctx, testUserID, "add", 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 3025.01, balance, 0.001)
}
