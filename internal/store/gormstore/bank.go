package gormstore

import (
	"context"
	"strings"

	"tradedesk/internal/ledger"
	"tradedesk/internal/pkg/money"
	"tradedesk/internal/store"

	"gorm.io/gorm"
)

func (s *Store) ListBankAccounts(ctx context.Context, userID int64) ([]ledger.BankAccount, error) {
	var models []bankAccountModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = 1", userID).
		Order("bank_account_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.BankAccount, 0, len(models))
	for _, m := range models {
		out = append(out, bankAccountModelToRecord(m))
	}
	return out, nil
}

func (s *Store) GetBankAccount(ctx context.Context, userID, accountID int64) (ledger.BankAccount, error) {
	var m bankAccountModel
	err := s.db.WithContext(ctx).
		Where("bank_account_id = ? AND user_id = ? AND is_active = 1", accountID, userID).
		First(&m).Error
	if err != nil {
		return ledger.BankAccount{}, translate(err)
	}
	return bankAccountModelToRecord(m), nil
}

func (s *Store) GetBankAccountByName(ctx context.Context, userID int64, name string) (ledger.BankAccount, error) {
	var m bankAccountModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = 1 AND LOWER(bank_name) = ?", userID, strings.ToLower(strings.TrimSpace(name))).
		First(&m).Error
	if err != nil {
		return ledger.BankAccount{}, translate(err)
	}
	return bankAccountModelToRecord(m), nil
}

// TransferFromBank is a capital contribution, not a trade: no fill record is
// written, only the account and the cash holding move.
func (s *Store) TransferFromBank(ctx context.Context, userID, accountID int64, amount float64) (store.TransferResult, error) {
	var result store.TransferResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account bankAccountModel
		err := tx.Where("bank_account_id = ? AND user_id = ? AND is_active = 1", accountID, userID).
			First(&account).Error
		if err != nil {
			return err
		}
		if account.AvailableBalance < amount {
			return &ledger.InsufficientFundsError{Available: account.AvailableBalance, Required: amount}
		}
		cashInst, err := instrumentByTickerTx(tx, ledger.CashTicker)
		if err != nil {
			return err
		}

		newBankBalance := money.Sub(account.AvailableBalance, amount)
		if err := tx.Model(&bankAccountModel{}).Where("bank_account_id = ?", account.ID).
			Update("available_balance", newBankBalance).Error; err != nil {
			return err
		}
		account.AvailableBalance = newBankBalance

		var cash holdingModel
		err = tx.Where("user_id = ? AND instrument_id = ?", userID, cashInst.ID).First(&cash).Error
		switch {
		case err == nil:
			newCash := money.Add(cash.InvestedAmount, amount)
			if err := tx.Model(&holdingModel{}).Where("id = ?", cash.ID).Updates(map[string]interface{}{
				"invested_amount": newCash,
				"total_units":     newCash,
			}).Error; err != nil {
				return err
			}
			result.CashBalance = newCash
		case isNotFound(err):
			created := holdingModel{
				UserID:         userID,
				InstrumentID:   cashInst.ID,
				TotalUnits:     amount,
				AvgCostPerUnit: 1,
				InvestedAmount: amount,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			result.CashBalance = amount
		default:
			return err
		}
		result.Account = bankAccountModelToRecord(account)
		return nil
	})
	if err != nil {
		return store.TransferResult{}, translate(err)
	}
	return result, nil
}

// ResetDemo wipes the user's order book and restores the demo cash balance.
func (s *Store) ResetDemo(ctx context.Context, userID int64, cash float64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&orderModel{}).Error; err != nil {
			return err
		}
		cashInst, err := instrumentByTickerTx(tx, ledger.CashTicker)
		if err != nil {
			return err
		}
		holding, err := holdingTx(tx, userID, cashInst.ID)
		if err != nil {
			return err
		}
		return tx.Model(&holdingModel{}).Where("id = ?", holding.ID).Updates(map[string]interface{}{
			"invested_amount": cash,
			"total_units":     cash,
		}).Error
	})
	return translate(err)
}
