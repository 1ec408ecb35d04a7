package gormstore

import (
	"context"

	"tradedesk/internal/ledger"
	"tradedesk/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureUser inserts the user or updates the existing row with the same id.
func (s *Store) EnsureUser(ctx context.Context, u ledger.User) error {
	m := model.UserModel{
		ID:          u.ID,
		Name:        u.Name,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

// EnsureInstrument upserts an instrument keyed by ticker.
func (s *Store) EnsureInstrument(ctx context.Context, inst ledger.Instrument) error {
	m := model.InstrumentModel{
		ID:          inst.ID,
		Ticker:      normalizeTicker(inst.Ticker),
		Name:        inst.Name,
		Class:       inst.Class,
		Category:    inst.Category,
		Manager:     inst.Manager,
		Composition: datatypes.JSON(inst.Composition),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}

// EnsureHolding sets a user's position in the given ticker to exactly the
// provided units and invested amount.
func (s *Store) EnsureHolding(ctx context.Context, userID int64, ticker string, units, avgCost, invested float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := instrumentByTickerTx(tx, ticker)
		if err != nil {
			return translate(err)
		}
		m := model.HoldingModel{
			UserID:         userID,
			InstrumentID:   inst.ID,
			TotalUnits:     units,
			AvgCostPerUnit: avgCost,
			InvestedAmount: invested,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "instrument_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_units", "avg_cost_per_unit", "invested_amount"}),
		}).Create(&m).Error
	})
}

// EnsureBankAccount upserts a linked bank account by id.
func (s *Store) EnsureBankAccount(ctx context.Context, acct ledger.BankAccount) error {
	active := 0
	if acct.Active {
		active = 1
	}
	m := model.BankAccountModel{
		ID:               acct.ID,
		UserID:           acct.UserID,
		BankName:         acct.BankName,
		AccountNumber:    acct.AccountNumber,
		AccountType:      acct.AccountType,
		AvailableBalance: acct.AvailableBalance,
		Active:           active,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bank_account_id"}},
			UpdateAll: true,
		}).
		Create(&m).Error
}
