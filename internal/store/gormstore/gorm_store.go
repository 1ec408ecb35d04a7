// Package gormstore implements the store.Ledger interface on SQLite via
// Gorm. All check-then-act sequences (buying power, oversell, transfer
// solvency) run inside a single write transaction so concurrent callers
// serialize on the database instead of racing on a stale read.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradedesk/internal/ledger"
	"tradedesk/internal/pkg/money"
	"tradedesk/internal/store"
	storemodel "tradedesk/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type (
	userModel        = storemodel.UserModel
	instrumentModel  = storemodel.InstrumentModel
	holdingModel     = storemodel.HoldingModel
	orderModel       = storemodel.OrderModel
	transactionModel = storemodel.TransactionModel
	bankAccountModel = storemodel.BankAccountModel
)

// Store implements store.Ledger.
type Store struct {
	db *gorm.DB
}

var _ store.Ledger = (*Store)(nil)

// New opens (or creates) the ledger database at path and migrates the
// schema. The special path ":memory:" yields a private in-memory database,
// used by the test suites.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	} else {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&userModel{},
		&instrumentModel{},
		&holdingModel{},
		&orderModel{},
		&transactionModel{},
		&bankAccountModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Single writer keeps every ledger transaction serialized; SQLite would
	// enforce this anyway, this just avoids busy retries.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormDB exposes the underlying *gorm.DB for provisioning jobs.
func (s *Store) GormDB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// ----------------------------- Catalog ---------------------------------

func (s *Store) GetUser(ctx context.Context, userID int64) (ledger.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		return ledger.User{}, translate(err)
	}
	return userModelToRecord(m), nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (ledger.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("phone_number = ?", strings.TrimSpace(phone)).First(&m).Error; err != nil {
		return ledger.User{}, translate(err)
	}
	return userModelToRecord(m), nil
}

func (s *Store) GetInstrumentByTicker(ctx context.Context, ticker string) (ledger.Instrument, error) {
	var m instrumentModel
	if err := s.db.WithContext(ctx).Where("ticker = ?", normalizeTicker(ticker)).First(&m).Error; err != nil {
		return ledger.Instrument{}, translate(err)
	}
	return instrumentModelToRecord(m), nil
}

// ----------------------------- Holdings --------------------------------

func (s *Store) GetHoldingByTicker(ctx context.Context, userID int64, ticker string) (ledger.Holding, error) {
	var rec ledger.Holding
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := instrumentByTickerTx(tx, ticker)
		if err != nil {
			return err
		}
		h, err := holdingTx(tx, userID, inst.ID)
		if err != nil {
			return err
		}
		rec = holdingModelToRecord(h, inst.Ticker)
		return nil
	})
	if err != nil {
		return ledger.Holding{}, translate(err)
	}
	return rec, nil
}

func (s *Store) ListHoldings(ctx context.Context, userID int64) ([]ledger.Holding, error) {
	type row struct {
		holdingModel
		Ticker string
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&holdingModel{}).
		Select("holdings.*, instruments.ticker AS ticker").
		Joins("JOIN instruments ON instruments.instrument_id = holdings.instrument_id").
		Where("holdings.user_id = ?", userID).
		Order("instruments.ticker ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Holding, 0, len(rows))
	for _, r := range rows {
		out = append(out, holdingModelToRecord(r.holdingModel, r.Ticker))
	}
	return out, nil
}

// AvailableCash is the one read path for spendable cash: the committed cash
// holding already reflects every Placed order and transfer, so only Under
// Review buys are provisionally reserved.
func (s *Store) AvailableCash(ctx context.Context, userID int64) (float64, error) {
	var avail float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		avail, txErr = availableCashTx(tx, userID)
		return txErr
	})
	if err != nil {
		return 0, translate(err)
	}
	return avail, nil
}

func (s *Store) AdjustCash(ctx context.Context, userID int64, amount float64, dir ledger.CashDirection) (float64, error) {
	if amount < 0 {
		return 0, ledger.Invalid("amount", "must not be negative")
	}
	var balance float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cashInst, err := instrumentByTickerTx(tx, ledger.CashTicker)
		if err != nil {
			return err
		}
		cash, err := holdingTx(tx, userID, cashInst.ID)
		if err != nil {
			return err
		}
		switch dir {
		case ledger.CashAdd:
			balance = money.Add(cash.InvestedAmount, amount)
		case ledger.CashSubtract:
			balance = money.Sub(cash.InvestedAmount, amount)
			if balance < 0 {
				return &ledger.InsufficientFundsError{Available: cash.InvestedAmount, Required: amount}
			}
		default:
			return ledger.Invalid("action", "must be add or subtract")
		}
		return tx.Model(&holdingModel{}).Where("id = ?", cash.ID).Updates(map[string]interface{}{
			"invested_amount": balance,
			"total_units":     balance,
		}).Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

// --------------------------- Tx helpers --------------------------------

func instrumentByTickerTx(tx *gorm.DB, ticker string) (instrumentModel, error) {
	var m instrumentModel
	if err := tx.Where("ticker = ?", normalizeTicker(ticker)).First(&m).Error; err != nil {
		return instrumentModel{}, err
	}
	return m, nil
}

func holdingTx(tx *gorm.DB, userID, instrumentID int64) (holdingModel, error) {
	var m holdingModel
	if err := tx.Where("user_id = ? AND instrument_id = ?", userID, instrumentID).First(&m).Error; err != nil {
		return holdingModel{}, err
	}
	return m, nil
}

func availableCashTx(tx *gorm.DB, userID int64) (float64, error) {
	cashInst, err := instrumentByTickerTx(tx, ledger.CashTicker)
	if err != nil {
		return 0, err
	}
	cash, err := holdingTx(tx, userID, cashInst.ID)
	if err != nil {
		return 0, err
	}
	var reserved float64
	err = tx.Model(&orderModel{}).
		Where("user_id = ? AND side = ? AND status = ?", userID, string(ledger.SideBuy), string(ledger.StatusUnderReview)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&reserved).Error
	if err != nil {
		return 0, err
	}
	return money.Sub(cash.InvestedAmount, reserved), nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrNotFound
	}
	return err
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ----------------------------- Mappers ---------------------------------

func userModelToRecord(m userModel) ledger.User {
	return ledger.User{
		ID:          m.ID,
		Name:        m.Name,
		Username:    m.Username,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
	}
}

func instrumentModelToRecord(m instrumentModel) ledger.Instrument {
	return ledger.Instrument{
		ID:          m.ID,
		Ticker:      m.Ticker,
		Name:        m.Name,
		Class:       m.Class,
		Category:    m.Category,
		Manager:     m.Manager,
		Composition: []byte(m.Composition),
	}
}

func holdingModelToRecord(m holdingModel, ticker string) ledger.Holding {
	return ledger.Holding{
		UserID:         m.UserID,
		InstrumentID:   m.InstrumentID,
		Ticker:         ticker,
		TotalUnits:     m.TotalUnits,
		AvgCostPerUnit: m.AvgCostPerUnit,
		InvestedAmount: m.InvestedAmount,
	}
}

func newOrderModel(rec ledger.Order) orderModel {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return orderModel{
		ID:           rec.ID,
		UserID:       rec.UserID,
		InstrumentID: rec.InstrumentID,
		Ticker:       normalizeTicker(rec.Ticker),
		Side:         string(rec.Side),
		Kind:         string(rec.Kind),
		Quantity:     rec.Quantity,
		UnitPrice:    rec.UnitPrice,
		LimitPrice:   rec.LimitPrice,
		Amount:       rec.Amount,
		Status:       string(rec.Status),
		CreatedAtMs:  rec.CreatedAt.UnixMilli(),
	}
}

func orderModelToRecord(m orderModel) ledger.Order {
	return ledger.Order{
		ID:           m.ID,
		UserID:       m.UserID,
		InstrumentID: m.InstrumentID,
		Ticker:       m.Ticker,
		Side:         ledger.Side(m.Side),
		Kind:         ledger.OrderKind(m.Kind),
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		LimitPrice:   m.LimitPrice,
		Amount:       m.Amount,
		Status:       ledger.OrderStatus(m.Status),
		CreatedAt:    time.UnixMilli(m.CreatedAtMs),
	}
}

func transactionModelToRecord(m transactionModel) ledger.Transaction {
	return ledger.Transaction{
		ID:           m.ID,
		UserID:       m.UserID,
		InstrumentID: m.InstrumentID,
		Ticker:       m.Ticker,
		Side:         ledger.Side(m.Side),
		Date:         time.UnixMilli(m.DateMs),
		Units:        m.Units,
		PricePerUnit: m.PricePerUnit,
		Cost:         m.Cost,
	}
}

func bankAccountModelToRecord(m bankAccountModel) ledger.BankAccount {
	return ledger.BankAccount{
		ID:               m.ID,
		UserID:           m.UserID,
		BankName:         m.BankName,
		AccountNumber:    m.AccountNumber,
		AccountType:      m.AccountType,
		AvailableBalance: m.AvailableBalance,
		Active:           m.Active != 0,
	}
}
