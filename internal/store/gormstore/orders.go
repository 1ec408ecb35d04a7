package gormstore

import (
	"context"
	"errors"
	"time"

	"tradedesk/internal/ledger"
	"tradedesk/internal/pkg/money"
	"tradedesk/internal/store"

	"gorm.io/gorm"
)

func (s *Store) GetOrder(ctx context.Context, userID, orderID int64) (ledger.Order, error) {
	var m orderModel
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		First(&m).Error
	if err != nil {
		return ledger.Order{}, translate(err)
	}
	return orderModelToRecord(m), nil
}

func (s *Store) LatestOrder(ctx context.Context, userID int64, statuses ...ledger.OrderStatus) (ledger.Order, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, st := range statuses {
			vals = append(vals, string(st))
		}
		query = query.Where("status IN ?", vals)
	}
	var m orderModel
	if err := query.Order("created_at DESC, order_id DESC").First(&m).Error; err != nil {
		return ledger.Order{}, translate(err)
	}
	return orderModelToRecord(m), nil
}

func (s *Store) ListOrderBook(ctx context.Context, userID int64) ([]ledger.Order, error) {
	var models []orderModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(statusRankExpr + ", created_at DESC, order_id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Order, 0, len(models))
	for _, m := range models {
		out = append(out, orderModelToRecord(m))
	}
	return out, nil
}

// statusRankExpr mirrors ledger.OrderStatus.Rank for SQL-side sorting.
const statusRankExpr = "CASE status " +
	"WHEN 'Under Review' THEN 1 " +
	"WHEN 'Placed' THEN 2 " +
	"WHEN 'Cancelled' THEN 3 " +
	"ELSE 4 END"

// PlaceOrder inserts the order and runs the buy-side buying power check in
// the same transaction. The check compares against available cash as it
// stood before this order's own reservation.
func (s *Store) PlaceOrder(ctx context.Context, order ledger.Order, persistRejected bool) (ledger.Order, error) {
	var (
		placed       ledger.Order
		insufficient *ledger.InsufficientFundsError
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		avail, err := availableCashTx(tx, order.UserID)
		if err != nil {
			return err
		}
		m := newOrderModel(order)
		m.ID = 0
		m.Status = string(ledger.StatusUnderReview)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		placed = orderModelToRecord(m)
		if order.Side == ledger.SideBuy && order.Amount > avail {
			insufficient = &ledger.InsufficientFundsError{Available: avail, Required: order.Amount}
			if !persistRejected {
				return insufficient
			}
		}
		return nil
	})
	if err != nil {
		return ledger.Order{}, translate(err)
	}
	if insufficient != nil {
		// Order committed anyway; caller surfaces the shortfall.
		return placed, insufficient
	}
	return placed, nil
}

// UpdateOrder persists a mutated Under Review order. The buying power check
// runs against available cash as of the pre-update state, which still
// reserves this order's previous amount; a failed check rolls the update
// back.
func (s *Store) UpdateOrder(ctx context.Context, order ledger.Order) (ledger.Order, error) {
	var updated ledger.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current orderModel
		err := tx.Where("order_id = ? AND user_id = ? AND status = ?",
			order.ID, order.UserID, string(ledger.StatusUnderReview)).
			First(&current).Error
		if err != nil {
			return err
		}
		avail, err := availableCashTx(tx, order.UserID)
		if err != nil {
			return err
		}
		res := tx.Model(&orderModel{}).Where("order_id = ?", order.ID).Updates(map[string]interface{}{
			"instrument_id": order.InstrumentID,
			"ticker":        normalizeTicker(order.Ticker),
			"side":          string(order.Side),
			"kind":          string(order.Kind),
			"quantity":      order.Quantity,
			"unit_price":    order.UnitPrice,
			"limit_price":   order.LimitPrice,
			"amount":        order.Amount,
		})
		if res.Error != nil {
			return res.Error
		}
		if order.Side == ledger.SideBuy && avail < order.Amount {
			return &ledger.InsufficientFundsError{Available: avail, Required: order.Amount}
		}
		updated = order
		updated.Status = ledger.StatusUnderReview
		updated.CreatedAt = time.UnixMilli(current.CreatedAtMs)
		return nil
	})
	if err != nil {
		return ledger.Order{}, translate(err)
	}
	return updated, nil
}

// ConfirmOrder settles an Under Review order atomically: solvency and
// oversell checks, cash and holding mutation, fill record and the status
// flip all commit or roll back together.
func (s *Store) ConfirmOrder(ctx context.Context, userID, orderID int64) (store.ConfirmResult, error) {
	var result store.ConfirmResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var om orderModel
		err := tx.Where("order_id = ? AND user_id = ? AND status = ?",
			orderID, userID, string(ledger.StatusUnderReview)).
			First(&om).Error
		if err != nil {
			return err
		}
		cashInst, err := instrumentByTickerTx(tx, ledger.CashTicker)
		if err != nil {
			return err
		}
		switch ledger.Side(om.Side) {
		case ledger.SideBuy:
			if err := settleBuyTx(tx, cashInst.ID, om); err != nil {
				return err
			}
		case ledger.SideSell:
			if err := settleSellTx(tx, cashInst.ID, om); err != nil {
				return err
			}
		default:
			return ledger.Invalid("side", "unknown side on stored order")
		}
		if err := tx.Model(&orderModel{}).Where("order_id = ?", om.ID).
			Update("status", string(ledger.StatusPlaced)).Error; err != nil {
			return err
		}
		om.Status = string(ledger.StatusPlaced)
		result.Order = orderModelToRecord(om)
		avail, err := availableCashTx(tx, userID)
		if err != nil {
			return err
		}
		result.AvailableCash = avail
		return nil
	})
	if err != nil {
		return store.ConfirmResult{}, translate(err)
	}
	return result, nil
}

// settleBuyTx checks the raw cash balance, not the available calculation:
// this order's own reservation is among the pending amounts already counted,
// and settlement only needs the committed cash to cover it.
func settleBuyTx(tx *gorm.DB, cashInstrumentID int64, om orderModel) error {
	cash, err := holdingTx(tx, om.UserID, cashInstrumentID)
	if err != nil {
		return err
	}
	if cash.InvestedAmount < om.Amount {
		return &ledger.InsufficientFundsError{Available: cash.InvestedAmount, Required: om.Amount}
	}
	newCash := money.Sub(cash.InvestedAmount, om.Amount)
	if err := tx.Model(&holdingModel{}).Where("id = ?", cash.ID).Updates(map[string]interface{}{
		"invested_amount": newCash,
		"total_units":     newCash,
	}).Error; err != nil {
		return err
	}

	var target holdingModel
	err = tx.Where("user_id = ? AND instrument_id = ?", om.UserID, om.InstrumentID).First(&target).Error
	switch {
	case err == nil:
		newUnits := target.TotalUnits + om.Quantity
		newInvested := money.Add(target.InvestedAmount, om.Amount)
		avgCost := money.WeightedAvgCost(target.TotalUnits, target.InvestedAmount, om.Quantity, om.Amount)
		if err := tx.Model(&holdingModel{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
			"total_units":       newUnits,
			"invested_amount":   newInvested,
			"avg_cost_per_unit": avgCost,
		}).Error; err != nil {
			return err
		}
	case isNotFound(err):
		created := holdingModel{
			UserID:         om.UserID,
			InstrumentID:   om.InstrumentID,
			TotalUnits:     om.Quantity,
			AvgCostPerUnit: om.UnitPrice,
			InvestedAmount: om.Amount,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
	default:
		return err
	}
	return appendFillTx(tx, om)
}

// settleSellTx refuses to sell units already promised to other pending sell
// orders of the same instrument, then removes cost basis at the average
// cost, not sale proceeds; the gain or loss stays implicit.
func settleSellTx(tx *gorm.DB, cashInstrumentID int64, om orderModel) error {
	var target holdingModel
	err := tx.Where("user_id = ? AND instrument_id = ?", om.UserID, om.InstrumentID).First(&target).Error
	if err != nil {
		if isNotFound(err) {
			return &ledger.InsufficientQuantityError{Ticker: om.Ticker, Available: 0, Requested: om.Quantity}
		}
		return err
	}
	var otherReserved float64
	err = tx.Model(&orderModel{}).
		Where("user_id = ? AND instrument_id = ? AND side = ? AND status = ? AND order_id != ?",
			om.UserID, om.InstrumentID, string(ledger.SideSell), string(ledger.StatusUnderReview), om.ID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&otherReserved).Error
	if err != nil {
		return err
	}
	available := target.TotalUnits - otherReserved
	if available < 0 {
		available = 0
	}
	if om.Quantity > available {
		return &ledger.InsufficientQuantityError{Ticker: om.Ticker, Available: available, Requested: om.Quantity}
	}

	var cash holdingModel
	err = tx.Where("user_id = ? AND instrument_id = ?", om.UserID, cashInstrumentID).First(&cash).Error
	switch {
	case err == nil:
		newCash := money.Add(cash.InvestedAmount, om.Amount)
		if err := tx.Model(&holdingModel{}).Where("id = ?", cash.ID).Updates(map[string]interface{}{
			"invested_amount": newCash,
			"total_units":     newCash,
		}).Error; err != nil {
			return err
		}
	case isNotFound(err):
		created := holdingModel{
			UserID:         om.UserID,
			InstrumentID:   cashInstrumentID,
			TotalUnits:     om.Amount,
			AvgCostPerUnit: 1,
			InvestedAmount: om.Amount,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
	default:
		return err
	}

	newUnits := target.TotalUnits - om.Quantity
	newInvested := money.Sub(target.InvestedAmount, money.Mul(target.AvgCostPerUnit, om.Quantity))
	if newUnits <= 0 {
		newUnits = 0
		newInvested = 0
	}
	if err := tx.Model(&holdingModel{}).Where("id = ?", target.ID).Updates(map[string]interface{}{
		"total_units":     newUnits,
		"invested_amount": newInvested,
	}).Error; err != nil {
		return err
	}
	return appendFillTx(tx, om)
}

func appendFillTx(tx *gorm.DB, om orderModel) error {
	fill := transactionModel{
		UserID:       om.UserID,
		InstrumentID: om.InstrumentID,
		Ticker:       om.Ticker,
		Side:         om.Side,
		DateMs:       time.Now().UnixMilli(),
		Units:        om.Quantity,
		PricePerUnit: om.UnitPrice,
		Cost:         om.Amount,
	}
	return tx.Create(&fill).Error
}

func (s *Store) CancelOrder(ctx context.Context, userID, orderID int64) (ledger.Order, error) {
	var cancelled ledger.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m orderModel
		err := tx.Where("order_id = ? AND user_id = ? AND status = ?",
			orderID, userID, string(ledger.StatusUnderReview)).
			First(&m).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&orderModel{}).Where("order_id = ?", m.ID).
			Update("status", string(ledger.StatusCancelled)).Error; err != nil {
			return err
		}
		m.Status = string(ledger.StatusCancelled)
		cancelled = orderModelToRecord(m)
		return nil
	})
	if err != nil {
		return ledger.Order{}, translate(err)
	}
	return cancelled, nil
}

func (s *Store) ExpireStaleOrders(ctx context.Context, userID int64, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-ttl).UnixMilli()
	res := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("user_id = ? AND status = ? AND created_at < ?",
			userID, string(ledger.StatusUnderReview), cutoff).
		Update("status", string(ledger.StatusCancelled))
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	var models []transactionModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Transaction, 0, len(models))
	for _, m := range models {
		out = append(out, transactionModelToRecord(m))
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
