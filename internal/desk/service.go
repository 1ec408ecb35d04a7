package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tradedesk/internal/ledger"
	"tradedesk/internal/logger"
	"tradedesk/internal/pkg/money"
	"tradedesk/internal/pricing"
	"tradedesk/internal/store"
	"tradedesk/internal/store/tradelog"

	"github.com/google/uuid"
)

// Service implements the order lifecycle against a ledger store and a price
// oracle. One call is one unit of work; no background goroutine mutates the
// ledger.
type Service struct {
	store   store.Ledger
	oracle  pricing.Oracle
	journal *tradelog.Store
	cfg     Config
}

func NewService(st store.Ledger, oracle pricing.Oracle, journal *tradelog.Store, cfg Config) *Service {
	return &Service{store: st, oracle: oracle, journal: journal, cfg: cfg}
}

// Place validates a trade request, prices it and records it Under Review.
// The buying-power failure path intentionally still returns the persisted
// order (see Config.PersistRejectedOrders) together with the error.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (OrderResult, error) {
	traceID := uuid.NewString()
	s.sweepStale(ctx, req.UserID)

	side, kind, err := validatePlace(req)
	if err != nil {
		return s.fail(ctx, traceID, req.UserID, 0, "place_order", err)
	}
	inst, err := s.store.GetInstrumentByTicker(ctx, req.Ticker)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			err = fmt.Errorf("symbol %s: %w", strings.ToUpper(strings.TrimSpace(req.Ticker)), ledger.ErrNotFound)
		}
		return s.fail(ctx, traceID, req.UserID, 0, "place_order", err)
	}
	quote, err := s.oracle.GetPrice(ctx, inst.Ticker)
	if err != nil {
		return s.fail(ctx, traceID, req.UserID, 0, "place_order", err)
	}

	unitPrice := money.Round2(quote.Price)
	execPrice := quote.Price
	var limitPrice *float64
	if kind == ledger.KindLimit {
		limitPrice = req.LimitPrice
		execPrice = *req.LimitPrice
	}
	amount := money.Mul(req.Quantity, execPrice)

	order := ledger.Order{
		UserID:       req.UserID,
		InstrumentID: inst.ID,
		Ticker:       inst.Ticker,
		Side:         side,
		Kind:         kind,
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
		LimitPrice:   limitPrice,
		Amount:       amount,
		Status:       ledger.StatusUnderReview,
	}
	placed, placeErr := s.store.PlaceOrder(ctx, order, s.cfg.PersistRejectedOrders)

	var insufficient *ledger.InsufficientFundsError
	if placeErr != nil && !errors.As(placeErr, &insufficient) {
		return s.fail(ctx, traceID, req.UserID, 0, "place_order", placeErr)
	}

	result := s.finish(ctx, traceID, req.UserID, "place_order", &placed, map[string]any{
		"symbol": placed.Ticker, "side": string(side), "quantity": req.Quantity, "amount": amount,
	}, placeErr)
	if insufficient != nil {
		result.Message = insufficient.Error()
		return result, insufficient
	}
	result.Message = fmt.Sprintf("Trade under review: %s %v units of %s. Confirm the trade or request an update.",
		side, req.Quantity, placed.Ticker)
	return result, nil
}

// Update applies the provided fields to an Under Review order, re-prices it
// and re-runs the buy-side buying power check. A failed check rolls the
// whole update back.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (OrderResult, error) {
	traceID := uuid.NewString()
	s.sweepStale(ctx, req.UserID)

	order, err := s.targetUnderReview(ctx, req.UserID, req.OrderID)
	if err != nil {
		return s.fail(ctx, traceID, req.UserID, 0, "update_order", err)
	}

	if req.Ticker != "" {
		inst, err := s.store.GetInstrumentByTicker(ctx, req.Ticker)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				err = fmt.Errorf("symbol %s: %w", strings.ToUpper(strings.TrimSpace(req.Ticker)), ledger.ErrNotFound)
			}
			return s.fail(ctx, traceID, req.UserID, order.ID, "update_order", err)
		}
		order.Ticker = inst.Ticker
		order.InstrumentID = inst.ID
	}
	if req.Quantity != nil {
		if err := validateQuantity(*req.Quantity); err != nil {
			return s.fail(ctx, traceID, req.UserID, order.ID, "update_order", err)
		}
		order.Quantity = *req.Quantity
	}
	if req.Kind != "" {
		kind, ok := ledger.ParseOrderKind(req.Kind)
		if !ok {
			return s.fail(ctx, traceID, req.UserID, order.ID, "update_order",
				ledger.Invalid("order type", "must be market or limit"))
		}
		order.Kind = kind
	}
	if req.LimitPrice != nil {
		if *req.LimitPrice <= 0 {
			return s.fail(ctx, traceID, req.UserID, order.ID, "update_order",
				ledger.Invalid("limit price", "must be greater than zero"))
		}
		order.LimitPrice = req.LimitPrice
	}
	if req.Side != "" {
		side, ok := ledger.ParseSide(req.Side)
		if !ok {
			return s.fail(ctx, traceID, req.UserID, order.ID, "update_order",
				ledger.Invalid("action", "must be buy or sell"))
		}
		order.Side = side
	}

	quote, err := s.oracle.GetPrice(ctx, order.Ticker)
	if err != nil {
		return s.fail(ctx, traceID, req.UserID, order.ID, "update_order", err)
	}
	order.UnitPrice = money.Round2(quote.Price)
	if req.Quantity != nil || req.LimitPrice != nil {
		execPrice := quote.Price
		if req.LimitPrice != nil {
			execPrice = *req.LimitPrice
		}
		order.Amount = money.Mul(order.Quantity, execPrice)
	}

	updated, err := s.store.UpdateOrder(ctx, order)
	if err != nil {
		return s.fail(ctx, traceID, req.UserID, order.ID, "update_order", err)
	}

	result := s.finish(ctx, traceID, req.UserID, "update_order", &updated, map[string]any{
		"symbol": updated.Ticker, "side": string(updated.Side), "quantity": updated.Quantity, "amount": updated.Amount,
	}, nil)
	result.Message = fmt.Sprintf("Trade order %d updated. Confirm to place the order.", updated.ID)
	return result, nil
}

// Confirm settles an Under Review order into the ledger. All mutations
// commit atomically in the store; a failed precondition leaves every balance
// untouched.
func (s *Service) Confirm(ctx context.Context, userID int64, orderID *int64) (OrderResult, error) {
	traceID := uuid.NewString()
	s.sweepStale(ctx, userID)

	target, err := s.targetUnderReview(ctx, userID, orderID)
	if err != nil {
		return s.fail(ctx, traceID, userID, 0, "confirm_order", err)
	}
	confirmed, err := s.store.ConfirmOrder(ctx, userID, target.ID)
	if err != nil {
		return s.fail(ctx, traceID, userID, target.ID, "confirm_order", err)
	}

	result := s.finish(ctx, traceID, userID, "confirm_order", &confirmed.Order, map[string]any{
		"symbol": confirmed.Order.Ticker, "side": string(confirmed.Order.Side), "amount": confirmed.Order.Amount,
	}, nil)
	result.AvailableCash = confirmed.AvailableCash
	result.Message = fmt.Sprintf("Trade order executed. Updated cash balance: $%.2f", confirmed.AvailableCash)
	return result, nil
}

// Cancel marks an Under Review order Cancelled. Both the explicit-id and the
// most-recent paths require Under Review: an executed order cannot be
// cancelled, only reversed by an opposite trade.
func (s *Service) Cancel(ctx context.Context, userID int64, orderID *int64) (OrderResult, error) {
	traceID := uuid.NewString()
	s.sweepStale(ctx, userID)

	target, err := s.targetUnderReview(ctx, userID, orderID)
	if err != nil {
		return s.fail(ctx, traceID, userID, 0, "cancel_order", err)
	}
	cancelled, err := s.store.CancelOrder(ctx, userID, target.ID)
	if err != nil {
		return s.fail(ctx, traceID, userID, target.ID, "cancel_order", err)
	}

	result := s.finish(ctx, traceID, userID, "cancel_order", &cancelled, map[string]any{
		"symbol": cancelled.Ticker, "side": string(cancelled.Side),
	}, nil)
	result.Message = fmt.Sprintf("Order %d has been cancelled.", cancelled.ID)
	return result, nil
}

// OrderStatus is a pure read: by id when given, otherwise the user's most
// recent order in any status.
func (s *Service) OrderStatus(ctx context.Context, userID int64, orderID *int64) (OrderView, error) {
	var (
		order ledger.Order
		err   error
	)
	if orderID != nil {
		order, err = s.store.GetOrder(ctx, userID, *orderID)
	} else {
		order, err = s.store.LatestOrder(ctx, userID)
	}
	if err != nil {
		return OrderView{}, err
	}
	book, err := s.store.ListOrderBook(ctx, userID)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{Order: order, Book: book}, nil
}

// AvailableCash exposes the single spendable-cash calculation.
func (s *Service) AvailableCash(ctx context.Context, userID int64) (float64, error) {
	return s.store.AvailableCash(ctx, userID)
}

// OrderBook returns the full listing for display surfaces.
func (s *Service) OrderBook(ctx context.Context, userID int64) ([]ledger.Order, error) {
	return s.store.ListOrderBook(ctx, userID)
}

// Transactions returns the user's fill history, newest first.
func (s *Service) Transactions(ctx context.Context, userID int64) ([]ledger.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

// Holdings returns the user's positions, cash included.
func (s *Service) Holdings(ctx context.Context, userID int64) ([]ledger.Holding, error) {
	return s.store.ListHoldings(ctx, userID)
}

// UserByPhone resolves the caller identity; the voice channel only knows the
// caller's number.
func (s *Service) UserByPhone(ctx context.Context, phone string) (ledger.User, error) {
	return s.store.GetUserByPhone(ctx, phone)
}

// Journal returns recent journaled operations for the user, newest first.
// Returns nil when journaling is disabled.
func (s *Service) Journal(ctx context.Context, userID int64, limit int) ([]tradelog.Record, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(ctx, userID, limit)
}

// targetUnderReview resolves the order an operation acts on: the explicit id
// when given, otherwise the most recent Under Review order. Both paths
// filter on Under Review, so terminal orders surface as not found.
func (s *Service) targetUnderReview(ctx context.Context, userID int64, orderID *int64) (ledger.Order, error) {
	if orderID != nil {
		order, err := s.store.GetOrder(ctx, userID, *orderID)
		if err != nil {
			return ledger.Order{}, err
		}
		if order.Status != ledger.StatusUnderReview {
			return ledger.Order{}, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ledger.ErrNotFound)
		}
		return order, nil
	}
	order, err := s.store.LatestOrder(ctx, userID, ledger.StatusUnderReview)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Order{}, fmt.Errorf("no order under review: %w", ledger.ErrNotFound)
		}
		return ledger.Order{}, err
	}
	return order, nil
}

func (s *Service) sweepStale(ctx context.Context, userID int64) {
	if s.cfg.OrderTTL <= 0 {
		return
	}
	n, err := s.store.ExpireStaleOrders(ctx, userID, s.cfg.OrderTTL)
	if err != nil {
		logger.Warnf("stale order sweep failed for user %d: %v", userID, err)
		return
	}
	if n > 0 {
		logger.Infof("cancelled %d stale orders for user %d", n, userID)
	}
}

// finish assembles the OrderResult snapshot and journals the operation.
// Listing or balance read failures are logged, not surfaced: the mutation
// already committed.
func (s *Service) finish(ctx context.Context, traceID string, userID int64, op string, order *ledger.Order, detail map[string]any, opErr error) OrderResult {
	result := OrderResult{TraceID: traceID, Order: order}
	if book, err := s.store.ListOrderBook(ctx, userID); err != nil {
		logger.Warnf("%s: order book listing failed for user %d: %v", op, userID, err)
	} else {
		result.Book = book
	}
	if cash, err := s.store.AvailableCash(ctx, userID); err != nil {
		logger.Warnf("%s: available cash read failed for user %d: %v", op, userID, err)
	} else {
		result.AvailableCash = cash
	}
	s.journalOp(ctx, traceID, userID, order, op, detail, opErr)
	return result
}

func (s *Service) fail(ctx context.Context, traceID string, userID, orderID int64, op string, opErr error) (OrderResult, error) {
	logger.Warnf("%s failed: user=%d order=%d trace=%s err=%v", op, userID, orderID, traceID, opErr)
	s.journalOp(ctx, traceID, userID, &ledger.Order{ID: orderID}, op, nil, opErr)
	return OrderResult{TraceID: traceID}, opErr
}

func (s *Service) journalOp(ctx context.Context, traceID string, userID int64, order *ledger.Order, op string, detail map[string]any, opErr error) {
	if s.journal == nil {
		return
	}
	rec := tradelog.Record{
		TraceID: traceID,
		UserID:  userID,
		Op:      op,
		Detail:  detail,
	}
	if order != nil {
		rec.OrderID = order.ID
	}
	if opErr != nil {
		rec.Err = opErr.Error()
	}
	if err := s.journal.Append(ctx, rec); err != nil {
		logger.Warnf("tradelog append failed (%s): %v", op, err)
	}
}
