package desk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradedesk/internal/ledger"
	"tradedesk/internal/pricing"
	"tradedesk/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = int64(1)

func newTestService(t *testing.T, cfg Config) (*Service, *pricing.StaticOracle) {
	t.Helper()
	st, err := gormstore.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.EnsureUser(ctx, ledger.User{
		ID: testUserID, Name: "Alex Morgan", Username: "alexm",
		Email: "alex@example.com", PhoneNumber: "+15550100",
	}))
	for _, inst := range []ledger.Instrument{
		{ID: 1, Ticker: "CASH", Name: "Cash Balance", Class: "Cash"},
		{ID: 2, Ticker: "AAPL", Name: "Apple Inc.", Class: "Equity"},
		{ID: 3, Ticker: "MSFT", Name: "Microsoft Corporation", Class: "Equity"},
	} {
		require.NoError(t, st.EnsureInstrument(ctx, inst))
	}
	require.NoError(t, st.EnsureHolding(ctx, testUserID, "CASH", 3025, 1, 3025))

	oracle := pricing.NewStaticOracle(map[string]float64{
		"AAPL": 185,
		"MSFT": 410,
	})
	return NewService(st, oracle, nil, cfg), oracle
}

func ptr[T any](v T) *T { return &v }

func TestPlace(t *testing.T) {
	ctx := context.Background()

	t.Run("market buy", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		result, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "aapl", Side: "buy", Kind: "market", Quantity: 10,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Order)
		assert.Equal(t, "AAPL", result.Order.Ticker)
		assert.Equal(t, ledger.StatusUnderReview, result.Order.Status)
		assert.InDelta(t, 185, result.Order.UnitPrice, 0.001)
		assert.InDelta(t, 1850, result.Order.Amount, 0.001)
		assert.InDelta(t, 1175, result.AvailableCash, 0.001)
		assert.NotEmpty(t, result.TraceID)
		assert.Equal(t, "Trade under review: Buy 10 units of AAPL. Confirm the trade or request an update.", result.Message)
		require.Len(t, result.Book, 1)
	})

	t.Run("limit order prices at the limit", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		result, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "limit",
			Quantity: 10, LimitPrice: ptr(180.0),
		})
		require.NoError(t, err)
		// Unit price tracks the oracle; the amount uses the limit.
		assert.InDelta(t, 185, result.Order.UnitPrice, 0.001)
		assert.InDelta(t, 1800, result.Order.Amount, 0.001)
		require.NotNil(t, result.Order.LimitPrice)
		assert.InDelta(t, 180, *result.Order.LimitPrice, 0.001)
	})

	t.Run("validation failures", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		cases := []struct {
			name  string
			req   PlaceRequest
			field string
		}{
			{"missing symbol", PlaceRequest{UserID: testUserID, Side: "buy", Kind: "market", Quantity: 1}, "symbol"},
			{"zero quantity", PlaceRequest{UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market"}, "quantity"},
			{"fractional quantity", PlaceRequest{UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 1.5}, "quantity"},
			{"bad kind", PlaceRequest{UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "stop", Quantity: 1}, "order type"},
			{"limit without price", PlaceRequest{UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "limit", Quantity: 1}, "limit price"},
			{"bad side", PlaceRequest{UserID: testUserID, Ticker: "AAPL", Side: "hold", Kind: "market", Quantity: 1}, "action"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Place(ctx, tc.req)
				var validation *ledger.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tc.field, validation.Field)
			})
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		_, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "ZZZZ", Side: "buy", Kind: "market", Quantity: 1,
		})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("price unavailable", func(t *testing.T) {
		svc, oracle := newTestService(t, Config{PersistRejectedOrders: true})
		oracle.SetPrice("AAPL", 0)
		_, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 1,
		})
		assert.ErrorIs(t, err, pricing.ErrPriceUnavailable)
	})

	t.Run("insufficient funds still persists the order", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		result, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "MSFT", Side: "buy", Kind: "market", Quantity: 10,
		})
		var funds *ledger.InsufficientFundsError
		require.ErrorAs(t, err, &funds)
		assert.InDelta(t, 3025, funds.Available, 0.001)
		assert.InDelta(t, 4100, funds.Required, 0.001)
		require.NotNil(t, result.Order)
		assert.Equal(t, ledger.StatusUnderReview, result.Order.Status)
		require.Len(t, result.Book, 1)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	place := func(t *testing.T, svc *Service) ledger.Order {
		t.Helper()
		result, err := svc.Place(ctx, PlaceRequest{
			UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 10,
		})
		require.NoError(t, err)
		return *result.Order
	}

	t.Run("targets the latest pending order by default", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		place(t, svc)
		result, err := svc.Update(ctx, UpdateRequest{UserID: testUserID, Quantity: ptr(5.0)})
		require.NoError(t, err)
		assert.InDelta(t, 5, result.Order.Quantity, 0.001)
		assert.InDelta(t, 925, result.Order.Amount, 0.001)
	})

	t.Run("re-prices against the live oracle", func(t *testing.T) {
		svc, oracle := newTestService(t, Config{PersistRejectedOrders: true})
		order := place(t, svc)
		oracle.SetPrice("AAPL", 190)

		result, err := svc.Update(ctx, UpdateRequest{
			UserID: testUserID, OrderID: &order.ID, Quantity: ptr(10.0),
		})
		require.NoError(t, err)
		assert.InDelta(t, 190, result.Order.UnitPrice, 0.001)
		assert.InDelta(t, 1900, result.Order.Amount, 0.001)
	})

	t.Run("rejects updates to executed orders", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		order := place(t, svc)
		_, err := svc.Confirm(ctx, testUserID, &order.ID)
		require.NoError(t, err)

		_, err = svc.Update(ctx, UpdateRequest{UserID: testUserID, OrderID: &order.ID, Quantity: ptr(5.0)})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("no pending order to update", func(t *testing.T) {
		svc, _ := newTestService(t, Config{PersistRejectedOrders: true})
		_, err := svc.Update(ctx, UpdateRequest{UserID: testUserID, Quantity: ptr(5.0)})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{PersistRejectedOrders: true})

	_, err := svc.Place(ctx, PlaceRequest{
		UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 10,
	})
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, testUserID, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPlaced, result.Order.Status)
	assert.InDelta(t, 1175, result.AvailableCash, 0.001)
	assert.Equal(t, "Trade order executed. Updated cash balance: $1175.00", result.Message)

	t.Run("second confirm finds nothing", func(t *testing.T) {
		_, err := svc.Confirm(ctx, testUserID, nil)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{PersistRejectedOrders: true})

	placeResult, err := svc.Place(ctx, PlaceRequest{
		UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 10,
	})
	require.NoError(t, err)

	result, err := svc.Cancel(ctx, testUserID, &placeResult.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, result.Order.Status)
	assert.InDelta(t, 3025, result.AvailableCash, 0.001)

	t.Run("cancel again", func(t *testing.T) {
		_, err := svc.Cancel(ctx, testUserID, &placeResult.Order.ID)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestOrderStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{PersistRejectedOrders: true})

	placeResult, err := svc.Place(ctx, PlaceRequest{
		UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 10,
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, testUserID, nil)
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		view, err := svc.OrderStatus(ctx, testUserID, &placeResult.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPlaced, view.Order.Status)
		assert.Len(t, view.Book, 1)
	})
	t.Run("latest includes terminal orders", func(t *testing.T) {
		view, err := svc.OrderStatus(ctx, testUserID, nil)
		require.NoError(t, err)
		assert.Equal(t, placeResult.Order.ID, view.Order.ID)
	})
	t.Run("unknown id", func(t *testing.T) {
		id := int64(999)
		_, err := svc.OrderStatus(ctx, testUserID, &id)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestStaleOrderSweep(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{PersistRejectedOrders: true, OrderTTL: 50 * time.Millisecond})

	first, err := svc.Place(ctx, PlaceRequest{
		UserID: testUserID, Ticker: "AAPL", Side: "buy", Kind: "market", Quantity: 1,
	})
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)

	second, err := svc.Place(ctx, PlaceRequest{
		UserID: testUserID, Ticker: "MSFT", Side: "buy", Kind: "market", Quantity: 1,
	})
	require.NoError(t, err)

	view, err := svc.OrderStatus(ctx, testUserID, &first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, view.Order.Status)

	view, err = svc.OrderStatus(ctx, testUserID, &second.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusUnderReview, view.Order.Status)
}
