package deskhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"tradedesk/internal/bank"
	"tradedesk/internal/desk"
	"tradedesk/internal/ledger"
	"tradedesk/internal/pricing"
	"tradedesk/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := gormstore.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.EnsureUser(ctx, ledger.User{
		ID: 1, Name: "Alex Morgan", Username: "alexm",
		Email: "alex@example.com", PhoneNumber: "+15550100",
	}))
	for _, inst := range []ledger.Instrument{
		{ID: 1, Ticker: "CASH", Name: "Cash Balance", Class: "Cash"},
		{ID: 2, Ticker: "AAPL", Name: "Apple Inc.", Class: "Equity"},
	} {
		require.NoError(t, st.EnsureInstrument(ctx, inst))
	}
	require.NoError(t, st.EnsureHolding(ctx, 1, "CASH", 3025, 1, 3025))
	require.NoError(t, st.EnsureBankAccount(ctx, ledger.BankAccount{
		ID: 1, UserID: 1, BankName: "First National",
		AccountNumber: "****4821", AccountType: "Checking",
		AvailableBalance: 12000, Active: true,
	}))

	oracle := pricing.NewStaticOracle(map[string]float64{"AAPL": 185})
	deskSvc := desk.NewService(st, oracle, nil, desk.Config{PersistRejectedOrders: true})
	gate := bank.NewGate(st, nil)

	server, err := NewServer(ServerConfig{
		Addr: ":0",
		Router: &Router{
			Desk:          deskSvc,
			Bank:          gate,
			Oracle:        oracle,
			DemoResetCash: 3025,
		},
	})
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, server *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	rec, payload := doJSON(t, server, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec, payload := doJSON(t, server, http.MethodPost, "/api/desk/orders",
		`{"user_id":1,"symbol":"AAPL","side":"buy","order_type":"market","quantity":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	order := payload["order"].(map[string]any)
	assert.Equal(t, "Under Review", order["status"])
	assert.InDelta(t, 1850, order["amount"].(float64), 0.001)
	assert.InDelta(t, 1175, payload["available_cash"].(float64), 0.001)
	assert.NotEmpty(t, payload["trace_id"])

	rec, payload = doJSON(t, server, http.MethodPost, "/api/desk/orders/update",
		`{"user_id":1,"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	order = payload["order"].(map[string]any)
	assert.InDelta(t, 925, order["amount"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodPost, "/api/desk/orders/confirm", `{"user_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	order = payload["order"].(map[string]any)
	assert.Equal(t, "Placed", order["status"])
	assert.InDelta(t, 2100, payload["available_cash"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodGet, "/api/desk/orders/status?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	order = payload["order"].(map[string]any)
	assert.Equal(t, "Placed", order["status"])

	rec, payload = doJSON(t, server, http.MethodGet, "/api/desk/transactions?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["transactions"].([]any), 1)
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)

	t.Run("validation is 400", func(t *testing.T) {
		rec, _ := doJSON(t, server, http.MethodPost, "/api/desk/orders",
			`{"user_id":1,"symbol":"AAPL","side":"buy","order_type":"market","quantity":1.5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown symbol is 404", func(t *testing.T) {
		rec, _ := doJSON(t, server, http.MethodPost, "/api/desk/orders",
			`{"user_id":1,"symbol":"ZZZZ","side":"buy","order_type":"market","quantity":1}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("insufficient funds is 422 with the order attached", func(t *testing.T) {
		rec, payload := doJSON(t, server, http.MethodPost, "/api/desk/orders",
			`{"user_id":1,"symbol":"AAPL","side":"buy","order_type":"market","quantity":100}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, payload["error"].(string), "insufficient cash balance")
		assert.NotNil(t, payload["order"])
	})

	t.Run("confirm with nothing pending is 404", func(t *testing.T) {
		fresh := newTestServer(t)
		rec, _ := doJSON(t, fresh, http.MethodPost, "/api/desk/orders/confirm", `{"user_id":1}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("price endpoint maps unavailable to 502", func(t *testing.T) {
		rec, _ := doJSON(t, server, http.MethodGet, "/api/desk/price?symbol=ZZZZ", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("missing user id is 400", func(t *testing.T) {
		rec, _ := doJSON(t, server, http.MethodGet, "/api/desk/cash", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReadEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec, payload := doJSON(t, server, http.MethodGet, "/api/desk/holdings?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	holdings := payload["holdings"].([]any)
	require.Len(t, holdings, 1)
	cash := holdings[0].(map[string]any)
	assert.Equal(t, "CASH", cash["symbol"])
	assert.InDelta(t, 3025, cash["invested_amount"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodGet, "/api/desk/users/lookup?phone=%2B15550100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alexm", payload["username"])

	rec, _ = doJSON(t, server, http.MethodGet, "/api/desk/users/lookup?phone=%2B19999999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBankEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec, payload := doJSON(t, server, http.MethodGet, "/api/desk/accounts?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := payload["accounts"].([]any)
	require.Len(t, accounts, 1)

	rec, payload = doJSON(t, server, http.MethodPost, "/api/desk/transfers",
		`{"user_id":1,"bank_name":"First National","amount":500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 11500, payload["bank_balance"].(float64), 0.001)
	assert.InDelta(t, 3525, payload["cash_balance"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodPost, "/api/desk/cash/adjust",
		`{"user_id":1,"direction":"subtract","amount":25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 3500, payload["cash_balance"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodGet, "/api/desk/price?symbol=aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", payload["symbol"])
	assert.InDelta(t, 185, payload["price"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodPost, "/api/desk/reset", `{"user_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 3025, payload["cash_balance"].(float64), 0.001)

	rec, payload = doJSON(t, server, http.MethodGet, "/api/desk/cash?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 3025, payload["available_cash"].(float64), 0.001)
}
