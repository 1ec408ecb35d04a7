package deskhttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradedesk/internal/bank"
	"tradedesk/internal/desk"
	"tradedesk/internal/ledger"
	"tradedesk/internal/pricing"

	"github.com/gin-gonic/gin"
)

// Router wires the desk and bank services into /api/desk.
type Router struct {
	Desk          *desk.Service
	Bank          *bank.Gate
	Oracle        pricing.Oracle
	DemoResetCash float64
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/orders", r.handlePlace)
	group.POST("/orders/update", r.handleUpdate)
	group.POST("/orders/confirm", r.handleConfirm)
	group.POST("/orders/cancel", r.handleCancel)
	group.GET("/orders/status", r.handleStatus)
	group.GET("/orders", r.handleBook)
	group.GET("/cash", r.handleCash)
	group.POST("/cash/adjust", r.handleAdjustCash)
	group.POST("/transfers", r.handleTransfer)
	group.GET("/accounts", r.handleAccounts)
	group.GET("/transactions", r.handleTransactions)
	group.GET("/holdings", r.handleHoldings)
	group.GET("/users/lookup", r.handleUserLookup)
	group.GET("/journal", r.handleJournal)
	group.GET("/price", r.handlePrice)
	group.POST("/reset", r.handleReset)
}

type placeBody struct {
	UserID     int64    `json:"user_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	OrderType  string   `json:"order_type"`
	Quantity   float64  `json:"quantity"`
	LimitPrice *float64 `json:"limit_price"`
}

type updateBody struct {
	UserID     int64    `json:"user_id"`
	OrderID    *int64   `json:"order_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	OrderType  string   `json:"order_type"`
	Quantity   *float64 `json:"quantity"`
	LimitPrice *float64 `json:"limit_price"`
}

type orderRefBody struct {
	UserID  int64  `json:"user_id"`
	OrderID *int64 `json:"order_id"`
}

type adjustCashBody struct {
	UserID    int64   `json:"user_id"`
	Direction string  `json:"direction"`
	Amount    float64 `json:"amount"`
}

type transferBody struct {
	UserID    int64   `json:"user_id"`
	AccountID *int64  `json:"account_id"`
	BankName  string  `json:"bank_name"`
	Amount    float64 `json:"amount"`
}

func (r *Router) handlePlace(c *gin.Context) {
	var body placeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := r.Desk.Place(c.Request.Context(), desk.PlaceRequest{
		UserID:     body.UserID,
		Ticker:     body.Symbol,
		Side:       body.Side,
		Kind:       body.OrderType,
		Quantity:   body.Quantity,
		LimitPrice: body.LimitPrice,
	})
	writeOrderResult(c, result, err)
}

func (r *Router) handleUpdate(c *gin.Context) {
	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := r.Desk.Update(c.Request.Context(), desk.UpdateRequest{
		UserID:     body.UserID,
		OrderID:    body.OrderID,
		Ticker:     body.Symbol,
		Side:       body.Side,
		Kind:       body.OrderType,
		Quantity:   body.Quantity,
		LimitPrice: body.LimitPrice,
	})
	writeOrderResult(c, result, err)
}

func (r *Router) handleConfirm(c *gin.Context) {
	var body orderRefBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := r.Desk.Confirm(c.Request.Context(), body.UserID, body.OrderID)
	writeOrderResult(c, result, err)
}

func (r *Router) handleCancel(c *gin.Context) {
	var body orderRefBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := r.Desk.Cancel(c.Request.Context(), body.UserID, body.OrderID)
	writeOrderResult(c, result, err)
}

func (r *Router) handleStatus(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	var orderID *int64
	if raw := strings.TrimSpace(c.Query("order_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be an integer"})
			return
		}
		orderID = &id
	}
	view, err := r.Desk.OrderStatus(c.Request.Context(), userID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": orderJSON(view.Order), "order_book": ordersJSON(view.Book)})
}

func (r *Router) handleBook(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	book, err := r.Desk.OrderBook(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_book": ordersJSON(book)})
}

func (r *Router) handleCash(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	cash, err := r.Desk.AvailableCash(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available_cash": cash})
}

func (r *Router) handleAdjustCash(c *gin.Context) {
	var body adjustCashBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	balance, err := r.Bank.AdjustCash(c.Request.Context(), body.UserID, body.Direction, body.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cash_balance": balance})
}

func (r *Router) handleTransfer(c *gin.Context) {
	var body transferBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := r.Bank.Transfer(c.Request.Context(), bank.TransferRequest{
		UserID:    body.UserID,
		AccountID: body.AccountID,
		BankName:  body.BankName,
		Amount:    body.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trace_id":     result.TraceID,
		"bank_name":    result.Account.BankName,
		"bank_balance": result.Account.AvailableBalance,
		"cash_balance": result.CashBalance,
	})
}

func (r *Router) handleAccounts(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	accounts, err := r.Bank.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, gin.H{
			"account_id":        a.ID,
			"bank_name":         a.BankName,
			"account_number":    a.AccountNumber,
			"account_type":      a.AccountType,
			"available_balance": a.AvailableBalance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (r *Router) handleTransactions(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	txs, err := r.Desk.Transactions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(txs))
	for _, t := range txs {
		out = append(out, gin.H{
			"id":             t.ID,
			"symbol":         t.Ticker,
			"side":           string(t.Side),
			"date":           t.Date.UTC(),
			"units":          t.Units,
			"price_per_unit": t.PricePerUnit,
			"cost":           t.Cost,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (r *Router) handleHoldings(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	holdings, err := r.Desk.Holdings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, gin.H{
			"symbol":            h.Ticker,
			"total_units":       h.TotalUnits,
			"avg_cost_per_unit": h.AvgCostPerUnit,
			"invested_amount":   h.InvestedAmount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"holdings": out})
}

func (r *Router) handleUserLookup(c *gin.Context) {
	phone := strings.TrimSpace(c.Query("phone"))
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}
	user, err := r.Desk.UserByPhone(c.Request.Context(), phone)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"name":     user.Name,
		"username": user.Username,
	})
}

func (r *Router) handleJournal(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := r.Desk.Journal(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": records})
}

func (r *Router) handlePrice(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	quote, err := r.Oracle.GetPrice(c.Request.Context(), symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": quote.Ticker, "price": quote.Price, "as_of": quote.AsOf.UTC()})
}

func (r *Router) handleReset(c *gin.Context) {
	var body orderRefBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := r.Bank.ResetDemo(c.Request.Context(), body.UserID, r.DemoResetCash); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "cash_balance": r.DemoResetCash})
}

func queryUserID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Query("user_id"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return 0, false
	}
	return userID, true
}

// writeOrderResult renders a lifecycle outcome. A buying-power failure is a
// 422 but still carries the persisted order and the book snapshot.
func writeOrderResult(c *gin.Context, result desk.OrderResult, err error) {
	payload := gin.H{
		"trace_id":       result.TraceID,
		"available_cash": result.AvailableCash,
		"order_book":     ordersJSON(result.Book),
	}
	if result.Order != nil {
		payload["order"] = orderJSON(*result.Order)
	}
	if result.Message != "" {
		payload["message"] = result.Message
	}
	if err == nil {
		c.JSON(http.StatusOK, payload)
		return
	}
	payload["error"] = err.Error()
	c.JSON(statusFor(err), payload)
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var validation *ledger.ValidationError
	var funds *ledger.InsufficientFundsError
	var quantity *ledger.InsufficientQuantityError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &funds), errors.As(err, &quantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pricing.ErrPriceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func orderJSON(o ledger.Order) gin.H {
	out := gin.H{
		"order_id":   o.ID,
		"symbol":     o.Ticker,
		"side":       string(o.Side),
		"order_type": string(o.Kind),
		"quantity":   o.Quantity,
		"unit_price": o.UnitPrice,
		"amount":     o.Amount,
		"status":     string(o.Status),
		"created_at": o.CreatedAt.UTC(),
	}
	if o.LimitPrice != nil {
		out["limit_price"] = *o.LimitPrice
	}
	return out
}

func ordersJSON(orders []ledger.Order) []gin.H {
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderJSON(o))
	}
	return out
}
