package desk

import (
	"math"
	"strings"

	"tradedesk/internal/ledger"
)

// validatePlace checks a placement request field by field, in the same order
// the voice surface reports problems: symbol/quantity, order kind, limit
// price, side.
func validatePlace(req PlaceRequest) (ledger.Side, ledger.OrderKind, error) {
	if strings.TrimSpace(req.Ticker) == "" {
		return "", "", ledger.Invalid("symbol", "a symbol is required to place a trade")
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return "", "", err
	}
	kind, ok := ledger.ParseOrderKind(req.Kind)
	if !ok {
		return "", "", ledger.Invalid("order type", "must be market or limit")
	}
	if kind == ledger.KindLimit {
		if req.LimitPrice == nil || *req.LimitPrice <= 0 {
			return "", "", ledger.Invalid("limit price", "a positive limit price is required for limit orders")
		}
	}
	side, ok := ledger.ParseSide(req.Side)
	if !ok {
		return "", "", ledger.Invalid("action", "must be buy or sell")
	}
	return side, kind, nil
}

func validateQuantity(qty float64) error {
	if qty <= 0 {
		return ledger.Invalid("quantity", "must be a positive number of units")
	}
	if qty != math.Trunc(qty) {
		return ledger.Invalid("quantity", "must be a whole number of units")
	}
	return nil
}
