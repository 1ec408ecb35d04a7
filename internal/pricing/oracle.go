// Package pricing supplies current market prices to the order state machine.
// The oracle is an external collaborator: a lookup either returns a live
// price or fails, and trading paths never fabricate a fallback.
package pricing

import (
	"context"
	"errors"
	"time"
)

// ErrPriceUnavailable is returned when no current price can be obtained for
// a ticker. Order placement and update abort on it without retrying.
var ErrPriceUnavailable = errors.New("price unavailable")

type Quote struct {
	Ticker string
	Price  float64
	AsOf   time.Time
}

type Oracle interface {
	GetPrice(ctx context.Context, ticker string) (Quote, error)
}
