package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StaticOracle serves prices from a fixed table. It backs the offline demo
// mode and the test suites.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]float64
}

func NewStaticOracle(quotes map[string]float64) *StaticOracle {
	table := make(map[string]float64, len(quotes))
	for ticker, price := range quotes {
		table[strings.ToUpper(strings.TrimSpace(ticker))] = price
	}
	return &StaticOracle{quotes: table}
}

var _ Oracle = (*StaticOracle)(nil)

func (o *StaticOracle) GetPrice(_ context.Context, ticker string) (Quote, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	o.mu.RLock()
	price, ok := o.quotes[key]
	o.mu.RUnlock()
	if !ok || price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, key)
	}
	return Quote{Ticker: key, Price: price, AsOf: time.Now()}, nil
}

// SetPrice overrides a quote. Test hook.
func (o *StaticOracle) SetPrice(ticker string, price float64) {
	o.mu.Lock()
	o.quotes[strings.ToUpper(strings.TrimSpace(ticker))] = price
	o.mu.Unlock()
}
