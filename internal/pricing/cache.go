package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradedesk/internal/pkg/circuit"

	"golang.org/x/sync/singleflight"
)

// CachedOracle deduplicates concurrent lookups for the same ticker and
// serves quotes younger than the TTL without hitting the upstream. Display
// surfaces read through LastKnown, which may return a stale quote; trading
// paths call GetPrice and fail instead of falling back. A breaker stops
// hammering the upstream while it is failing.
type CachedOracle struct {
	inner   Oracle
	ttl     time.Duration
	breaker *circuit.Breaker

	group singleflight.Group

	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewCachedOracle(inner Oracle, ttl time.Duration) *CachedOracle {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedOracle{
		inner:   inner,
		ttl:     ttl,
		breaker: circuit.NewBreaker("quote-oracle", 5, 30*time.Second),
		quotes:  make(map[string]Quote),
	}
}

var _ Oracle = (*CachedOracle)(nil)

func (c *CachedOracle) GetPrice(ctx context.Context, ticker string) (Quote, error) {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	c.mu.RLock()
	cached, ok := c.quotes[key]
	c.mu.RUnlock()
	if ok && time.Since(cached.AsOf) < c.ttl {
		return cached, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if !c.breaker.Allow() {
			return Quote{}, fmt.Errorf("%w: %s (upstream circuit open)", ErrPriceUnavailable, key)
		}
		quote, err := c.inner.GetPrice(ctx, key)
		if err != nil {
			c.breaker.RecordFailure()
			return Quote{}, err
		}
		c.breaker.RecordSuccess()
		c.mu.Lock()
		c.quotes[key] = quote
		c.mu.Unlock()
		return quote, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return res.(Quote), nil
}

// LastKnown returns the most recent quote fetched for the ticker regardless
// of age. Used by display-only endpoints; never by order placement.
func (c *CachedOracle) LastKnown(ticker string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, ok := c.quotes[strings.ToUpper(strings.TrimSpace(ticker))]
	return quote, ok
}
