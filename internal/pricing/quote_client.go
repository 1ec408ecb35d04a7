package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradedesk/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	defaultQuotePath   = "/v8/finance/quote"
	defaultHTTPTimeout = 10 * time.Second
	maxQuoteBodyBytes  = 1 << 20
)

// QuoteClientConfig describes the upstream quote endpoint.
type QuoteClientConfig struct {
	BaseURL     string
	QuotePath   string
	HTTPTimeout time.Duration
}

func (c QuoteClientConfig) withDefaults() QuoteClientConfig {
	out := c
	out.BaseURL = strings.TrimRight(strings.TrimSpace(out.BaseURL), "/")
	if strings.TrimSpace(out.QuotePath) == "" {
		out.QuotePath = defaultQuotePath
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = defaultHTTPTimeout
	}
	return out
}

// QuoteClient fetches spot prices from a finance quote HTTP API.
type QuoteClient struct {
	cfg    QuoteClientConfig
	client *http.Client
}

func NewQuoteClient(cfg QuoteClientConfig) (*QuoteClient, error) {
	final := cfg.withDefaults()
	if final.BaseURL == "" {
		return nil, fmt.Errorf("quote client: base url is required")
	}
	return &QuoteClient{
		cfg:    final,
		client: &http.Client{Timeout: final.HTTPTimeout},
	}, nil
}

var _ Oracle = (*QuoteClient)(nil)

func (c *QuoteClient) GetPrice(ctx context.Context, ticker string) (Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Quote{}, ErrPriceUnavailable
	}
	endpoint := fmt.Sprintf("%s%s?symbols=%s", c.cfg.BaseURL, c.cfg.QuotePath, url.QueryEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("quote request build failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warnf("quote fetch failed for %s: %v", ticker, err)
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, ticker)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warnf("quote fetch for %s returned status %d", ticker, resp.StatusCode)
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, ticker)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBodyBytes))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, ticker)
	}
	price, ok := extractPrice(string(body))
	if !ok || price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, ticker)
	}
	return Quote{Ticker: ticker, Price: price, AsOf: time.Now()}, nil
}

// extractPrice tolerates the common quote payload shapes: the Yahoo-style
// quoteResponse envelope and a flat {"price": ...} object.
func extractPrice(raw string) (float64, bool) {
	if !gjson.Valid(raw) {
		return 0, false
	}
	paths := []string{
		"quoteResponse.result.0.regularMarketPrice",
		"quoteResponse.result.0.postMarketPrice",
		"price",
		"regularMarketPrice",
	}
	for _, path := range paths {
		if res := gjson.Get(raw, path); res.Exists() && res.Type == gjson.Number {
			return res.Float(), true
		}
	}
	return 0, false
}
