// Package app assembles the trading desk: config -> store -> oracle ->
// services -> HTTP.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradedesk/internal/bank"
	"tradedesk/internal/config"
	"tradedesk/internal/desk"
	"tradedesk/internal/logger"
	"tradedesk/internal/pricing"
	"tradedesk/internal/seed"
	"tradedesk/internal/store/gormstore"
	"tradedesk/internal/store/tradelog"
	deskhttp "tradedesk/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg     *config.Config
	store   *gormstore.Store
	journal *tradelog.Store
	http    *deskhttp.Server
}

// New builds the application from config without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	st, err := gormstore.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	var journal *tradelog.Store
	if path := strings.TrimSpace(cfg.Database.TradelogPath); path != "" {
		journal, err = tradelog.Open(path)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open tradelog: %w", err)
		}
	}

	if cfg.Seed.Apply {
		if err := seed.ApplyFile(context.Background(), st, cfg.Seed.Path); err != nil {
			st.Close()
			return nil, fmt.Errorf("apply seed: %w", err)
		}
	}

	oracle, err := buildOracle(cfg.Oracle)
	if err != nil {
		st.Close()
		return nil, err
	}

	deskSvc := desk.NewService(st, oracle, journal, desk.Config{
		PersistRejectedOrders: cfg.Trading.PersistRejectedOrders,
		OrderTTL:              time.Duration(cfg.Trading.OrderTTLSeconds) * time.Second,
	})
	bankGate := bank.NewGate(st, journal)

	server, err := deskhttp.NewServer(deskhttp.ServerConfig{
		Addr: cfg.App.HTTPAddr,
		Router: &deskhttp.Router{
			Desk:          deskSvc,
			Bank:          bankGate,
			Oracle:        oracle,
			DemoResetCash: cfg.Trading.DemoResetCash,
		},
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	return &App{cfg: cfg, store: st, journal: journal, http: server}, nil
}

func buildOracle(cfg config.OracleConfig) (pricing.Oracle, error) {
	switch strings.ToLower(cfg.Mode) {
	case "static":
		return pricing.NewStaticOracle(cfg.StaticPrices), nil
	case "http":
		client, err := pricing.NewQuoteClient(pricing.QuoteClientConfig{
			BaseURL:     cfg.BaseURL,
			QuotePath:   cfg.QuotePath,
			HTTPTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("build quote client: %w", err)
		}
		return pricing.NewCachedOracle(client, time.Duration(cfg.CacheTTLSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown oracle mode %q", cfg.Mode)
	}
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("trading desk listening on %s (env=%s)", a.http.Addr(), a.cfg.App.Env)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.Close()
	return err
}

// Close releases the store and journal handles.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("close tradelog: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("close ledger store: %v", err)
		}
	}
}
