package config

import "github.com/spf13/viper"

const (
	defaultHTTPAddr      = ":8080"
	defaultDatabasePath  = "data/tradedesk.db"
	defaultQuotePath     = "/v8/finance/quote"
	defaultOracleTimeout = 10
	defaultCacheTTL      = 30
	defaultResetCash     = 3025
)

// applyDefaults fills in the zero-valued fields a config file may omit. The
// viper instance is consulted so an explicit `false`/`0` is not overwritten.
func (c *Config) applyDefaults(v *viper.Viper) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	if c.Oracle.Mode == "" {
		c.Oracle.Mode = "static"
	}
	if c.Oracle.QuotePath == "" {
		c.Oracle.QuotePath = defaultQuotePath
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = defaultOracleTimeout
	}
	if c.Oracle.CacheTTLSeconds <= 0 {
		c.Oracle.CacheTTLSeconds = defaultCacheTTL
	}
	if !v.IsSet("trading.persist_rejected_orders") {
		c.Trading.PersistRejectedOrders = true
	}
	if c.Trading.DemoResetCash <= 0 {
		c.Trading.DemoResetCash = defaultResetCash
	}
}
