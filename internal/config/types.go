package config

// Config is the main configuration carrier for the trading desk.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Trading  TradingConfig  `yaml:"trading"`
	Seed     SeedConfig     `yaml:"seed"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	LogPath  string `yaml:"log_path"`
}

type DatabaseConfig struct {
	// Path is the ledger SQLite file; ":memory:" opens a throwaway database.
	Path string `yaml:"path"`
	// TradelogPath is the operation journal database. Empty disables it.
	TradelogPath string `yaml:"tradelog_path"`
}

type OracleConfig struct {
	// Mode selects the price source: "http" hits a quote endpoint, "static"
	// serves the fixed prices below.
	Mode            string             `yaml:"mode"`
	BaseURL         string             `yaml:"base_url"`
	QuotePath       string             `yaml:"quote_path"`
	TimeoutSeconds  int                `yaml:"timeout_seconds"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	StaticPrices    map[string]float64 `yaml:"static_prices"`
}

// TradingConfig controls order lifecycle behavior.
type TradingConfig struct {
	// PersistRejectedOrders keeps buy orders that fail the buying power
	// check in the book (still Under Review) instead of rolling them back.
	PersistRejectedOrders bool `yaml:"persist_rejected_orders"`
	// OrderTTLSeconds cancels Under Review orders older than this before
	// each mutating operation. Zero disables the sweep.
	OrderTTLSeconds int `yaml:"order_ttl_seconds"`
	// DemoResetCash is the cash balance restored by the demo reset endpoint.
	DemoResetCash float64 `yaml:"demo_reset_cash"`
}

type SeedConfig struct {
	Apply bool   `yaml:"apply"`
	Path  string `yaml:"path"`
}
