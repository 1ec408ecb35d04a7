package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Oracle.Mode) {
	case "static":
	case "http":
		if strings.TrimSpace(cfg.Oracle.BaseURL) == "" {
			return fmt.Errorf("oracle.base_url is required when oracle.mode is http")
		}
	default:
		return fmt.Errorf("oracle.mode must be static or http, got %q", cfg.Oracle.Mode)
	}
	switch strings.ToLower(cfg.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", cfg.App.LogLevel)
	}
	if cfg.Trading.OrderTTLSeconds < 0 {
		return fmt.Errorf("trading.order_ttl_seconds must not be negative")
	}
	if cfg.Seed.Apply && strings.TrimSpace(cfg.Seed.Path) == "" {
		return fmt.Errorf("seed.path is required when seed.apply is true")
	}
	return nil
}
