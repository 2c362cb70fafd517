package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig holds tunable strategy and risk parameters, loadable from YAML.
type StrategyConfig struct {
	Indicator struct {
		Period     int     `yaml:"period"`
		Multiplier float64 `yaml:"multiplier"`
		BarMinutes int     `yaml:"bar_minutes"`
	} `yaml:"indicator"`

	Risk struct {
		LotSize        int     `yaml:"lot_size"`
		SensexLotSize  int     `yaml:"sensex_lot_size"`
		MaxDailyLoss   float64 `yaml:"max_daily_loss"`
		MaxTrades      int     `yaml:"max_trades"`
		ScalingEnabled bool    `yaml:"scaling_enabled"`
	} `yaml:"risk"`

	Hours struct {
		MarketOpen string `yaml:"market_open"`
		LastEntry  string `yaml:"last_entry"`
		ForceExit  string `yaml:"force_exit"`
	} `yaml:"hours"`

	SchedulerSeconds int `yaml:"scheduler_seconds"`
}

// DefaultStrategyConfig mirrors the production defaults for NIFTY weeklies.
func DefaultStrategyConfig() StrategyConfig {
	var c StrategyConfig
	c.Indicator.Period = 10
	c.Indicator.Multiplier = 3.0
	c.Indicator.BarMinutes = 3
	c.Risk.LotSize = 50
	c.Risk.SensexLotSize = 20
	c.Risk.MaxDailyLoss = 10000
	c.Risk.MaxTrades = 20
	c.Risk.ScalingEnabled = true
	c.Hours.MarketOpen = "09:15"
	c.Hours.LastEntry = "14:45"
	c.Hours.ForceExit = "15:15"
	c.SchedulerSeconds = 30
	return c
}

// LoadStrategyFile reads a StrategyConfig from a YAML file, overlaying defaults.
func LoadStrategyFile(path string) (StrategyConfig, error) {
	cfg := DefaultStrategyConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse strategy file: %w", err)
	}

	if cfg.Indicator.Period < 1 {
		return cfg, fmt.Errorf("indicator period must be >= 1, got %d", cfg.Indicator.Period)
	}
	if cfg.Indicator.BarMinutes < 1 {
		return cfg, fmt.Errorf("bar width must be >= 1 minute, got %d", cfg.Indicator.BarMinutes)
	}
	return cfg, nil
}
