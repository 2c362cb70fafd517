package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string

	// Session
	TradeMode     string // "live" or "paper"
	UseMockFeed   bool
	NiftyEnabled  bool
	SensexEnabled bool
	AutoStart     bool
	Timezone      string

	// Broker
	BrokerBaseURL     string
	BrokerDataURL     string
	BrokerWSURL       string
	BrokerClientID    string
	BrokerAccessToken string

	// Telegram
	TelegramToken  string
	TelegramChatID string

	// Database
	DBPath string

	// Strategy parameter file (YAML)
	StrategyFile string

	// Logging
	LogLevel   string
	LogConsole bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		TradeMode:         strings.ToLower(getEnv("TRADE_MODE", "paper")),
		UseMockFeed:       getEnv("USE_MOCK_FEED", "true") == "true",
		NiftyEnabled:      getEnv("NIFTY_ENABLED", "true") == "true",
		SensexEnabled:     getEnv("SENSEX_ENABLED", "false") == "true",
		AutoStart:         getEnv("AUTO_START", "false") == "true",
		Timezone:          getEnv("TIMEZONE", "Asia/Kolkata"),
		BrokerBaseURL:     getEnv("BROKER_BASE_URL", "https://api-t1.fyers.in/api/v3"),
		BrokerDataURL:     getEnv("BROKER_DATA_URL", "https://api-t1.fyers.in/data"),
		BrokerWSURL:       getEnv("BROKER_WS_URL", "wss://socket.fyers.in/ws"),
		BrokerClientID:    os.Getenv("BROKER_CLIENT_ID"),
		BrokerAccessToken: os.Getenv("BROKER_ACCESS_TOKEN"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		DBPath:            getEnv("DB_PATH", "./data/trading.db"),
		StrategyFile:      getEnv("STRATEGY_FILE", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogConsole:        getEnv("LOG_CONSOLE", "true") == "true",
	}, nil
}

// Paper reports whether orders should be simulated locally.
func (c *Config) Paper() bool { return c.TradeMode == "paper" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
