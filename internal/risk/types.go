package risk

// Config defines session risk limits. Zero limits disable the matching check.
type Config struct {
	MaxDailyLoss float64 `json:"max_daily_loss"`
	MaxTrades    int     `json:"max_trades"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxDailyLoss: 10000,
		MaxTrades:    20,
	}
}

// Metrics tracks realized session state shared across all legs.
type Metrics struct {
	DailyPnL    float64 `json:"daily_pnl"`
	DailyTrades int     `json:"daily_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Halted      bool    `json:"halted"`
}

// Decision is the outcome of an entry gate evaluation.
type Decision struct {
	Allowed bool
	Reason  string
	// Latched is true on the single call that flipped the session halt.
	Latched bool
}
