package engine

import (
	"time"

	"supertrend-core/internal/strategy"
	"supertrend-core/pkg/broker"
)

// Mode labels how orders are executed.
const (
	ModeLive  = "live"
	ModePaper = "paper"
)

// Status is a point-in-time snapshot of the trading session.
type Status struct {
	Running     bool                          `json:"running"`
	Mode        string                        `json:"mode"`
	StartedAt   time.Time                     `json:"started_at,omitempty"`
	Halted      bool                          `json:"halted"`
	DailyPnL    float64                       `json:"daily_pnl"`
	DailyTrades int                           `json:"daily_trades"`
	Wins        int                           `json:"wins"`
	Losses      int                           `json:"losses"`
	Margins     broker.Margin                 `json:"margins"`
	Symbols     map[string]string             `json:"symbols"`
	Legs        map[string]strategy.LegStatus `json:"legs"`
}
