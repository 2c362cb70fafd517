package strategy

import (
	"supertrend-core/internal/market"
)

// ActionKind distinguishes entry from exit actions.
type ActionKind string

const (
	ActionEntry ActionKind = "ENTRY"
	ActionExit  ActionKind = "EXIT"
)

// ExitReason explains why a position is being closed.
type ExitReason string

const (
	ReasonStopLoss  ExitReason = "SL"
	ReasonForceExit ExitReason = "FORCE"
)

// Action is the single order request a closed bar may produce for a leg.
type Action struct {
	Kind   ActionKind
	Key    market.InstrumentLeg
	Symbol string
	Price  float64 // last traded price at decision time

	// Entry fields
	Qty          int
	ReentryCount int
	BandValue    float64

	// Exit fields
	Reason  ExitReason
	TradeID string
}

// LegDef declares a tradable leg for the session.
type LegDef struct {
	Key     market.InstrumentLeg
	Symbol  string
	LotSize int
}

// RiskParams are the live-updatable knobs exposed to callers.
type RiskParams struct {
	MaxDailyLoss   float64 `json:"max_daily_loss"`
	MaxTrades      int     `json:"max_trades"`
	LotSize        int     `json:"lot_size"`
	ScalingEnabled bool    `json:"scaling_enabled"`
}

// LegStatus is a read-only snapshot of one leg for status reporting.
type LegStatus struct {
	Symbol       string  `json:"symbol"`
	Direction    string  `json:"direction"`
	Value        float64 `json:"value"`
	Distance     float64 `json:"distance"`
	Bars         int     `json:"bars"`
	ReentryCount int     `json:"reentry_count"`
	Stopped      bool    `json:"stopped"`
	Open         bool    `json:"open"`
	OpenQty      int     `json:"open_qty"`
	EntryPrice   float64 `json:"entry_price"`
	TradeID      string  `json:"trade_id,omitempty"`
}
