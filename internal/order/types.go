package order

import (
	"time"

	"supertrend-core/internal/market"
)

// TradeOpen is the ledger record for a freshly filled entry.
type TradeOpen struct {
	Symbol       string
	Key          market.InstrumentLeg
	Qty          int
	EntryPrice   float64
	ReentryCount int
	OrderID      string
	Paper        bool
	At           time.Time
}

// Fill is the coordinator's result for a completed entry.
type Fill struct {
	TradeID   string
	OrderID   string
	FillPrice float64
}

// ExitFill is the coordinator's result for a completed exit.
type ExitFill struct {
	TradeID   string
	OrderID   string
	FillPrice float64
	PnL       float64
}

// OpenPosition describes a position the force-exit sweep must close.
type OpenPosition struct {
	Key     market.InstrumentLeg
	TradeID string
	Symbol  string
	Qty     int
}

// ExitOutcome is one position's result from the force-exit sweep.
// Failures are per position and never abort the rest of the sweep.
type ExitOutcome struct {
	Position OpenPosition
	Fill     *ExitFill
	Err      error
}
