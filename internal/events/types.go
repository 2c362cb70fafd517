package events

import "time"

// Event enumerates high-level topics inside the trading core.
type Event string

const (
	EventEntryFilled    Event = "entry.filled"
	EventExitFilled     Event = "exit.filled"
	EventStopLossHit    Event = "stop_loss.hit"
	EventOrderRejected  Event = "order.rejected"
	EventOrderDuplicate Event = "order.duplicate"
	EventRiskHalt       Event = "risk.halt"
	EventLegStopped     Event = "leg.stopped"
	EventDailySummary   Event = "daily.summary"
)

// EntryFill is published after an entry order fills.
type EntryFill struct {
	Symbol       string
	Leg          string
	Qty          int
	FillPrice    float64
	ReentryCount int
	Paper        bool
	At           time.Time
}

// ExitFill is published after an exit order fills, for any reason.
type ExitFill struct {
	Symbol    string
	Leg       string
	Qty       int
	FillPrice float64
	PnL       float64
	Reason    string
	Paper     bool
	At        time.Time
}

// RiskHalt is published once when the session risk breach latches.
type RiskHalt struct {
	Reason   string
	DailyPnL float64
	At       time.Time
}

// DailySummary is published exactly once after the force-exit sweep.
type DailySummary struct {
	Date        string
	TotalPnL    float64
	TotalTrades int
	Wins        int
	Losses      int
}
