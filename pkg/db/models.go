package db

import (
	"database/sql"
	"time"
)

// Trade statuses.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Trade is one short-option round trip (or its open half).
type Trade struct {
	ID           string
	Symbol       string
	Instrument   string
	Leg          string
	Qty          int
	EntryPrice   float64
	ExitPrice    sql.NullFloat64
	PnL          sql.NullFloat64
	ReentryCount int
	OrderID      string
	Paper        bool
	Status       string
	ExitReason   sql.NullString
	EntryTime    time.Time
	ExitTime     sql.NullTime
}

// DailyResult aggregates one trading day.
type DailyResult struct {
	Date          string
	TotalPnL      float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
}
