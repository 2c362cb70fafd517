package strategy

import (
	"sync"
	"time"

	"supertrend-core/internal/indicators"
	"supertrend-core/internal/market"
)

const maxReentries = 3

// LegState tracks one tradable leg: its candle accumulator, its supertrend
// calculator, the open position if any, and the re-entry/stop bookkeeping.
// mu guards every mutable field; status snapshots can then run while the
// owning goroutine is mid-tick. Key and Symbol are fixed at creation.
type LegState struct {
	mu sync.Mutex

	Key     market.InstrumentLeg
	Symbol  string
	LotSize int

	ReentryCount int
	Stopped      bool

	TradeID    string // open trade id, empty when flat
	OpenQty    int
	EntryPrice float64

	Candles    *market.CandleAggregator
	Supertrend *indicators.Supertrend
	Last       *indicators.Result
}

func newLegState(def LegDef, period int, multiplier float64, barWidth time.Duration) *LegState {
	return &LegState{
		Key:        def.Key,
		Symbol:     def.Symbol,
		LotSize:    def.LotSize,
		Candles:    market.NewCandleAggregator(barWidth),
		Supertrend: indicators.NewSupertrend(period, multiplier),
	}
}

// open reports whether the leg holds a position. Caller holds l.mu.
func (l *LegState) open() bool { return l.TradeID != "" }

// qtyForEntry sizes the next entry: 1x, 2x, 3x per re-entry when scaling,
// capped at 3x; a flat lot otherwise.
func (l *LegState) qtyForEntry(scaling bool) int {
	if !scaling {
		return l.LotSize
	}
	mult := l.ReentryCount + 1
	if mult > maxReentries {
		mult = maxReentries
	}
	return l.LotSize * mult
}

// recordStopLoss counts one SL exit and stops the leg after the third.
func (l *LegState) recordStopLoss() (stopped bool) {
	l.ReentryCount++
	if l.ReentryCount >= maxReentries {
		l.Stopped = true
	}
	return l.Stopped
}

func (l *LegState) status() LegStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := LegStatus{
		Symbol:       l.Symbol,
		Direction:    "unknown",
		Bars:         l.Supertrend.BarCount(),
		ReentryCount: l.ReentryCount,
		Stopped:      l.Stopped,
		Open:         l.open(),
		OpenQty:      l.OpenQty,
		EntryPrice:   l.EntryPrice,
		TradeID:      l.TradeID,
	}
	if l.Last != nil {
		s.Direction = l.Last.Direction.String()
		s.Value = l.Last.Value
		if cur, ok := l.Candles.Current(); ok {
			d := cur.Close - l.Last.Value
			if d < 0 {
				d = -d
			}
			s.Distance = d
		}
	}
	return s
}
