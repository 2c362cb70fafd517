// Package indicators implements the trend calculations the strategy trades on.
package indicators

import (
	"math"
	"time"

	"supertrend-core/internal/market"
)

// Direction reports which band the supertrend line is tracking.
type Direction int

const (
	// Down means the line sits on the upper band (price below trend).
	Down Direction = iota
	// Up means the line sits on the lower band (price above trend).
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Result is one supertrend output for one closed bar.
type Result struct {
	Value     float64 // tracked band, rounded to 2 decimals
	Direction Direction
	Ts        time.Time
}

// Supertrend computes the trailing band indicator over closed bars.
//
// It is append-only: every Push recalculates the tracked series from the full
// bar history instead of updating incrementally. That keeps the sticky-band
// recurrence exact and is cheap for a single session (~125 three-minute bars).
// Not safe for concurrent use; each leg owns one instance.
type Supertrend struct {
	period     int
	multiplier float64
	bars       []market.Bar
}

// NewSupertrend builds a calculator. Defaults: period 10, multiplier 3.0.
func NewSupertrend(period int, multiplier float64) *Supertrend {
	if period < 1 {
		period = 10
	}
	if multiplier <= 0 {
		multiplier = 3.0
	}
	return &Supertrend{period: period, multiplier: multiplier}
}

// Push appends a closed bar and recalculates. It returns nil until period+1
// bars have been seen.
func (s *Supertrend) Push(bar market.Bar) *Result {
	s.bars = append(s.bars, bar)
	if !s.Ready() {
		return nil
	}
	return s.calculate()
}

// Current recomputes the latest result without adding a bar. Nil during warmup.
func (s *Supertrend) Current() *Result {
	if !s.Ready() {
		return nil
	}
	return s.calculate()
}

// Ready reports whether enough bars have accumulated to produce output.
func (s *Supertrend) Ready() bool {
	return len(s.bars) >= s.period+1
}

// BarCount returns the number of bars consumed so far.
func (s *Supertrend) BarCount() int { return len(s.bars) }

// Reset discards all history, e.g. at session rollover.
func (s *Supertrend) Reset() { s.bars = nil }

func (s *Supertrend) calculate() *Result {
	n := len(s.bars)

	// True range, then ATR as an EMA with smoothing span = period.
	tr := make([]float64, n)
	atr := make([]float64, n)
	alpha := 2.0 / (float64(s.period) + 1.0)
	for i, b := range s.bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			atr[i] = tr[i]
			continue
		}
		prevClose := s.bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low,
			math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
		atr[i] = alpha*tr[i] + (1-alpha)*atr[i-1]
	}

	// Basic bands around the bar midpoint.
	upper := make([]float64, n)
	lower := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range s.bars {
		hl2 := (b.High + b.Low) / 2
		upper[i] = hl2 + s.multiplier*atr[i]
		lower[i] = hl2 - s.multiplier*atr[i]
		closes[i] = b.Close
	}

	// Sticky adjustment: the lower band only rises and the upper band only
	// falls while the previous close stays inside them.
	for i := 1; i < n; i++ {
		if !(lower[i] > lower[i-1] || closes[i-1] < lower[i-1]) {
			lower[i] = lower[i-1]
		}
		if !(upper[i] < upper[i-1] || closes[i-1] > upper[i-1]) {
			upper[i] = upper[i-1]
		}
	}

	// Track whichever band the close has most recently crossed.
	line := make([]float64, n)
	dir := make([]Direction, n)
	for i := 1; i < n; i++ {
		if line[i-1] == upper[i-1] {
			if closes[i] <= upper[i] {
				line[i] = upper[i]
				dir[i] = Down
			} else {
				line[i] = lower[i]
				dir[i] = Up
			}
		} else {
			if closes[i] >= lower[i] {
				line[i] = lower[i]
				dir[i] = Up
			} else {
				line[i] = upper[i]
				dir[i] = Down
			}
		}
	}

	return &Result{
		Value:     round2(line[n-1]),
		Direction: dir[n-1],
		Ts:        s.bars[n-1].Start,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
