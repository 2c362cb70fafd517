package market

import "time"

// Bar is a fixed-width OHLCV aggregation. Immutable once returned by the
// aggregator.
type Bar struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleAggregator folds a tick stream into wall-clock-aligned bars.
// Aggregation is purely tick-driven: quiet boundary periods produce no bar.
// Not safe for concurrent use; each leg owns exactly one aggregator.
type CandleAggregator struct {
	width time.Duration
	open  bool
	cur   Bar
}

// NewCandleAggregator builds an aggregator with the given bar width.
func NewCandleAggregator(width time.Duration) *CandleAggregator {
	if width <= 0 {
		width = 3 * time.Minute
	}
	return &CandleAggregator{width: width}
}

// Update folds one tick in. It returns the finished bar on the tick that
// crosses a bar boundary, nil otherwise. The crossing tick opens the next bar.
func (a *CandleAggregator) Update(price, volume float64, ts time.Time) *Bar {
	start := ts.Truncate(a.width)

	if !a.open {
		a.cur = Bar{Start: start, Open: price, High: price, Low: price, Close: price, Volume: volume}
		a.open = true
		return nil
	}

	if !ts.Before(a.cur.Start.Add(a.width)) {
		closed := a.cur
		a.cur = Bar{Start: start, Open: price, High: price, Low: price, Close: price, Volume: volume}
		return &closed
	}

	if price > a.cur.High {
		a.cur.High = price
	}
	if price < a.cur.Low {
		a.cur.Low = price
	}
	a.cur.Close = price
	a.cur.Volume += volume
	return nil
}

// Current returns a copy of the forming bar, and whether one is open.
func (a *CandleAggregator) Current() (Bar, bool) {
	return a.cur, a.open
}

// Reset discards the forming bar.
func (a *CandleAggregator) Reset() {
	a.open = false
	a.cur = Bar{}
}
