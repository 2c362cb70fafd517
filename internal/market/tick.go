// Package market carries tick and candle plumbing shared by the feed,
// strategy, and orchestration layers.
package market

import "time"

// Instrument identifies the underlying index.
type Instrument string

const (
	Nifty  Instrument = "NIFTY"
	Sensex Instrument = "SENSEX"
)

// Leg identifies one side of the options structure.
type Leg string

const (
	CallLeg Leg = "CE"
	PutLeg  Leg = "PE"
)

// InstrumentLeg is the composite key a leg is tracked and traded under.
type InstrumentLeg struct {
	Instrument Instrument
	Leg        Leg
}

func (k InstrumentLeg) String() string {
	return string(k.Instrument) + ":" + string(k.Leg)
}

// Tick is a single last-traded-price update from the data feed.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Ts     time.Time
}
