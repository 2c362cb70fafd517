package broker

import (
	"fmt"
	"math"
	"strings"
	"time"

	"supertrend-core/internal/market"
)

// Strike steps per index.
const (
	NiftyStrikeStep  = 50
	SensexStrikeStep = 100
)

// NearestStrike rounds a spot price to the closest strike on the grid.
func NearestStrike(spot float64, step int) int {
	if step <= 0 {
		step = NiftyStrikeStep
	}
	return int(math.Round(spot/float64(step))) * step
}

// WeeklyExpiryCode returns the broker date code (DDMMMYY, upper case)
// for the next weekly expiry on or after now. Expiries fall on Thursday.
func WeeklyExpiryCode(now time.Time) string {
	d := now
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, 1)
	}
	return strings.ToUpper(d.Format("02Jan06"))
}

// OptionSymbol builds the tradable weekly option symbol for an index leg,
// e.g. "NSE:NIFTY25SEP2524500CE".
func OptionSymbol(inst market.Instrument, expiry string, strike int, leg market.Leg) string {
	exchange := "NSE"
	if inst == market.Sensex {
		exchange = "BSE"
	}
	return fmt.Sprintf("%s:%s%s%d%s", exchange, inst, expiry, strike, leg)
}

// IndexSymbol is the spot symbol used for quotes and the data stream.
func IndexSymbol(inst market.Instrument) string {
	if inst == market.Sensex {
		return "BSE:SENSEX-INDEX"
	}
	return "NSE:NIFTY50-INDEX"
}

// StrikeStep returns the strike grid spacing for an index.
func StrikeStep(inst market.Instrument) int {
	if inst == market.Sensex {
		return SensexStrikeStep
	}
	return NiftyStrikeStep
}
