package strategy

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock cutoff within the trading session.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return t, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return t, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// Hours defines the session cutoffs, evaluated against tick timestamps in Loc.
type Hours struct {
	MarketOpen TimeOfDay
	LastEntry  TimeOfDay
	ForceExit  TimeOfDay
	Loc        *time.Location
}

// DefaultHours returns the NSE intraday cutoffs in the given location.
func DefaultHours(loc *time.Location) Hours {
	return Hours{
		MarketOpen: TimeOfDay{9, 15},
		LastEntry:  TimeOfDay{14, 45},
		ForceExit:  TimeOfDay{15, 15},
		Loc:        loc,
	}
}

func (h Hours) clock(ts time.Time) int {
	loc := h.Loc
	if loc == nil {
		loc = time.Local
	}
	local := ts.In(loc)
	return local.Hour()*60 + local.Minute()
}

// WithinEntryWindow reports whether new entries are permitted at ts.
func (h Hours) WithinEntryWindow(ts time.Time) bool {
	c := h.clock(ts)
	return c >= h.MarketOpen.minutes() && c <= h.LastEntry.minutes()
}

// ForceExitReached reports whether the end-of-day cutoff has passed at ts.
func (h Hours) ForceExitReached(ts time.Time) bool {
	return h.clock(ts) >= h.ForceExit.minutes()
}
