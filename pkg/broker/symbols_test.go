package broker

import (
	"testing"
	"time"

	"supertrend-core/internal/market"
)

func TestNearestStrike(t *testing.T) {
	tests := []struct {
		name string
		spot float64
		step int
		want int
	}{
		{"rounds down", 24512.35, 50, 24500},
		{"rounds up", 24530.00, 50, 24550},
		{"exact grid", 24550.00, 50, 24550},
		{"midpoint rounds up", 24525.00, 50, 24550},
		{"sensex step", 81263.40, 100, 81300},
		{"zero step falls back", 24512.35, 0, 24500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NearestStrike(tt.spot, tt.step); got != tt.want {
				t.Fatalf("NearestStrike(%v, %d) = %d, want %d", tt.spot, tt.step, got, tt.want)
			}
		})
	}
}

func TestWeeklyExpiryCode(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"monday rolls to thursday", time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC), "25SEP25"},
		{"thursday is same day", time.Date(2025, 9, 25, 10, 0, 0, 0, time.UTC), "25SEP25"},
		{"friday rolls to next week", time.Date(2025, 9, 26, 10, 0, 0, 0, time.UTC), "02OCT25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeeklyExpiryCode(tt.now); got != tt.want {
				t.Fatalf("WeeklyExpiryCode(%v) = %q, want %q", tt.now, got, tt.want)
			}
		})
	}
}

func TestOptionSymbol(t *testing.T) {
	got := OptionSymbol(market.Nifty, "25SEP25", 24500, market.CallLeg)
	if got != "NSE:NIFTY25SEP2524500CE" {
		t.Fatalf("nifty symbol = %q", got)
	}
	got = OptionSymbol(market.Sensex, "25SEP25", 81300, market.PutLeg)
	if got != "BSE:SENSEX25SEP2581300PE" {
		t.Fatalf("sensex symbol = %q", got)
	}
}
