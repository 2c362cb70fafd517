package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"supertrend-core/internal/market"
	"supertrend-core/internal/metrics"
	"supertrend-core/internal/risk"
)

var ceKey = market.InstrumentLeg{Instrument: market.Nifty, Leg: market.CallLeg}

func testEngine(t *testing.T, riskCfg risk.Config, scaling bool) *Engine {
	t.Helper()
	e := New(Params{
		Period:         10,
		Multiplier:     3.0,
		BarWidth:       3 * time.Minute,
		ScalingEnabled: scaling,
		Hours:          DefaultHours(time.UTC),
	}, risk.NewManager(riskCfg, zerolog.Nop()), zerolog.Nop())
	e.ResetDay([]LegDef{{Key: ceKey, Symbol: "NSE:NIFTY25SEP2524500CE", LotSize: 50}})
	return e
}

// tickDriver sends exactly one tick per 3-minute bar, so each tick closes
// the bar holding the previous tick's price.
type tickDriver struct {
	e  *Engine
	ts time.Time
}

func newDriver(e *Engine, start time.Time) *tickDriver {
	return &tickDriver{e: e, ts: start}
}

func (d *tickDriver) tick(price float64) *Action {
	act := d.e.ProcessTick(ceKey, price, 1, d.ts)
	d.ts = d.ts.Add(3 * time.Minute)
	return act
}

// warmupPrices is eleven declining closes plus the tick that closes the
// eleventh bar. The decline keeps the trend down, so the band sits above
// price and the first complete calculation signals an entry.
func warmupPrices() []float64 {
	out := make([]float64, 0, 12)
	for i := 0; i < 11; i++ {
		out = append(out, 100-0.5*float64(i))
	}
	return append(out, 94.5)
}

// warmUp drives the warmup ticks and returns the entry produced by the
// eleventh closed bar.
func warmUp(t *testing.T, d *tickDriver) *Action {
	t.Helper()
	prices := warmupPrices()
	var last *Action
	for i, p := range prices {
		last = d.tick(p)
		if i < len(prices)-1 && last != nil {
			t.Fatalf("action before warmup complete at tick %d: %+v", i, last)
		}
	}
	if last == nil || last.Kind != ActionEntry {
		t.Fatalf("expected entry after warmup, got %+v", last)
	}
	return last
}

func TestEntryAfterWarmup(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))

	got := warmUp(t, d)
	if got.Qty != 50 {
		t.Fatalf("qty = %d, want lot size 50", got.Qty)
	}
	if got.ReentryCount != 0 {
		t.Fatalf("reentry = %d, want 0", got.ReentryCount)
	}
	// Eleven closes stepping down by 0.5 put the band just above the
	// last close of 95.
	if got.BandValue < 95 || got.BandValue > 100 {
		t.Fatalf("band = %v, want between 95 and 100", got.BandValue)
	}
}

func TestStopLossThenScaledReentry(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))

	entry := warmUp(t, d)
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", entry.Qty, 95.0)

	// The 94.5 bar closes under the band: short stays on.
	if act := d.tick(110); act != nil {
		t.Fatalf("holding bar produced action: %+v", act)
	}
	// The 110 bar closes above the band.
	exit := d.tick(50)
	if exit == nil || exit.Kind != ActionExit || exit.Reason != ReasonStopLoss {
		t.Fatalf("expected SL exit, got %+v", exit)
	}
	if exit.TradeID != "T-1" || exit.Qty != 50 {
		t.Fatalf("exit fields: %+v", exit)
	}

	pnl := e.OnOrderFilled(ceKey, ActionExit, "T-1", 50, 110.0)
	if want := (95.0 - 110.0) * 50; pnl != want {
		t.Fatalf("pnl = %v, want %v", pnl, want)
	}
	if stopped := e.OnStopLoss(ceKey); stopped {
		t.Fatal("leg stopped after first SL")
	}

	// The 50 bar closes far below the band: re-enter with doubled size.
	reentry := d.tick(50)
	if reentry == nil || reentry.Kind != ActionEntry {
		t.Fatalf("expected re-entry, got %+v", reentry)
	}
	if reentry.Qty != 100 {
		t.Fatalf("scaled qty = %d, want 100", reentry.Qty)
	}
	if reentry.ReentryCount != 1 {
		t.Fatalf("reentry count = %d, want 1", reentry.ReentryCount)
	}
}

func TestScalingDisabledKeepsFlatLot(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), false)
	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))

	entry := warmUp(t, d)
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", entry.Qty, 95.0)
	d.tick(110)
	exit := d.tick(50)
	if exit == nil || exit.Reason != ReasonStopLoss {
		t.Fatalf("expected SL exit, got %+v", exit)
	}
	e.OnOrderFilled(ceKey, ActionExit, "T-1", 50, 110.0)
	e.OnStopLoss(ceKey)

	reentry := d.tick(50)
	if reentry == nil {
		t.Fatal("no re-entry")
	}
	if reentry.Qty != 50 {
		t.Fatalf("qty = %d, want flat lot 50", reentry.Qty)
	}
}

func TestThirdStopLossStopsLeg(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))

	act := warmUp(t, d)
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", act.Qty, act.Price)
	if held := d.tick(99); held != nil {
		t.Fatalf("holding bar produced action: %+v", held)
	}

	// Alternating pops above and dips below the band: three SL cycles.
	pops := []float64{93, 91, 85}
	dips := []float64{100, 108, 0}
	for cycle := 0; cycle < 3; cycle++ {
		id := fmt.Sprintf("T-%d", cycle+1)
		exit := d.tick(pops[cycle])
		if exit == nil || exit.Reason != ReasonStopLoss {
			t.Fatalf("cycle %d: expected SL exit, got %+v", cycle, exit)
		}
		e.OnOrderFilled(ceKey, ActionExit, id, exit.Qty, exit.Price)
		stopped := e.OnStopLoss(ceKey)
		if wantStopped := cycle == 2; stopped != wantStopped {
			t.Fatalf("cycle %d: stopped = %v, want %v", cycle, stopped, wantStopped)
		}
		if cycle == 2 {
			break
		}

		reentry := d.tick(dips[cycle])
		if reentry == nil || reentry.Kind != ActionEntry {
			t.Fatalf("cycle %d: expected re-entry, got %+v", cycle, reentry)
		}
		if reentry.ReentryCount != cycle+1 {
			t.Fatalf("cycle %d: reentry count = %d", cycle, reentry.ReentryCount)
		}
		if want := 50 * (cycle + 2); reentry.Qty != want {
			t.Fatalf("cycle %d: qty = %d, want %d", cycle, reentry.Qty, want)
		}
		e.OnOrderFilled(ceKey, ActionEntry, fmt.Sprintf("T-%d", cycle+2), reentry.Qty, reentry.Price)
	}

	// The last bar closed at 85, well under the band; only the exhausted
	// re-entry budget keeps the leg out.
	if act := d.tick(85); act != nil {
		t.Fatalf("stopped leg produced action: %+v", act)
	}
	st := e.LegStatuses()[ceKey.String()]
	if !st.Stopped || st.ReentryCount != 3 {
		t.Fatalf("status = %+v, want stopped with 3 re-entries", st)
	}

	// A new session clears the stop.
	e.ResetDay([]LegDef{{Key: ceKey, Symbol: "NSE:NIFTY25SEP2524500CE", LotSize: 50}})
	if st := e.LegStatuses()[ceKey.String()]; st.Stopped || st.ReentryCount != 0 {
		t.Fatalf("after reset: %+v", st)
	}
}

func TestDailyLossHaltBlocksEntries(t *testing.T) {
	e := testEngine(t, risk.Config{MaxDailyLoss: 500, MaxTrades: 20}, true)
	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))

	entry := warmUp(t, d)
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", entry.Qty, 95.0)
	d.tick(110)
	exit := d.tick(50)
	if exit == nil {
		t.Fatal("no SL exit")
	}
	// Loss of 750 breaches the 500 cap.
	pnl := e.OnOrderFilled(ceKey, ActionExit, "T-1", 50, 110.0)
	if pnl != -750 {
		t.Fatalf("pnl = %v, want -750", pnl)
	}
	e.OnStopLoss(ceKey)

	// The 50 bar closes far below the band, but the session is halted.
	if act := d.tick(50); act != nil {
		t.Fatalf("halted session produced entry: %+v", act)
	}
}

func TestEntryWindowCutoff(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	// Warm up late enough that the signalling bar closes after 14:45.
	d := newDriver(e, time.Date(2025, 9, 22, 14, 15, 0, 0, time.UTC))

	var last *Action
	for _, p := range warmupPrices() {
		last = d.tick(p)
	}
	if last != nil {
		t.Fatalf("entry fired past the cutoff: %+v", last)
	}
}

func TestForceExitOverridesEverything(t *testing.T) {
	e := New(Params{
		Period:         10,
		Multiplier:     3.0,
		BarWidth:       3 * time.Minute,
		ScalingEnabled: true,
		Hours: Hours{
			MarketOpen: TimeOfDay{0, 0},
			LastEntry:  TimeOfDay{23, 0},
			ForceExit:  TimeOfDay{23, 30},
			Loc:        time.UTC,
		},
	}, risk.NewManager(risk.DefaultConfig(), zerolog.Nop()), zerolog.Nop())
	e.ResetDay([]LegDef{{Key: ceKey, Symbol: "NSE:NIFTY25SEP2524500CE", LotSize: 50}})

	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))
	entry := warmUp(t, d)
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", entry.Qty, 95.0)

	// Price is still below the band, but the cutoff has passed: the
	// closed bar must produce a force exit, not a hold.
	late := time.Date(2025, 9, 22, 23, 31, 0, 0, time.UTC)
	act := e.ProcessTick(ceKey, 40, 1, late)
	if act == nil || act.Kind != ActionExit || act.Reason != ReasonForceExit {
		t.Fatalf("expected force exit, got %+v", act)
	}
	if act.TradeID != "T-1" || act.Qty != 50 {
		t.Fatalf("force exit fields: %+v", act)
	}

	// Flat legs past the cutoff stay silent.
	e.OnOrderFilled(ceKey, ActionExit, "T-1", 50, 40)
	if next := e.ProcessTick(ceKey, 39, 1, late.Add(3*time.Minute)); next != nil {
		t.Fatalf("flat leg acted after cutoff: %+v", next)
	}
}

func TestClosedBarCounter(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	ctr := metrics.BarsClosedTotal.WithLabelValues(ceKey.String())
	before := testutil.ToFloat64(ctr)

	d := newDriver(e, time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC))
	for _, p := range []float64{100, 99, 98, 97} {
		if act := d.tick(p); act != nil {
			t.Fatalf("action during warmup: %+v", act)
		}
	}

	// Four ticks close three bars even though none produced an action.
	if got := testutil.ToFloat64(ctr) - before; got != 3 {
		t.Fatalf("closed bars counted = %v, want 3", got)
	}
}

// Status snapshots must be safe while a tick is mid-flight through the
// aggregator and indicator. Run with the race detector.
func TestStatusSnapshotDuringTickStream(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ts := time.Date(2025, 9, 22, 10, 0, 0, 0, time.UTC)
		price := 100.0
		for i := 0; i < 5000; i++ {
			e.ProcessTick(ceKey, price, 1, ts)
			ts = ts.Add(time.Second)
			price += 0.25
			if price > 120 {
				price = 80
			}
		}
	}()

	for streaming := true; streaming; {
		select {
		case <-done:
			streaming = false
		default:
		}
		st := e.LegStatuses()[ceKey.String()]
		if st.Symbol != "NSE:NIFTY25SEP2524500CE" {
			t.Fatalf("snapshot symbol = %q", st.Symbol)
		}
		e.OpenLegs()
	}
}

func TestOpenLegsAndSymbolLookup(t *testing.T) {
	e := testEngine(t, risk.DefaultConfig(), true)
	if legs := e.OpenLegs(); len(legs) != 0 {
		t.Fatalf("open legs before any fill: %v", legs)
	}
	e.OnOrderFilled(ceKey, ActionEntry, "T-1", 50, 95.0)
	legs := e.OpenLegs()
	if len(legs) != 1 || legs[0] != ceKey {
		t.Fatalf("open legs = %v", legs)
	}
	key, ok := e.LegBySymbol("NSE:NIFTY25SEP2524500CE")
	if !ok || key != ceKey {
		t.Fatalf("lookup = %v %v", key, ok)
	}
	if _, ok := e.LegBySymbol("NSE:UNKNOWN"); ok {
		t.Fatal("unknown symbol resolved")
	}
}
