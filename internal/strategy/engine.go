// Package strategy holds the per-leg state machines and the decision engine
// that turns closed bars into entry and exit actions. The engine never places
// orders; it only decides.
package strategy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"supertrend-core/internal/market"
	"supertrend-core/internal/metrics"
	"supertrend-core/internal/risk"
)

// Params configures the decision engine.
type Params struct {
	Period         int
	Multiplier     float64
	BarWidth       time.Duration
	ScalingEnabled bool
	Hours          Hours
}

// Engine owns one LegState per tradable leg plus the shared risk gate.
//
// mu guards the legs map and the session-level knobs. Everything inside a
// LegState is guarded by the leg's own mutex, so a status snapshot never
// observes a tick mid-mutation. Lock order is always mu before leg.mu.
type Engine struct {
	mu      sync.RWMutex
	legs    map[market.InstrumentLeg]*LegState
	scaling bool
	hours   Hours

	period     int
	multiplier float64
	barWidth   time.Duration

	risk *risk.Manager
	log  zerolog.Logger
}

// New creates an engine. ResetDay must be called before any ticks.
func New(p Params, riskMgr *risk.Manager, log zerolog.Logger) *Engine {
	if p.BarWidth <= 0 {
		p.BarWidth = 3 * time.Minute
	}
	return &Engine{
		legs:       make(map[market.InstrumentLeg]*LegState),
		scaling:    p.ScalingEnabled,
		hours:      p.Hours,
		period:     p.Period,
		multiplier: p.Multiplier,
		barWidth:   p.BarWidth,
		risk:       riskMgr,
		log:        log.With().Str("component", "strategy").Logger(),
	}
}

// ResetDay reinitializes every leg and the session risk counters. Must run
// once per trading session before ticks are processed.
func (e *Engine) ResetDay(defs []LegDef) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.legs = make(map[market.InstrumentLeg]*LegState, len(defs))
	for _, def := range defs {
		e.legs[def.Key] = newLegState(def, e.period, e.multiplier, e.barWidth)
		e.log.Info().Str("leg", def.Key.String()).Str("symbol", def.Symbol).Int("lot", def.LotSize).Msg("leg armed")
	}
	e.risk.ResetDaily()
}

// ProcessTick feeds one tick into the leg's aggregator and, on a newly closed
// bar with indicator output, evaluates the state machine. It returns at most
// one action and performs no side effects beyond internal accumulation.
func (e *Engine) ProcessTick(key market.InstrumentLeg, price, volume float64, ts time.Time) *Action {
	e.mu.RLock()
	leg := e.legs[key]
	hours := e.hours
	scaling := e.scaling
	e.mu.RUnlock()
	if leg == nil {
		return nil
	}

	leg.mu.Lock()
	defer leg.mu.Unlock()

	closed := leg.Candles.Update(price, volume, ts)
	if closed == nil {
		return nil
	}
	metrics.BarsClosedTotal.WithLabelValues(key.String()).Inc()

	res := leg.Supertrend.Push(*closed)
	if res == nil {
		return nil
	}
	leg.Last = res

	// Force exit overrides every other check once the cutoff passes.
	if hours.ForceExitReached(ts) {
		if leg.open() {
			return &Action{
				Kind:    ActionExit,
				Key:     key,
				Symbol:  leg.Symbol,
				Price:   price,
				Qty:     leg.OpenQty,
				Reason:  ReasonForceExit,
				TradeID: leg.TradeID,
			}
		}
		return nil
	}

	// Stop loss: the bar closed back above the band while short.
	if leg.open() {
		if closed.Close > res.Value {
			return &Action{
				Kind:    ActionExit,
				Key:     key,
				Symbol:  leg.Symbol,
				Price:   price,
				Qty:     leg.OpenQty,
				Reason:  ReasonStopLoss,
				TradeID: leg.TradeID,
			}
		}
		return nil
	}

	// Entry: the bar closed below the band.
	if closed.Close < res.Value {
		if leg.Stopped {
			return nil
		}
		if !hours.WithinEntryWindow(ts) {
			return nil
		}
		if dec := e.risk.AllowEntry(); !dec.Allowed {
			e.log.Debug().Str("leg", key.String()).Str("reason", dec.Reason).Msg("entry refused")
			return nil
		}
		return &Action{
			Kind:         ActionEntry,
			Key:          key,
			Symbol:       leg.Symbol,
			Price:        price,
			Qty:          leg.qtyForEntry(scaling),
			ReentryCount: leg.ReentryCount,
			BandValue:    res.Value,
		}
	}

	return nil
}

// OnOrderFilled reconciles a real fill into position bookkeeping and realized
// PnL. It must be called after every fill, entry or exit. Returns the realized
// PnL for exits (short-option convention: entry minus exit, times quantity).
func (e *Engine) OnOrderFilled(key market.InstrumentLeg, kind ActionKind, tradeID string, qty int, fillPrice float64) float64 {
	e.mu.RLock()
	leg := e.legs[key]
	e.mu.RUnlock()
	if leg == nil {
		return 0
	}

	leg.mu.Lock()
	defer leg.mu.Unlock()

	switch kind {
	case ActionEntry:
		leg.TradeID = tradeID
		leg.OpenQty = qty
		leg.EntryPrice = fillPrice
		e.risk.RecordEntry()
		return 0
	case ActionExit:
		pnl := (leg.EntryPrice - fillPrice) * float64(leg.OpenQty)
		e.risk.RecordExit(pnl)
		leg.TradeID = ""
		leg.OpenQty = 0
		leg.EntryPrice = 0
		return pnl
	}
	return 0
}

// OnStopLoss counts an SL exit against the leg's re-entry budget. Returns true
// when the leg just became stopped for the rest of the session.
func (e *Engine) OnStopLoss(key market.InstrumentLeg) bool {
	e.mu.RLock()
	leg := e.legs[key]
	e.mu.RUnlock()
	if leg == nil {
		return false
	}

	leg.mu.Lock()
	stopped := leg.recordStopLoss()
	leg.mu.Unlock()
	if stopped {
		e.log.Warn().Str("leg", key.String()).Msg("re-entries exhausted, leg stopped")
	}
	return stopped
}

// UpdateRiskParams applies live risk/sizing changes without a restart.
func (e *Engine) UpdateRiskParams(p RiskParams) {
	e.mu.Lock()
	e.scaling = p.ScalingEnabled
	if p.LotSize > 0 {
		for _, leg := range e.legs {
			leg.mu.Lock()
			leg.LotSize = p.LotSize
			leg.mu.Unlock()
		}
	}
	e.mu.Unlock()

	e.risk.UpdateConfig(risk.Config{MaxDailyLoss: p.MaxDailyLoss, MaxTrades: p.MaxTrades})
}

// LegStatuses snapshots every leg for status reporting.
func (e *Engine) LegStatuses() map[string]LegStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]LegStatus, len(e.legs))
	for key, leg := range e.legs {
		out[key.String()] = leg.status()
	}
	return out
}

// OpenLegs returns the keys of legs currently holding a position.
func (e *Engine) OpenLegs() []market.InstrumentLeg {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []market.InstrumentLeg
	for key, leg := range e.legs {
		leg.mu.Lock()
		held := leg.open()
		leg.mu.Unlock()
		if held {
			out = append(out, key)
		}
	}
	return out
}

// LegBySymbol maps a feed symbol back to its leg key.
func (e *Engine) LegBySymbol(symbol string) (market.InstrumentLeg, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for key, leg := range e.legs {
		if leg.Symbol == symbol {
			return key, true
		}
	}
	return market.InstrumentLeg{}, false
}
