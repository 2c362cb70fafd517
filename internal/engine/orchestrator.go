package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"supertrend-core/internal/events"
	"supertrend-core/internal/market"
	"supertrend-core/internal/metrics"
	"supertrend-core/internal/order"
	"supertrend-core/internal/risk"
	"supertrend-core/internal/strategy"
	"supertrend-core/pkg/broker"
)

// TickStream delivers market ticks for a symbol set. Implemented by the
// broker websocket feed and the mock feed.
type TickStream interface {
	Subscribe(ctx context.Context, symbols []string) (<-chan market.Tick, func(), error)
}

// PriceSink receives every routed tick. The paper gateway uses it to
// fill orders at the last traded price.
type PriceSink interface {
	UpdatePrice(symbol string, price float64)
}

// SummarySource reads the day's aggregate for the end-of-day report.
type SummarySource interface {
	DailySummary(ctx context.Context, day time.Time) (DaySummary, error)
}

// DaySummary mirrors the ledger's daily aggregate row.
type DaySummary struct {
	Date          string
	TotalPnL      float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
}

// Config holds the session-level knobs the orchestrator needs.
type Config struct {
	Instruments       []market.Instrument
	LotSizes          map[market.Instrument]int
	Hours             strategy.Hours
	SchedulerInterval time.Duration
	Paper             bool
}

// Orchestrator implements Service. One instance runs at most one
// session at a time.
type Orchestrator struct {
	cfg      Config
	strategy *strategy.Engine
	riskMgr  *risk.Manager
	exec     *order.Executor
	gateway  broker.Gateway
	feed     TickStream
	sink     PriceSink // nil in live mode
	summary  SummarySource
	bus      *events.Bus
	log      zerolog.Logger

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	stopFeed    func()
	startedAt   time.Time
	margins     broker.Margin
	symbols     map[market.InstrumentLeg]string
	sweepDone   bool
	summaryDone bool
	workers     map[market.InstrumentLeg]chan market.Tick
	wg          sync.WaitGroup
}

// New wires an orchestrator. sink may be nil for live trading.
func New(cfg Config, st *strategy.Engine, riskMgr *risk.Manager, exec *order.Executor,
	gw broker.Gateway, feed TickStream, sink PriceSink, summary SummarySource,
	bus *events.Bus, log zerolog.Logger) *Orchestrator {
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = 30 * time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		strategy: st,
		riskMgr:  riskMgr,
		exec:     exec,
		gateway:  gw,
		feed:     feed,
		sink:     sink,
		summary:  summary,
		bus:      bus,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// StartSession resolves tradable symbols, arms every leg, connects the
// feed, and launches the workers and the scheduler.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("session already running")
	}

	// A live session without a funds snapshot must not trade.
	if !o.cfg.Paper {
		m, err := o.gateway.Margins(ctx)
		if err != nil {
			return fmt.Errorf("margin snapshot: %w", err)
		}
		o.margins = m
	}

	defs, symbols, err := o.resolveLegs(ctx)
	if err != nil {
		return fmt.Errorf("resolve symbols: %w", err)
	}
	o.symbols = symbols
	o.strategy.ResetDay(defs)
	o.sweepDone = false
	o.summaryDone = false
	metrics.SessionHalted.Set(0)

	subscribe := make([]string, 0, len(defs))
	for _, def := range defs {
		subscribe = append(subscribe, def.Symbol)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	ticks, stopFeed, err := o.feed.Subscribe(sessionCtx, subscribe)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe feed: %w", err)
	}
	o.cancel = cancel
	o.stopFeed = stopFeed

	// One worker per leg keeps candle and indicator state single-writer.
	o.workers = make(map[market.InstrumentLeg]chan market.Tick, len(defs))
	for _, def := range defs {
		ch := make(chan market.Tick, 256)
		o.workers[def.Key] = ch
		o.wg.Add(1)
		go o.legWorker(sessionCtx, def.Key, ch)
	}

	o.wg.Add(2)
	go o.route(sessionCtx, ticks)
	go o.schedule(sessionCtx)

	o.running = true
	o.startedAt = time.Now()
	o.log.Info().Int("legs", len(defs)).Bool("paper", o.cfg.Paper).Msg("session started")
	return nil
}

// StopSession stops the feed and the scheduler, then waits for the leg
// workers to finish any placement already in progress. Idempotent.
func (o *Orchestrator) StopSession() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.cancel()
	if o.stopFeed != nil {
		o.stopFeed()
	}
	o.running = false
	o.mu.Unlock()

	o.wg.Wait()
	o.log.Info().Msg("session stopped")
}

// Status snapshots session, risk, and leg state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	running := o.running
	startedAt := o.startedAt
	margins := o.margins
	symbols := make(map[string]string, len(o.symbols))
	for key, sym := range o.symbols {
		symbols[key.String()] = sym
	}
	o.mu.Unlock()

	rm := o.riskMgr.Snapshot()
	mode := ModeLive
	if o.cfg.Paper {
		mode = ModePaper
	}
	return Status{
		Running:     running,
		Mode:        mode,
		StartedAt:   startedAt,
		Halted:      rm.Halted,
		DailyPnL:    rm.DailyPnL,
		DailyTrades: rm.DailyTrades,
		Wins:        rm.Wins,
		Losses:      rm.Losses,
		Margins:     margins,
		Symbols:     symbols,
		Legs:        o.strategy.LegStatuses(),
	}
}

// UpdateRiskParams forwards live limit changes to the strategy layer.
func (o *Orchestrator) UpdateRiskParams(p strategy.RiskParams) {
	o.strategy.UpdateRiskParams(p)
	o.log.Info().Float64("max_loss", p.MaxDailyLoss).Int("max_trades", p.MaxTrades).
		Int("lot", p.LotSize).Bool("scaling", p.ScalingEnabled).Msg("risk params updated")
}

// resolveLegs quotes each enabled index, snaps the spot to the strike
// grid, and builds the weekly ATM option symbols for both legs.
func (o *Orchestrator) resolveLegs(ctx context.Context) ([]strategy.LegDef, map[market.InstrumentLeg]string, error) {
	expiry := broker.WeeklyExpiryCode(time.Now())
	var defs []strategy.LegDef
	symbols := make(map[market.InstrumentLeg]string)

	for _, inst := range o.cfg.Instruments {
		spot, err := o.gateway.Quote(ctx, broker.IndexSymbol(inst))
		if err != nil {
			return nil, nil, fmt.Errorf("quote %s: %w", inst, err)
		}
		strike := broker.NearestStrike(spot, broker.StrikeStep(inst))
		lot := o.cfg.LotSizes[inst]
		for _, leg := range []market.Leg{market.CallLeg, market.PutLeg} {
			key := market.InstrumentLeg{Instrument: inst, Leg: leg}
			sym := broker.OptionSymbol(inst, expiry, strike, leg)
			defs = append(defs, strategy.LegDef{Key: key, Symbol: sym, LotSize: lot})
			symbols[key] = sym
		}
		o.log.Info().Str("instrument", string(inst)).Float64("spot", spot).
			Int("strike", strike).Str("expiry", expiry).Msg("legs resolved")
	}
	return defs, symbols, nil
}

// route fans incoming ticks out to the per-leg workers.
func (o *Orchestrator) route(ctx context.Context, ticks <-chan market.Tick) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				o.log.Warn().Msg("tick stream closed")
				return
			}
			if o.sink != nil {
				o.sink.UpdatePrice(tick.Symbol, tick.Price)
			}
			key, ok := o.strategy.LegBySymbol(tick.Symbol)
			if !ok {
				continue
			}
			metrics.TicksTotal.WithLabelValues(key.String()).Inc()
			o.mu.Lock()
			ch := o.workers[key]
			o.mu.Unlock()
			if ch == nil {
				continue
			}
			select {
			case ch <- tick:
			default:
				o.log.Warn().Str("leg", key.String()).Msg("worker backlog, tick dropped")
			}
		}
	}
}

// legWorker drains one leg's ticks and executes whatever the strategy
// decides. Single goroutine per leg.
func (o *Orchestrator) legWorker(ctx context.Context, key market.InstrumentLeg, ticks <-chan market.Tick) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			act := o.strategy.ProcessTick(key, tick.Price, tick.Volume, tick.Ts)
			if act == nil {
				continue
			}
			o.execute(ctx, act)
		}
	}
}

// placementTimeout bounds one order placement including the executor's
// retries. Placements run on a context detached from session cancellation
// so stopping the session cannot abort a request already on the wire.
const placementTimeout = time.Minute

// execute turns one strategy action into an order and reconciles the
// fill back into strategy state.
func (o *Orchestrator) execute(ctx context.Context, act *strategy.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), placementTimeout)
	defer cancel()

	switch act.Kind {
	case strategy.ActionEntry:
		fill, err := o.exec.Sell(ctx, act.Key, act.Symbol, act.Qty, act.ReentryCount)
		if err != nil {
			if !errors.Is(err, order.ErrDuplicate) {
				o.log.Error().Err(err).Str("symbol", act.Symbol).Msg("entry failed")
			}
			return
		}
		o.strategy.OnOrderFilled(act.Key, strategy.ActionEntry, fill.TradeID, act.Qty, fill.FillPrice)

	case strategy.ActionExit:
		fill, err := o.exec.Exit(ctx, act.Key, act.TradeID, act.Symbol, act.Qty, string(act.Reason))
		if err != nil {
			if !errors.Is(err, order.ErrDuplicate) {
				o.log.Error().Err(err).Str("symbol", act.Symbol).Msg("exit failed")
			}
			return
		}
		o.strategy.OnOrderFilled(act.Key, strategy.ActionExit, act.TradeID, act.Qty, fill.FillPrice)
		if act.Reason == strategy.ReasonStopLoss {
			stopped := o.strategy.OnStopLoss(act.Key)
			o.bus.Publish(events.EventStopLossHit, events.ExitFill{
				Symbol: act.Symbol, Leg: string(act.Key.Leg), Qty: act.Qty,
				FillPrice: fill.FillPrice, PnL: fill.PnL, Reason: string(act.Reason), At: time.Now(),
			})
			if stopped {
				o.bus.Publish(events.EventLegStopped, fmt.Sprintf("%s stopped for the day", act.Key))
			}
		}
	}
}

// schedule runs the periodic jobs: margin refresh, the one-shot
// force-exit sweep, and the one-shot daily summary.
func (o *Orchestrator) schedule(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.SchedulerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.tickSchedule(ctx, now)
		}
	}
}

func (o *Orchestrator) tickSchedule(ctx context.Context, now time.Time) {
	if !o.cfg.Paper {
		if m, err := o.gateway.Margins(ctx); err == nil {
			o.mu.Lock()
			o.margins = m
			o.mu.Unlock()
		} else {
			o.log.Warn().Err(err).Msg("margin refresh failed")
		}
	}

	if !o.cfg.Hours.ForceExitReached(now) {
		return
	}

	o.mu.Lock()
	sweepPending := !o.sweepDone
	o.sweepDone = true
	o.mu.Unlock()
	if sweepPending {
		o.forceExitSweep(ctx)
	}

	o.mu.Lock()
	summaryPending := !o.summaryDone
	o.summaryDone = true
	o.mu.Unlock()
	if summaryPending {
		o.publishDailySummary(ctx, now)
	}
}

// forceExitSweep closes every open leg concurrently and reconciles the
// fills. Runs exactly once per session.
func (o *Orchestrator) forceExitSweep(ctx context.Context) {
	statuses := o.strategy.LegStatuses()
	var positions []order.OpenPosition
	for _, key := range o.strategy.OpenLegs() {
		st := statuses[key.String()]
		positions = append(positions, order.OpenPosition{
			Key: key, TradeID: st.TradeID, Symbol: st.Symbol, Qty: st.OpenQty,
		})
	}
	if len(positions) == 0 {
		o.log.Info().Msg("force-exit sweep: nothing open")
		return
	}

	o.log.Info().Int("positions", len(positions)).Msg("force-exit sweep")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), placementTimeout)
	defer cancel()
	for _, outcome := range o.exec.ForceExitAll(ctx, positions) {
		if outcome.Err != nil {
			o.log.Error().Err(outcome.Err).Str("symbol", outcome.Position.Symbol).Msg("force exit failed")
			continue
		}
		o.strategy.OnOrderFilled(outcome.Position.Key, strategy.ActionExit,
			outcome.Position.TradeID, outcome.Position.Qty, outcome.Fill.FillPrice)
	}
}

func (o *Orchestrator) publishDailySummary(ctx context.Context, now time.Time) {
	if o.summary == nil {
		return
	}
	day, err := o.summary.DailySummary(ctx, now)
	if err != nil {
		o.log.Error().Err(err).Msg("daily summary load failed")
		return
	}
	o.bus.Publish(events.EventDailySummary, events.DailySummary{
		Date:        day.Date,
		TotalPnL:    day.TotalPnL,
		TotalTrades: day.TotalTrades,
		Wins:        day.WinningTrades,
		Losses:      day.LosingTrades,
	})
	o.log.Info().Float64("pnl", day.TotalPnL).Int("trades", day.TotalTrades).Msg("daily summary published")
}
