// Package order serializes and deduplicates order placement against the
// broker gateway and keeps the trade ledger in step with fills.
package order

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
	"supertrend-core/pkg/broker"
)

// ErrDuplicate reports that an identical request was already in flight.
var ErrDuplicate = errors.New("duplicate order in flight")

// Ledger persists trades and daily results. Implemented by pkg/db.
type Ledger interface {
	CreateTrade(ctx context.Context, t TradeOpen) (string, error)
	CloseTrade(ctx context.Context, tradeID string, exitPrice float64, reason string) (float64, error)
	RecordDailyResult(ctx context.Context, day time.Time, pnl float64, win bool) error
}

// Executor is the single path to the broker. Every request carries an
// idempotency key; a key already in flight is refused immediately.
type Executor struct {
	gateway broker.Gateway
	ledger  Ledger
	bus     *events.Bus
	paper   bool
	log     zerolog.Logger

	attempts int
	backoff  time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewExecutor builds the coordinator with the default retry policy of
// three attempts spaced by a fixed backoff.
func NewExecutor(gw broker.Gateway, ledger Ledger, bus *events.Bus, paper bool, log zerolog.Logger) *Executor {
	return &Executor{
		gateway:  gw,
		ledger:   ledger,
		bus:      bus,
		paper:    paper,
		log:      log.With().Str("component", "executor").Logger(),
		attempts: 3,
		backoff:  2 * time.Second,
		pending:  make(map[string]struct{}),
	}
}

// SetRetry overrides the retry policy. Used by tests.
func (e *Executor) SetRetry(attempts int, backoff time.Duration) {
	if attempts > 0 {
		e.attempts = attempts
	}
	e.backoff = backoff
}

func (e *Executor) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.pending[key]; busy {
		return false
	}
	e.pending[key] = struct{}{}
	return true
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	delete(e.pending, key)
	e.mu.Unlock()
}

// Sell opens a short position. The idempotency key covers symbol and
// quantity, so two concurrent identical entries collapse into one.
func (e *Executor) Sell(ctx context.Context, key market.InstrumentLeg, symbol string, qty, reentry int) (*Fill, error) {
	idem := fmt.Sprintf("ENTRY_%s_%d", symbol, qty)
	if !e.acquire(idem) {
		metrics.DuplicatesTotal.Inc()
		e.log.Warn().Str("key", idem).Msg("duplicate entry suppressed")
		e.bus.Publish(events.EventOrderDuplicate, idem)
		return nil, ErrDuplicate
	}
	defer e.release(idem)

	res, err := e.placeWithRetry(ctx, func(ctx context.Context) (broker.OrderResult, error) {
		return e.gateway.PlaceSell(ctx, symbol, qty)
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("entry", "failed").Inc()
		e.bus.Publish(events.EventOrderRejected, fmt.Sprintf("entry %s: %v", symbol, err))
		return nil, fmt.Errorf("sell %s qty %d: %w", symbol, qty, err)
	}

	tradeID, err := e.ledger.CreateTrade(ctx, TradeOpen{
		Symbol:       symbol,
		Key:          key,
		Qty:          qty,
		EntryPrice:   res.FillPrice,
		ReentryCount: reentry,
		OrderID:      res.OrderID,
		Paper:        e.paper,
		At:           time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record trade %s: %w", symbol, err)
	}

	metrics.OrdersTotal.WithLabelValues("entry", "filled").Inc()
	e.log.Info().Str("symbol", symbol).Int("qty", qty).
		Float64("price", res.FillPrice).Int("reentry", reentry).Msg("entry filled")
	e.bus.Publish(events.EventEntryFilled, events.EntryFill{
		Symbol: symbol, Leg: string(key.Leg), Qty: qty,
		FillPrice: res.FillPrice, ReentryCount: reentry, Paper: e.paper, At: time.Now(),
	})
	return &Fill{TradeID: tradeID, OrderID: res.OrderID, FillPrice: res.FillPrice}, nil
}

// Exit buys back an open short. The idempotency key is the trade id, so
// a stop-loss and the force-exit sweep cannot both close one trade.
func (e *Executor) Exit(ctx context.Context, key market.InstrumentLeg, tradeID, symbol string, qty int, reason string) (*ExitFill, error) {
	idem := "EXIT_" + tradeID
	if !e.acquire(idem) {
		metrics.DuplicatesTotal.Inc()
		e.log.Warn().Str("key", idem).Msg("duplicate exit suppressed")
		e.bus.Publish(events.EventOrderDuplicate, idem)
		return nil, ErrDuplicate
	}
	defer e.release(idem)

	res, err := e.placeWithRetry(ctx, func(ctx context.Context) (broker.OrderResult, error) {
		return e.gateway.PlaceExit(ctx, symbol, qty)
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("exit", "failed").Inc()
		e.bus.Publish(events.EventOrderRejected, fmt.Sprintf("exit %s: %v", symbol, err))
		return nil, fmt.Errorf("exit %s qty %d: %w", symbol, qty, err)
	}

	pnl, err := e.ledger.CloseTrade(ctx, tradeID, res.FillPrice, reason)
	if err != nil {
		return nil, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if err := e.ledger.RecordDailyResult(ctx, time.Now(), pnl, pnl >= 0); err != nil {
		e.log.Error().Err(err).Msg("daily result update failed")
	}

	metrics.OrdersTotal.WithLabelValues("exit", "filled").Inc()
	e.log.Info().Str("symbol", symbol).Str("trade", tradeID).
		Float64("price", res.FillPrice).Float64("pnl", pnl).Str("reason", reason).Msg("exit filled")
	e.bus.Publish(events.EventExitFilled, events.ExitFill{
		Symbol: symbol, Leg: string(key.Leg), Qty: qty,
		FillPrice: res.FillPrice, PnL: pnl, Reason: reason, Paper: e.paper, At: time.Now(),
	})
	return &ExitFill{TradeID: tradeID, OrderID: res.OrderID, FillPrice: res.FillPrice, PnL: pnl}, nil
}

// ForceExitAll closes every open position concurrently. Each position
// gets its own outcome; one failure never blocks another close.
func (e *Executor) ForceExitAll(ctx context.Context, positions []OpenPosition) []ExitOutcome {
	outcomes := make([]ExitOutcome, len(positions))
	var wg sync.WaitGroup
	for i, pos := range positions {
		wg.Add(1)
		go func(i int, pos OpenPosition) {
			defer wg.Done()
			fill, err := e.Exit(ctx, pos.Key, pos.TradeID, pos.Symbol, pos.Qty, "FORCE")
			if err == nil {
				metrics.ForceExitsTotal.Inc()
			}
			outcomes[i] = ExitOutcome{Position: pos, Fill: fill, Err: err}
		}(i, pos)
	}
	wg.Wait()
	return outcomes
}

// placeWithRetry retries transient transport failures with a fixed
// backoff. A broker rejection is definitive and returns immediately.
func (e *Executor) placeWithRetry(ctx context.Context, place func(context.Context) (broker.OrderResult, error)) (broker.OrderResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		res, err := place(ctx)
		if err == nil {
			return res, nil
		}
		var rej *broker.RejectionError
		if errors.As(err, &rej) {
			return broker.OrderResult{}, err
		}
		lastErr = err
		e.log.Warn().Err(err).Int("attempt", attempt).Msg("order attempt failed")
		if attempt == e.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return broker.OrderResult{}, ctx.Err()
		case <-time.After(e.backoff):
		}
	}
	return broker.OrderResult{}, fmt.Errorf("all %d attempts failed: %w", e.attempts, lastErr)
}
