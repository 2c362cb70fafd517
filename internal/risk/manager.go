// Package risk owns the session-wide risk state: realized PnL, trade count,
// and the latching halt flag.
package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Manager guards session risk limits. Once the halt latches it stays set
// until ResetDaily.
type Manager struct {
	mu      sync.RWMutex
	config  Config
	metrics Metrics
	onHalt  func(Metrics)
	log     zerolog.Logger
}

// NewManager creates a session risk manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{config: cfg, log: log.With().Str("component", "risk").Logger()}
}

// SetOnHalt registers a callback invoked once when the halt latches. It runs
// outside the manager lock. Must be set before ticks start flowing.
func (m *Manager) SetOnHalt(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHalt = fn
}

// AllowEntry evaluates the shared entry gate. A daily-loss breach latches the
// session halt as a side effect; a trade-count breach refuses without halting.
func (m *Manager) AllowEntry() Decision {
	m.mu.Lock()

	if m.metrics.Halted {
		m.mu.Unlock()
		return Decision{Reason: "session halted"}
	}

	if m.config.MaxDailyLoss > 0 && m.metrics.DailyPnL <= -m.config.MaxDailyLoss {
		m.metrics.Halted = true
		notify := m.onHalt
		snap := m.metrics
		m.log.Warn().
			Float64("daily_pnl", m.metrics.DailyPnL).
			Float64("max_daily_loss", m.config.MaxDailyLoss).
			Msg("max daily loss reached, halting session")
		m.mu.Unlock()
		if notify != nil {
			notify(snap)
		}
		return Decision{
			Reason:  fmt.Sprintf("daily loss limit breached: %.2f", snap.DailyPnL),
			Latched: true,
		}
	}

	if m.config.MaxTrades > 0 && m.metrics.DailyTrades >= m.config.MaxTrades {
		dec := Decision{
			Reason: fmt.Sprintf("daily trade limit reached: %d/%d", m.metrics.DailyTrades, m.config.MaxTrades),
		}
		m.mu.Unlock()
		return dec
	}

	m.mu.Unlock()
	return Decision{Allowed: true}
}

// RecordEntry counts a filled entry toward the daily trade limit.
func (m *Manager) RecordEntry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.DailyTrades++
}

// RecordExit books realized PnL from a closed trade.
func (m *Manager) RecordExit(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.DailyPnL += pnl
	if pnl >= 0 {
		m.metrics.Wins++
	} else {
		m.metrics.Losses++
	}
}

// Halted reports whether the session halt has latched.
func (m *Manager) Halted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics.Halted
}

// Snapshot returns a copy of current metrics.
func (m *Manager) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Config returns a copy of the active limits.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// UpdateConfig swaps the limits live; the next gate evaluation uses them.
func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	m.log.Info().
		Float64("max_daily_loss", cfg.MaxDailyLoss).
		Int("max_trades", cfg.MaxTrades).
		Msg("risk limits updated")
}

// ResetDaily clears session counters at the start of a trading day.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics.DailyTrades > 0 || m.metrics.Halted {
		m.log.Info().
			Float64("prev_pnl", m.metrics.DailyPnL).
			Int("prev_trades", m.metrics.DailyTrades).
			Msg("daily risk state reset")
	}
	m.metrics = Metrics{}
}
