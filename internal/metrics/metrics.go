// Package metrics exposes prometheus collectors for the trading core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts feed ticks routed into the strategy, per leg.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_ticks_total",
		Help: "Market data ticks processed per leg.",
	}, []string{"leg"})

	// BarsClosedTotal counts closed 3-minute bars per leg.
	BarsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_bars_closed_total",
		Help: "Closed candles per leg.",
	}, []string{"leg"})

	// OrdersTotal counts order placements by kind and outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_orders_total",
		Help: "Order placements by kind and outcome.",
	}, []string{"kind", "outcome"})

	// DuplicatesTotal counts requests rejected by the idempotency guard.
	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_duplicate_orders_total",
		Help: "Order requests suppressed as in-flight duplicates.",
	})

	// ForceExitsTotal counts positions closed by the end-of-day sweep.
	ForceExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_force_exits_total",
		Help: "Positions closed by the force-exit sweep.",
	})

	// SessionHalted reflects the risk halt latch.
	SessionHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_session_halted",
		Help: "1 while the session risk halt is latched.",
	})
)
