// Package engine runs the trading session: it wires the feed, the
// strategy, the executor and the scheduler together and owns their
// lifecycle.
package engine

import (
	"context"

	"supertrend-core/internal/strategy"
)

// Service is the session control surface exposed to the HTTP API and
// the CLI entrypoint.
type Service interface {
	// StartSession arms the legs, connects the feed, and begins trading.
	// Fails if already running or if the margin snapshot cannot be taken.
	StartSession(ctx context.Context) error
	// StopSession tears the session down. Safe to call repeatedly.
	StopSession()
	// Status snapshots the running session.
	Status() Status
	// UpdateRiskParams applies new limits without a restart.
	UpdateRiskParams(p strategy.RiskParams)
}
