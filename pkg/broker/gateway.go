// Package broker talks to the options broker: order placement, funds,
// quotes and the market data stream.
package broker

import (
	"context"
	"fmt"
)

// OrderResult is the broker acknowledgement for a filled order.
type OrderResult struct {
	OrderID   string
	FillPrice float64
}

// Margin is a funds snapshot.
type Margin struct {
	Available float64 `json:"available"`
	Used      float64 `json:"used"`
}

// Gateway places orders and reports account state. Implementations are
// the REST client and the paper-trading simulator.
type Gateway interface {
	// PlaceSell opens a short position at market.
	PlaceSell(ctx context.Context, symbol string, qty int) (OrderResult, error)
	// PlaceExit buys back an open short at market.
	PlaceExit(ctx context.Context, symbol string, qty int) (OrderResult, error)
	// Margins returns the current funds snapshot.
	Margins(ctx context.Context) (Margin, error)
	// Quote returns the last traded price for a symbol.
	Quote(ctx context.Context, symbol string) (float64, error)
}

// RejectionError is a definitive broker refusal. Retrying the same
// request cannot succeed, so callers must not.
type RejectionError struct {
	Code    int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected (code %d): %s", e.Code, e.Message)
}
