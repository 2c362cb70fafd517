package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PaperGateway simulates fills at the last seen traded price. It keeps
// no positions; the ledger and strategy own that state.
type PaperGateway struct {
	mu    sync.RWMutex
	last  map[string]float64
	funds Margin
}

// NewPaperGateway returns a simulator seeded with a notional balance.
func NewPaperGateway(available float64) *PaperGateway {
	return &PaperGateway{
		last:  make(map[string]float64),
		funds: Margin{Available: available},
	}
}

// UpdatePrice records the latest traded price for a symbol. Fills use
// the recorded price, so the feed should call this on every tick.
func (g *PaperGateway) UpdatePrice(symbol string, price float64) {
	g.mu.Lock()
	g.last[symbol] = price
	g.mu.Unlock()
}

func (g *PaperGateway) fillPrice(symbol string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if p, ok := g.last[symbol]; ok {
		return p
	}
	return 100.0
}

func (g *PaperGateway) PlaceSell(ctx context.Context, symbol string, qty int) (OrderResult, error) {
	return OrderResult{
		OrderID:   "PAPER-" + uuid.NewString(),
		FillPrice: g.fillPrice(symbol),
	}, nil
}

func (g *PaperGateway) PlaceExit(ctx context.Context, symbol string, qty int) (OrderResult, error) {
	return OrderResult{
		OrderID:   "PAPER-" + uuid.NewString(),
		FillPrice: g.fillPrice(symbol),
	}, nil
}

func (g *PaperGateway) Margins(ctx context.Context) (Margin, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.funds, nil
}

func (g *PaperGateway) Quote(ctx context.Context, symbol string) (float64, error) {
	return g.fillPrice(symbol), nil
}
