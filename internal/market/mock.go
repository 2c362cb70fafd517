package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockFeed generates random-walk ticks for paper sessions and local
// development. It satisfies the same subscription shape as the broker stream.
type MockFeed struct {
	StartPrice float64
	Step       float64
	Interval   time.Duration
}

// Subscribe emits synthetic ticks for the given symbols until ctx is done or
// the returned stop function is called.
func (m *MockFeed) Subscribe(ctx context.Context, symbols []string) (<-chan Tick, func(), error) {
	start := m.StartPrice
	if start == 0 {
		start = 100.0
	}
	step := m.Step
	if step == 0 {
		step = 0.5
	}
	interval := m.Interval
	if interval == 0 {
		interval = time.Second
	}

	out := make(chan Tick, 100)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
	}

	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		prices[s] = start
	}

	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case now := <-t.C:
				for _, sym := range symbols {
					// simple random walk, floored at a tick above zero
					p := prices[sym] + (rand.Float64()*2-1)*step
					if p < 0.05 {
						p = 0.05
					}
					prices[sym] = p
					select {
					case out <- Tick{Symbol: sym, Price: p, Volume: 1, Ts: now}:
					default:
					}
				}
			}
		}
	}()

	return out, stop, nil
}
