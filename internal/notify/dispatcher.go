package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"supertrend-core/internal/events"
)

// Dispatcher subscribes to bus topics and forwards formatted alerts to
// the notifier. Delivery failures are logged, never propagated.
type Dispatcher struct {
	Bus      *events.Bus
	Notifier Notifier
	Log      zerolog.Logger
}

// Start launches one forwarding goroutine per topic. They exit when ctx
// is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.Bus == nil || d.Notifier == nil {
		d.Log.Warn().Msg("dispatcher not fully configured, alerts disabled")
		return
	}
	topics := []events.Event{
		events.EventEntryFilled,
		events.EventExitFilled,
		events.EventRiskHalt,
		events.EventLegStopped,
		events.EventDailySummary,
	}
	for _, topic := range topics {
		stream, unsub := d.Bus.Subscribe(topic, 50)
		go func() {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					text := format(msg)
					if text == "" {
						continue
					}
					if err := d.Notifier.Send(ctx, text); err != nil {
						d.Log.Warn().Err(err).Msg("alert delivery failed")
					}
				}
			}
		}()
	}
}

func format(msg any) string {
	switch m := msg.(type) {
	case events.EntryFill:
		mode := ""
		if m.Paper {
			mode = " [paper]"
		}
		return fmt.Sprintf("🔻 <b>SOLD</b>%s %s x%d @ %.2f (re-entry %d)",
			mode, m.Symbol, m.Qty, m.FillPrice, m.ReentryCount)
	case events.ExitFill:
		emoji := "✅"
		if m.PnL < 0 {
			emoji = "🛑"
		}
		return fmt.Sprintf("%s <b>EXIT %s</b> %s x%d @ %.2f, PnL %.2f",
			emoji, m.Reason, m.Symbol, m.Qty, m.FillPrice, m.PnL)
	case events.RiskHalt:
		return fmt.Sprintf("⛔ <b>TRADING HALTED</b>: %s (day PnL %.2f)", m.Reason, m.DailyPnL)
	case events.DailySummary:
		return fmt.Sprintf("📊 <b>%s</b>: PnL %.2f over %d trades (%dW/%dL)",
			m.Date, m.TotalPnL, m.TotalTrades, m.Wins, m.Losses)
	case string:
		return m
	}
	return ""
}
