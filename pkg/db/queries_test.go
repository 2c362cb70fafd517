package db

import (
	"context"
	"testing"
	"time"

	"supertrend-core/internal/market"
	"supertrend-core/internal/order"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewLedger(d)
}

func openTrade(t *testing.T, l *Ledger, symbol string, qty int, entry float64) string {
	t.Helper()
	id, err := l.CreateTrade(context.Background(), order.TradeOpen{
		Symbol:     symbol,
		Key:        market.InstrumentLeg{Instrument: market.Nifty, Leg: market.CallLeg},
		Qty:        qty,
		EntryPrice: entry,
		OrderID:    "OID-1",
		Paper:      true,
		At:         time.Now(),
	})
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	return id
}

func TestCreateAndCloseTrade(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	id := openTrade(t, l, "NSE:NIFTY25SEP2524500CE", 50, 95.0)

	open, err := l.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("open trades: %v", err)
	}
	if len(open) != 1 || open[0].ID != id || open[0].Status != StatusOpen {
		t.Fatalf("open trades = %+v", open)
	}

	pnl, err := l.CloseTrade(ctx, id, 110.0, "SL")
	if err != nil {
		t.Fatalf("close trade: %v", err)
	}
	// short: entry 95, exit 110, qty 50
	if want := -750.0; pnl != want {
		t.Fatalf("pnl = %v, want %v", pnl, want)
	}

	open, err = l.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("open trades: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("still open after close: %+v", open)
	}

	recent, err := l.RecentTrades(ctx, 10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent = %d", len(recent))
	}
	got := recent[0]
	if got.Status != StatusClosed || !got.PnL.Valid || got.PnL.Float64 != -750 {
		t.Fatalf("closed trade = %+v", got)
	}
	if !got.ExitReason.Valid || got.ExitReason.String != "SL" {
		t.Fatalf("exit reason = %+v", got.ExitReason)
	}
}

func TestCloseTradeTwiceFails(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	id := openTrade(t, l, "NSE:NIFTY25SEP2524500CE", 50, 95.0)
	if _, err := l.CloseTrade(ctx, id, 90.0, "SL"); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := l.CloseTrade(ctx, id, 90.0, "SL"); err == nil {
		t.Fatal("second close succeeded")
	}
}

func TestCloseUnknownTrade(t *testing.T) {
	l := testLedger(t)
	if _, err := l.CloseTrade(context.Background(), "missing", 90.0, "SL"); err == nil {
		t.Fatal("closing unknown trade succeeded")
	}
}

func TestDailyResultAccumulates(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()
	day := time.Date(2025, 9, 22, 12, 0, 0, 0, time.UTC)

	if err := l.RecordDailyResult(ctx, day, 500, true); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := l.RecordDailyResult(ctx, day, -750, false); err != nil {
		t.Fatalf("second record: %v", err)
	}
	if err := l.RecordDailyResult(ctx, day, 200, true); err != nil {
		t.Fatalf("third record: %v", err)
	}

	got, err := l.DailySummary(ctx, day)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.TotalPnL != -50 || got.TotalTrades != 3 || got.WinningTrades != 2 || got.LosingTrades != 1 {
		t.Fatalf("summary = %+v", got)
	}
}

func TestDailySummaryEmptyDay(t *testing.T) {
	l := testLedger(t)
	got, err := l.DailySummary(context.Background(), time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.TotalPnL != 0 || got.TotalTrades != 0 {
		t.Fatalf("empty day = %+v", got)
	}
	if got.Date != "2025-09-23" {
		t.Fatalf("date = %q", got.Date)
	}
}

func TestAppendLog(t *testing.T) {
	l := testLedger(t)
	if err := l.AppendLog(context.Background(), "info", "session started"); err != nil {
		t.Fatalf("append: %v", err)
	}
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM session_logs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("logs = %d", n)
	}
}
