package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"supertrend-core/internal/order"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// Ledger implements the execution coordinator's persistence interface
// plus the read queries the status API serves.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an open database.
func NewLedger(d *Database) *Ledger {
	return &Ledger{db: d.DB}
}

// CreateTrade records a filled entry and returns the new trade id.
func (l *Ledger) CreateTrade(ctx context.Context, t order.TradeOpen) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, symbol, instrument, leg, qty, entry_price, reentry_count,
			 order_id, paper, status, entry_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, t.Symbol, string(t.Key.Instrument), string(t.Key.Leg), t.Qty,
		t.EntryPrice, t.ReentryCount, t.OrderID, t.Paper, StatusOpen, t.At.UTC())
	if err != nil {
		return "", fmt.Errorf("insert trade: %w", err)
	}
	return id, nil
}

// CloseTrade records the exit fill and returns the realized PnL using
// the short-option convention: (entry - exit) * qty.
func (l *Ledger) CloseTrade(ctx context.Context, tradeID string, exitPrice float64, reason string) (float64, error) {
	var entry float64
	var qty int
	row := l.db.QueryRowContext(ctx,
		`SELECT entry_price, qty FROM trades WHERE id = ? AND status = ?`, tradeID, StatusOpen)
	if err := row.Scan(&entry, &qty); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
		}
		return 0, fmt.Errorf("load trade %s: %w", tradeID, err)
	}

	pnl := (entry - exitPrice) * float64(qty)
	_, err := l.db.ExecContext(ctx, `
		UPDATE trades
		SET exit_price = ?, pnl = ?, status = ?, exit_reason = ?, exit_time = ?
		WHERE id = ?
	`, exitPrice, pnl, StatusClosed, reason, time.Now().UTC(), tradeID)
	if err != nil {
		return 0, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	return pnl, nil
}

// RecordDailyResult folds one closed trade into the day's aggregate row.
func (l *Ledger) RecordDailyResult(ctx context.Context, day time.Time, pnl float64, win bool) error {
	wins, losses := 0, 1
	if win {
		wins, losses = 1, 0
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO daily_results (date, total_pnl, total_trades, winning_trades, losing_trades)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_pnl = total_pnl + excluded.total_pnl,
			total_trades = total_trades + 1,
			winning_trades = winning_trades + excluded.winning_trades,
			losing_trades = losing_trades + excluded.losing_trades,
			updated_at = CURRENT_TIMESTAMP
	`, day.UTC().Format("2006-01-02"), pnl, wins, losses)
	if err != nil {
		return fmt.Errorf("upsert daily result: %w", err)
	}
	return nil
}

// OpenTrades returns every trade still marked open, oldest first.
func (l *Ledger) OpenTrades(ctx context.Context) ([]Trade, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, symbol, instrument, leg, qty, entry_price, exit_price, pnl,
		       reentry_count, order_id, paper, status, exit_reason, entry_time, exit_time
		FROM trades WHERE status = ? ORDER BY entry_time
	`, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// RecentTrades returns the latest n trades, newest first.
func (l *Ledger) RecentTrades(ctx context.Context, n int) ([]Trade, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, symbol, instrument, leg, qty, entry_price, exit_price, pnl,
		       reentry_count, order_id, paper, status, exit_reason, entry_time, exit_time
		FROM trades ORDER BY entry_time DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// DailySummary returns the stored aggregate for a day, or a zero row.
func (l *Ledger) DailySummary(ctx context.Context, day time.Time) (DailyResult, error) {
	date := day.UTC().Format("2006-01-02")
	var r DailyResult
	row := l.db.QueryRowContext(ctx, `
		SELECT date, total_pnl, total_trades, winning_trades, losing_trades
		FROM daily_results WHERE date = ?
	`, date)
	if err := row.Scan(&r.Date, &r.TotalPnL, &r.TotalTrades, &r.WinningTrades, &r.LosingTrades); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DailyResult{Date: date}, nil
		}
		return DailyResult{}, fmt.Errorf("query daily result: %w", err)
	}
	return r, nil
}

// AppendLog stores one session log line for later inspection.
func (l *Ledger) AppendLog(ctx context.Context, level, message string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO session_logs (level, message) VALUES (?, ?)`, level, message)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func scanTrades(rows *sql.Rows) ([]Trade, error) {
	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Instrument, &t.Leg, &t.Qty,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.ReentryCount, &t.OrderID,
			&t.Paper, &t.Status, &t.ExitReason, &t.EntryTime, &t.ExitTime); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
