package db

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    instrument TEXT NOT NULL,
    leg TEXT NOT NULL,
    qty INTEGER NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL,
    pnl REAL,
    reentry_count INTEGER NOT NULL DEFAULT 0,
    order_id TEXT,
    paper INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    exit_reason TEXT,
    entry_time DATETIME NOT NULL,
    exit_time DATETIME
);

CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
CREATE INDEX IF NOT EXISTS idx_trades_entry_time ON trades(entry_time);

CREATE TABLE IF NOT EXISTS daily_results (
    date TEXT PRIMARY KEY,
    total_pnl REAL NOT NULL DEFAULT 0,
    total_trades INTEGER NOT NULL DEFAULT 0,
    winning_trades INTEGER NOT NULL DEFAULT 0,
    losing_trades INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    level TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Migrate applies the schema. Safe to call on every startup.
func Migrate(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping verifies the connection works.
func Ping(d *Database) error {
	var one int
	row := d.DB.QueryRow(`SELECT 1`)
	if err := row.Scan(&one); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
