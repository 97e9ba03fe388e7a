package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS coins (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	name TEXT NOT NULL,
	image TEXT NOT NULL DEFAULT '',
	current_price TEXT NOT NULL,
	change_24h TEXT NOT NULL,
	market_cap TEXT NOT NULL,
	market_cap_rank INTEGER NOT NULL DEFAULT 0,
	last_updated_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS coin_details (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	name TEXT NOT NULL,
	image TEXT NOT NULL DEFAULT '',
	current_price TEXT NOT NULL,
	change_24h TEXT NOT NULL,
	market_cap_usd TEXT NOT NULL,
	total_volume_usd TEXT NOT NULL,
	circulating_supply TEXT,
	total_supply TEXT,
	max_supply TEXT,
	ath_usd TEXT NOT NULL,
	ath_date TEXT NOT NULL DEFAULT '',
	atl_usd TEXT NOT NULL,
	atl_date TEXT NOT NULL DEFAULT '',
	last_updated_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	coin_id TEXT NOT NULL,
	coin_symbol TEXT NOT NULL,
	coin_name TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL,
	purchase_price TEXT NOT NULL,
	purchase_date_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_holdings_coin_id ON holdings (coin_id);
`

// Open opens (or creates) the sqlite database at path and applies the schema.
// Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema+historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)
	return db, nil
}
