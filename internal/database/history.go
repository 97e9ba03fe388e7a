package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hodler/internal/models"
)

// Price history is cached per (coin id, window) as a JSON payload. A chart
// series is only ever read or replaced whole, so a blob column beats one row
// per sample.

const historySchema = `
CREATE TABLE IF NOT EXISTS price_history (
	coin_id TEXT NOT NULL,
	days INTEGER NOT NULL,
	points TEXT NOT NULL,
	last_updated_ms INTEGER NOT NULL,
	PRIMARY KEY (coin_id, days)
);`

// UpsertPriceHistory replaces the cached series for one coin and window.
func (s *Store) UpsertPriceHistory(ctx context.Context, coinID string, days int, points []models.PricePoint, tsMs int64) error {
	payload, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("marshal price history %s: %w", coinID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO price_history (coin_id, days, points, last_updated_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT (coin_id, days) DO UPDATE SET points = excluded.points, last_updated_ms = excluded.last_updated_ms`,
		coinID, days, string(payload), tsMs)
	if err != nil {
		return fmt.Errorf("upsert price history %s: %w", coinID, err)
	}
	return nil
}

// GetPriceHistory returns the cached series and its write timestamp, with
// ok=false when no series is cached for this coin and window.
func (s *Store) GetPriceHistory(ctx context.Context, coinID string, days int) ([]models.PricePoint, int64, bool, error) {
	var row struct {
		Points        string `db:"points"`
		LastUpdatedMs int64  `db:"last_updated_ms"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT points, last_updated_ms FROM price_history WHERE coin_id = ? AND days = ?`, coinID, days)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var points []models.PricePoint
	if err := json.Unmarshal([]byte(row.Points), &points); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal price history %s: %w", coinID, err)
	}
	return points, row.LastUpdatedMs, true, nil
}
