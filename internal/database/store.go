package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"hodler/internal/models"
)

// Store is the local snapshot cache. It is the only writer of the coins and
// coin_details tables; upserts replace whole rows by coin id.
type Store struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewStore(db *sqlx.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log}
}

const upsertCoinQ = `
INSERT INTO coins (id, symbol, name, image, current_price, change_24h, market_cap, market_cap_rank, last_updated_ms)
VALUES (:id, :symbol, :name, :image, :current_price, :change_24h, :market_cap, :market_cap_rank, :last_updated_ms)
ON CONFLICT (id) DO UPDATE SET
	symbol = excluded.symbol,
	name = excluded.name,
	image = excluded.image,
	current_price = excluded.current_price,
	change_24h = excluded.change_24h,
	market_cap = excluded.market_cap,
	market_cap_rank = excluded.market_cap_rank,
	last_updated_ms = excluded.last_updated_ms`

// UpsertCoins replaces the cached snapshot of every given coin in one
// transaction. Rows for coins not in the batch are left untouched.
func (s *Store) UpsertCoins(ctx context.Context, coins []models.CoinSnapshot) error {
	if len(coins) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range coins {
		if _, err := tx.NamedExecContext(ctx, upsertCoinQ, c); err != nil {
			return fmt.Errorf("upsert coin %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetCoins returns all cached market snapshots ordered by market cap rank.
func (s *Store) GetCoins(ctx context.Context) ([]models.CoinSnapshot, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM coins ORDER BY market_cap_rank ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.CoinSnapshot{}
	for rows.Next() {
		var c models.CoinSnapshot
		if err := rows.StructScan(&c); err != nil {
			s.log.Warnf("scan coin failed: %v", err)
			continue
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// GetCoinByID returns the cached snapshot for one coin, or nil if absent.
func (s *Store) GetCoinByID(ctx context.Context, id string) (*models.CoinSnapshot, error) {
	var c models.CoinSnapshot
	err := s.db.GetContext(ctx, &c, `SELECT * FROM coins WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCoinsByIDs returns the cached snapshots present for the given ids. Ids
// with no cache row are simply absent from the result.
func (s *Store) GetCoinsByIDs(ctx context.Context, ids []string) ([]models.CoinSnapshot, error) {
	if len(ids) == 0 {
		return []models.CoinSnapshot{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM coins WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.CoinSnapshot{}
	for rows.Next() {
		var c models.CoinSnapshot
		if err := rows.StructScan(&c); err != nil {
			s.log.Warnf("scan coin failed: %v", err)
			continue
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// MaxCoinTimestamp returns the most recent last_updated_ms across all cached
// coins, with ok=false when the cache is empty.
func (s *Store) MaxCoinTimestamp(ctx context.Context) (int64, bool, error) {
	var ts sql.NullInt64
	if err := s.db.GetContext(ctx, &ts, `SELECT MAX(last_updated_ms) FROM coins`); err != nil {
		return 0, false, err
	}
	if !ts.Valid {
		return 0, false, nil
	}
	return ts.Int64, true, nil
}

const upsertDetailQ = `
INSERT INTO coin_details (id, symbol, name, image, current_price, change_24h, market_cap_usd, total_volume_usd,
	circulating_supply, total_supply, max_supply, ath_usd, ath_date, atl_usd, atl_date, last_updated_ms)
VALUES (:id, :symbol, :name, :image, :current_price, :change_24h, :market_cap_usd, :total_volume_usd,
	:circulating_supply, :total_supply, :max_supply, :ath_usd, :ath_date, :atl_usd, :atl_date, :last_updated_ms)
ON CONFLICT (id) DO UPDATE SET
	symbol = excluded.symbol,
	name = excluded.name,
	image = excluded.image,
	current_price = excluded.current_price,
	change_24h = excluded.change_24h,
	market_cap_usd = excluded.market_cap_usd,
	total_volume_usd = excluded.total_volume_usd,
	circulating_supply = excluded.circulating_supply,
	total_supply = excluded.total_supply,
	max_supply = excluded.max_supply,
	ath_usd = excluded.ath_usd,
	ath_date = excluded.ath_date,
	atl_usd = excluded.atl_usd,
	atl_date = excluded.atl_date,
	last_updated_ms = excluded.last_updated_ms`

// UpsertCoinDetail replaces the cached detail snapshot for one coin.
func (s *Store) UpsertCoinDetail(ctx context.Context, d models.CoinDetailSnapshot) error {
	if _, err := s.db.NamedExecContext(ctx, upsertDetailQ, d); err != nil {
		return fmt.Errorf("upsert coin detail %s: %w", d.ID, err)
	}
	return nil
}

// GetCoinDetailByID returns the cached detail snapshot, or nil if absent.
func (s *Store) GetCoinDetailByID(ctx context.Context, id string) (*models.CoinDetailSnapshot, error) {
	var d models.CoinDetailSnapshot
	err := s.db.GetContext(ctx, &d, `SELECT * FROM coin_details WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateCoinPrices refreshes price, 24h change and timestamp on cached coin
// rows from a batch of quotes. Quotes without a cached row are skipped: a
// quote alone cannot synthesize a full snapshot.
func (s *Store) UpdateCoinPrices(ctx context.Context, quotes map[string]models.PriceQuote, tsMs int64) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, q := range quotes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE coins SET current_price = ?, change_24h = ?, last_updated_ms = ? WHERE id = ?`,
			q.USD, q.USD24hChange, tsMs, id); err != nil {
			return fmt.Errorf("refresh price %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteOlderThan purges cache rows last written before cutoffMs and reports
// how many rows were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	var total int64
	for _, table := range []string{"coins", "coin_details", "price_history"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE last_updated_ms < ?`, cutoffMs)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
