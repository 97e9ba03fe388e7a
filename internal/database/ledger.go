package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"hodler/internal/models"
)

// Ledger owns the holdings table: user-entered purchase lots. It is the sole
// writer of holding rows, and it notifies subscribers after every mutation so
// downstream consumers can recompute instead of polling.
type Ledger struct {
	db  *sqlx.DB
	log *logrus.Logger

	mu   sync.Mutex
	subs map[chan []models.Holding]struct{}
}

func NewLedger(db *sqlx.DB, log *logrus.Logger) *Ledger {
	return &Ledger{db: db, log: log, subs: make(map[chan []models.Holding]struct{})}
}

// GetAll returns every holding, oldest purchase first.
func (l *Ledger) GetAll(ctx context.Context) ([]models.Holding, error) {
	rows, err := l.db.QueryxContext(ctx, `SELECT * FROM holdings ORDER BY purchase_date_ms ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			l.log.Warnf("scan holding failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// GetByID returns one holding, or nil if it does not exist.
func (l *Ledger) GetByID(ctx context.Context, id int64) (*models.Holding, error) {
	var h models.Holding
	err := l.db.GetContext(ctx, &h, `SELECT * FROM holdings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Insert stores a new holding and returns its assigned id.
func (l *Ledger) Insert(ctx context.Context, h models.Holding) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO holdings (coin_id, coin_symbol, coin_name, image_url, amount, purchase_price, purchase_date_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.CoinID, h.CoinSymbol, h.CoinName, h.ImageURL, h.Amount, h.PurchasePrice, h.PurchaseDateMs)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	l.notify(ctx)
	return id, nil
}

// Update overwrites an existing holding identified by h.ID.
func (l *Ledger) Update(ctx context.Context, h models.Holding) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE holdings SET coin_id = ?, coin_symbol = ?, coin_name = ?, image_url = ?,
		 amount = ?, purchase_price = ?, purchase_date_ms = ? WHERE id = ?`,
		h.CoinID, h.CoinSymbol, h.CoinName, h.ImageURL, h.Amount, h.PurchasePrice, h.PurchaseDateMs, h.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	l.notify(ctx)
	return nil
}

// DeleteByID removes a holding and returns the number of rows deleted.
func (l *Ledger) DeleteByID(ctx context.Context, id int64) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.notify(ctx)
	}
	return n, nil
}

// Observe subscribes to the holdings stream. The current list is delivered
// immediately, then the full list again after every mutation. The channel is
// closed when ctx is cancelled. Slow consumers see latest-wins: a pending
// stale emission is replaced rather than queued.
func (l *Ledger) Observe(ctx context.Context) <-chan []models.Holding {
	ch := make(chan []models.Holding, 1)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	if holdings, err := l.GetAll(ctx); err != nil {
		l.log.Warnf("initial holdings read failed: %v", err)
	} else {
		ch <- holdings
	}

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		close(ch)
		l.mu.Unlock()
	}()

	return ch
}

func (l *Ledger) notify(ctx context.Context) {
	holdings, err := l.GetAll(ctx)
	if err != nil {
		l.log.Warnf("holdings read for notify failed: %v", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- holdings:
		default:
			// Drop the stale pending emission, keep the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- holdings:
			default:
			}
		}
	}
}
