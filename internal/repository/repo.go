package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"hodler/internal/database"
	"hodler/internal/models"
)

// Remote is the fallible upstream market-data source. Every method makes a
// single attempt; the repository owns the fallback, not the client.
type Remote interface {
	FetchMarketList(ctx context.Context, perPage int) ([]models.CoinSnapshot, error)
	FetchCoinByID(ctx context.Context, id string) (*models.CoinSnapshot, error)
	FetchCoinDetail(ctx context.Context, id string) (*models.CoinDetailSnapshot, error)
	FetchPriceHistory(ctx context.Context, id string, days int) ([]models.PricePoint, error)
	FetchQuotes(ctx context.Context, ids []string) (map[string]models.PriceQuote, error)
}

// Repo orchestrates remote-first reads with cache fallback: a successful
// remote call refreshes the local store and is returned fresh; a failed one
// degrades to cached rows when any exist, and only surfaces the original
// remote error when the cache is empty too.
type Repo struct {
	remote  Remote
	store   *database.Store
	clock   Clock
	log     *logrus.Logger
	perPage int
}

func New(remote Remote, store *database.Store, clock Clock, log *logrus.Logger) *Repo {
	return &Repo{remote: remote, store: store, clock: clock, log: log, perPage: 100}
}

// fallback runs the generic remote-then-cache protocol shared by every query
// shape. persist failures are logged and swallowed: a successful remote fetch
// is never masked by a cache write problem. readCache reports ok=false when
// the store has nothing for this query, which surfaces the original remote
// error unmodified.
func fallback[T any](
	ctx context.Context,
	log *logrus.Logger,
	nowMs int64,
	remote func(context.Context) (T, error),
	persist func(context.Context, T) error,
	readCache func(context.Context) (T, int64, bool, error),
) (Envelope[T], error) {
	data, remoteErr := remote(ctx)
	if remoteErr == nil {
		if err := persist(ctx, data); err != nil {
			log.Warnf("cache write failed: %v", err)
		}
		return Envelope[T]{Data: data, FromCache: false, LastUpdatedMs: nowMs}, nil
	}

	cached, ts, ok, err := readCache(ctx)
	if err != nil {
		log.Warnf("cache read failed after remote error: %v", err)
	}
	if err != nil || !ok {
		var zero Envelope[T]
		return zero, remoteErr
	}
	return Envelope[T]{Data: cached, FromCache: true, LastUpdatedMs: ts}, nil
}

// MarketList returns the full market listing, freshest source first.
func (r *Repo) MarketList(ctx context.Context) (Envelope[[]models.CoinSnapshot], error) {
	nowMs := r.clock.Now().UnixMilli()
	return fallback(ctx, r.log, nowMs,
		func(ctx context.Context) ([]models.CoinSnapshot, error) {
			coins, err := r.remote.FetchMarketList(ctx, r.perPage)
			if err != nil {
				return nil, err
			}
			for i := range coins {
				coins[i].LastUpdatedMs = nowMs
			}
			return coins, nil
		},
		func(ctx context.Context, coins []models.CoinSnapshot) error {
			return r.store.UpsertCoins(ctx, coins)
		},
		func(ctx context.Context) ([]models.CoinSnapshot, int64, bool, error) {
			coins, err := r.store.GetCoins(ctx)
			if err != nil || len(coins) == 0 {
				return nil, 0, false, err
			}
			ts, _, err := r.store.MaxCoinTimestamp(ctx)
			return coins, ts, true, err
		})
}

// CoinByID returns one market snapshot. A remote not-found with a cached row
// is a cache-fallback success; with no cached row it stays a not-found error.
func (r *Repo) CoinByID(ctx context.Context, id string) (Envelope[models.CoinSnapshot], error) {
	nowMs := r.clock.Now().UnixMilli()
	return fallback(ctx, r.log, nowMs,
		func(ctx context.Context) (models.CoinSnapshot, error) {
			coin, err := r.remote.FetchCoinByID(ctx, id)
			if err != nil {
				return models.CoinSnapshot{}, err
			}
			coin.LastUpdatedMs = nowMs
			return *coin, nil
		},
		func(ctx context.Context, coin models.CoinSnapshot) error {
			return r.store.UpsertCoins(ctx, []models.CoinSnapshot{coin})
		},
		func(ctx context.Context) (models.CoinSnapshot, int64, bool, error) {
			coin, err := r.store.GetCoinByID(ctx, id)
			if err != nil || coin == nil {
				return models.CoinSnapshot{}, 0, false, err
			}
			return *coin, coin.LastUpdatedMs, true, nil
		})
}

// CoinDetail returns the detail snapshot for one coin.
func (r *Repo) CoinDetail(ctx context.Context, id string) (Envelope[models.CoinDetailSnapshot], error) {
	nowMs := r.clock.Now().UnixMilli()
	return fallback(ctx, r.log, nowMs,
		func(ctx context.Context) (models.CoinDetailSnapshot, error) {
			detail, err := r.remote.FetchCoinDetail(ctx, id)
			if err != nil {
				return models.CoinDetailSnapshot{}, err
			}
			detail.LastUpdatedMs = nowMs
			return *detail, nil
		},
		func(ctx context.Context, detail models.CoinDetailSnapshot) error {
			return r.store.UpsertCoinDetail(ctx, detail)
		},
		func(ctx context.Context) (models.CoinDetailSnapshot, int64, bool, error) {
			detail, err := r.store.GetCoinDetailByID(ctx, id)
			if err != nil || detail == nil {
				return models.CoinDetailSnapshot{}, 0, false, err
			}
			return *detail, detail.LastUpdatedMs, true, nil
		})
}

// PriceHistory returns the USD price series for the last `days` days.
func (r *Repo) PriceHistory(ctx context.Context, id string, days int) (Envelope[[]models.PricePoint], error) {
	nowMs := r.clock.Now().UnixMilli()
	return fallback(ctx, r.log, nowMs,
		func(ctx context.Context) ([]models.PricePoint, error) {
			return r.remote.FetchPriceHistory(ctx, id, days)
		},
		func(ctx context.Context, points []models.PricePoint) error {
			return r.store.UpsertPriceHistory(ctx, id, days, points, nowMs)
		},
		func(ctx context.Context) ([]models.PricePoint, int64, bool, error) {
			return r.store.GetPriceHistory(ctx, id, days)
		})
}

// Quotes returns current price and 24h change for the given coin ids. An
// empty id list short-circuits to an empty success without touching remote or
// store. On remote failure the result is the intersection of requested ids
// with cached coins; ids with no cache entry are omitted, never synthesized.
func (r *Repo) Quotes(ctx context.Context, ids []string) (Envelope[map[string]models.PriceQuote], error) {
	if len(ids) == 0 {
		return Envelope[map[string]models.PriceQuote]{Data: map[string]models.PriceQuote{}}, nil
	}
	nowMs := r.clock.Now().UnixMilli()
	return fallback(ctx, r.log, nowMs,
		func(ctx context.Context) (map[string]models.PriceQuote, error) {
			return r.remote.FetchQuotes(ctx, ids)
		},
		func(ctx context.Context, quotes map[string]models.PriceQuote) error {
			return r.store.UpdateCoinPrices(ctx, quotes, nowMs)
		},
		func(ctx context.Context) (map[string]models.PriceQuote, int64, bool, error) {
			coins, err := r.store.GetCoinsByIDs(ctx, ids)
			if err != nil || len(coins) == 0 {
				return nil, 0, false, err
			}
			quotes := make(map[string]models.PriceQuote, len(coins))
			var maxTs int64
			for _, c := range coins {
				quotes[c.ID] = models.PriceQuote{USD: c.CurrentPrice, USD24hChange: c.Change24h}
				if c.LastUpdatedMs > maxTs {
					maxTs = c.LastUpdatedMs
				}
			}
			return quotes, maxTs, true, nil
		})
}
