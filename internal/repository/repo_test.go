package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hodler/internal/coingecko"
	"hodler/internal/database"
	"hodler/internal/models"
)

var errRemoteDown = errors.New("dial tcp: connection refused")

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

type fakeRemote struct {
	listFn   func(perPage int) ([]models.CoinSnapshot, error)
	coinFn   func(id string) (*models.CoinSnapshot, error)
	detailFn func(id string) (*models.CoinDetailSnapshot, error)
	histFn   func(id string, days int) ([]models.PricePoint, error)
	quotesFn func(ids []string) (map[string]models.PriceQuote, error)

	quoteCalls int
}

func (f *fakeRemote) FetchMarketList(_ context.Context, perPage int) ([]models.CoinSnapshot, error) {
	return f.listFn(perPage)
}

func (f *fakeRemote) FetchCoinByID(_ context.Context, id string) (*models.CoinSnapshot, error) {
	return f.coinFn(id)
}

func (f *fakeRemote) FetchCoinDetail(_ context.Context, id string) (*models.CoinDetailSnapshot, error) {
	return f.detailFn(id)
}

func (f *fakeRemote) FetchPriceHistory(_ context.Context, id string, days int) ([]models.PricePoint, error) {
	return f.histFn(id, days)
}

func (f *fakeRemote) FetchQuotes(_ context.Context, ids []string) (map[string]models.PriceQuote, error) {
	f.quoteCalls++
	return f.quotesFn(ids)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshot(id string, price string, tsMs int64) models.CoinSnapshot {
	return models.CoinSnapshot{
		ID:            id,
		Symbol:        id,
		Name:          id,
		CurrentPrice:  dec(price),
		Change24h:     dec("1.5"),
		MarketCap:     dec("1000000"),
		LastUpdatedMs: tsMs,
	}
}

func newTestRepo(t *testing.T, remote Remote, now time.Time) (*Repo, *database.Store) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	store := database.NewStore(db, log)
	return New(remote, store, fixedClock{now: now}, log), store
}

func TestMarketListRefreshOnSuccess(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	remote := &fakeRemote{
		listFn: func(int) ([]models.CoinSnapshot, error) {
			return []models.CoinSnapshot{snapshot("bitcoin", "54000", 0), snapshot("ethereum", "3000", 0)}, nil
		},
	}
	repo, store := newTestRepo(t, remote, now)

	env, err := repo.MarketList(context.Background())
	require.NoError(t, err)
	assert.False(t, env.FromCache)
	assert.Equal(t, now.UnixMilli(), env.LastUpdatedMs)
	require.Len(t, env.Data, 2)

	// The store was refreshed before the call resolved.
	cached, err := store.GetCoins(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, now.UnixMilli(), cached[0].LastUpdatedMs)
}

func TestMarketListFallsBackToCache(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	remote := &fakeRemote{
		listFn: func(int) ([]models.CoinSnapshot, error) { return nil, errRemoteDown },
	}
	repo, store := newTestRepo(t, remote, now)

	seedTs := now.Add(-time.Hour).UnixMilli()
	require.NoError(t, store.UpsertCoins(context.Background(),
		[]models.CoinSnapshot{snapshot("bitcoin", "53000", seedTs)}))

	env, err := repo.MarketList(context.Background())
	require.NoError(t, err)
	assert.True(t, env.FromCache)
	assert.Equal(t, seedTs, env.LastUpdatedMs, "lastUpdated is the store's max timestamp")
	require.Len(t, env.Data, 1)
	assert.True(t, env.Data[0].CurrentPrice.Equal(dec("53000")))
}

func TestMarketListEmptyCachePreservesRemoteError(t *testing.T) {
	remote := &fakeRemote{
		listFn: func(int) ([]models.CoinSnapshot, error) { return nil, errRemoteDown },
	}
	repo, _ := newTestRepo(t, remote, time.Now())

	_, err := repo.MarketList(context.Background())
	require.Error(t, err)
	assert.Same(t, errRemoteDown, err, "original remote error must surface unwrapped")
}

func TestCoinByIDNotFoundWithCachedRow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	remote := &fakeRemote{
		coinFn: func(string) (*models.CoinSnapshot, error) { return nil, coingecko.ErrNotFound },
	}
	repo, store := newTestRepo(t, remote, now)

	seedTs := now.Add(-time.Minute).UnixMilli()
	require.NoError(t, store.UpsertCoins(context.Background(),
		[]models.CoinSnapshot{snapshot("delisted-coin", "0.02", seedTs)}))

	env, err := repo.CoinByID(context.Background(), "delisted-coin")
	require.NoError(t, err, "remote not-found with a cached row is a fallback success")
	assert.True(t, env.FromCache)
	assert.Equal(t, seedTs, env.LastUpdatedMs)
	assert.Equal(t, "delisted-coin", env.Data.ID)
}

func TestCoinByIDNotFoundAnywhere(t *testing.T) {
	remote := &fakeRemote{
		coinFn: func(string) (*models.CoinSnapshot, error) { return nil, coingecko.ErrNotFound },
	}
	repo, _ := newTestRepo(t, remote, time.Now())

	_, err := repo.CoinByID(context.Background(), "no-such-coin")
	require.ErrorIs(t, err, coingecko.ErrNotFound)
	assert.EqualError(t, err, "coin not found")
}

func TestCoinDetailRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	supply := decimal.NewNullDecimal(dec("19500000"))
	detail := &models.CoinDetailSnapshot{
		ID:                "bitcoin",
		Symbol:            "BTC",
		Name:              "Bitcoin",
		CurrentPrice:      dec("54000"),
		Change24h:         dec("2.0"),
		MarketCapUSD:      dec("1050000000000"),
		TotalVolumeUSD:    dec("35000000000"),
		CirculatingSupply: supply,
		AllTimeHighUSD:    dec("69045"),
		AllTimeHighDate:   "2021-11-10T14:24:11.849Z",
		AllTimeLowUSD:     dec("67.81"),
		AllTimeLowDate:    "2013-07-06T00:00:00.000Z",
	}

	calls := 0
	remote := &fakeRemote{
		detailFn: func(string) (*models.CoinDetailSnapshot, error) {
			calls++
			if calls == 1 {
				d := *detail
				return &d, nil
			}
			return nil, errRemoteDown
		},
	}
	repo, _ := newTestRepo(t, remote, now)

	fresh, err := repo.CoinDetail(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.False(t, fresh.FromCache)

	// Second call: remote is down, the persisted detail comes back intact.
	cached, err := repo.CoinDetail(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, "Bitcoin", cached.Data.Name)
	assert.True(t, cached.Data.CurrentPrice.Equal(dec("54000")))
	require.True(t, cached.Data.CirculatingSupply.Valid)
	assert.True(t, cached.Data.CirculatingSupply.Decimal.Equal(dec("19500000")))
	assert.False(t, cached.Data.MaxSupply.Valid, "absent supply stays null through the cache")
}

func TestPriceHistoryFallback(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	series := []models.PricePoint{
		{TimestampMs: 1, PriceUSD: dec("52000.12345678")},
		{TimestampMs: 2, PriceUSD: dec("54000")},
	}

	calls := 0
	remote := &fakeRemote{
		histFn: func(string, int) ([]models.PricePoint, error) {
			calls++
			if calls == 1 {
				return series, nil
			}
			return nil, errRemoteDown
		},
	}
	repo, _ := newTestRepo(t, remote, now)

	fresh, err := repo.PriceHistory(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	assert.False(t, fresh.FromCache)

	cached, err := repo.PriceHistory(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, now.UnixMilli(), cached.LastUpdatedMs)
	require.Len(t, cached.Data, 2)
	assert.True(t, cached.Data[0].PriceUSD.Equal(dec("52000.12345678")))

	// A different window is a different cache entry.
	_, err = repo.PriceHistory(context.Background(), "bitcoin", 30)
	assert.Same(t, errRemoteDown, err)
}

func TestQuotesPartialBatchFallback(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	remote := &fakeRemote{
		quotesFn: func([]string) (map[string]models.PriceQuote, error) { return nil, errRemoteDown },
	}
	repo, store := newTestRepo(t, remote, now)

	seedTs := now.Add(-2 * time.Hour).UnixMilli()
	require.NoError(t, store.UpsertCoins(context.Background(), []models.CoinSnapshot{
		snapshot("bitcoin", "53000", seedTs),
		snapshot("ethereum", "2900", seedTs+1000),
	}))

	env, err := repo.Quotes(context.Background(), []string{"bitcoin", "ethereum", "dogecoin"})
	require.NoError(t, err, "partial cache hits are success, not failure")
	assert.True(t, env.FromCache)
	assert.Equal(t, seedTs+1000, env.LastUpdatedMs)

	require.Len(t, env.Data, 2)
	assert.Contains(t, env.Data, "bitcoin")
	assert.Contains(t, env.Data, "ethereum")
	assert.NotContains(t, env.Data, "dogecoin", "uncached ids are omitted, never synthesized")
	assert.True(t, env.Data["bitcoin"].USD.Equal(dec("53000")))
}

func TestQuotesAllMissingPreservesRemoteError(t *testing.T) {
	remote := &fakeRemote{
		quotesFn: func([]string) (map[string]models.PriceQuote, error) { return nil, errRemoteDown },
	}
	repo, _ := newTestRepo(t, remote, time.Now())

	_, err := repo.Quotes(context.Background(), []string{"dogecoin"})
	assert.Same(t, errRemoteDown, err)
}

func TestQuotesEmptyBatchShortCircuit(t *testing.T) {
	remote := &fakeRemote{
		quotesFn: func([]string) (map[string]models.PriceQuote, error) {
			t.Fatal("remote must not be contacted for an empty batch")
			return nil, nil
		},
	}
	repo, _ := newTestRepo(t, remote, time.Now())

	env, err := repo.Quotes(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Data)
	assert.False(t, env.FromCache)
	assert.Zero(t, remote.quoteCalls)
}

func TestQuotesRefreshUpdatesCachedPrices(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	remote := &fakeRemote{
		quotesFn: func([]string) (map[string]models.PriceQuote, error) {
			return map[string]models.PriceQuote{
				"bitcoin": {USD: dec("55000"), USD24hChange: dec("3.3")},
			}, nil
		},
	}
	repo, store := newTestRepo(t, remote, now)

	staleTs := now.Add(-time.Hour).UnixMilli()
	require.NoError(t, store.UpsertCoins(context.Background(),
		[]models.CoinSnapshot{snapshot("bitcoin", "53000", staleTs)}))

	env, err := repo.Quotes(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.False(t, env.FromCache)

	coin, err := store.GetCoinByID(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, coin)
	assert.True(t, coin.CurrentPrice.Equal(dec("55000")), "fresh quotes refresh the cached price")
	assert.Equal(t, now.UnixMilli(), coin.LastUpdatedMs)
}
