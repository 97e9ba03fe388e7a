package database

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hodler/internal/models"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func coin(id string, rank int64, price string, tsMs int64) models.CoinSnapshot {
	return models.CoinSnapshot{
		ID:            id,
		Symbol:        id,
		Name:          id,
		CurrentPrice:  dec(price),
		Change24h:     dec("-0.5"),
		MarketCap:     dec("42000000"),
		MarketCapRank: rank,
		LastUpdatedMs: tsMs,
	}
}

func TestUpsertCoinsReplacesByID(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{coin("bitcoin", 1, "50000", 100)}))
	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{coin("bitcoin", 1, "54000", 200)}))

	coins, err := store.GetCoins(ctx)
	require.NoError(t, err)
	require.Len(t, coins, 1, "upsert replaces, never duplicates")
	assert.True(t, coins[0].CurrentPrice.Equal(dec("54000")))
	assert.Equal(t, int64(200), coins[0].LastUpdatedMs)
}

func TestGetCoinsOrderedByRank(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{
		coin("ethereum", 2, "3000", 100),
		coin("bitcoin", 1, "54000", 100),
		coin("tether", 3, "1", 100),
	}))

	coins, err := store.GetCoins(ctx)
	require.NoError(t, err)
	require.Len(t, coins, 3)
	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.Equal(t, "ethereum", coins[1].ID)
	assert.Equal(t, "tether", coins[2].ID)
}

func TestGetCoinByIDMissing(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())

	c, err := store.GetCoinByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGetCoinsByIDsIntersection(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{
		coin("bitcoin", 1, "54000", 100),
		coin("ethereum", 2, "3000", 100),
	}))

	coins, err := store.GetCoinsByIDs(ctx, []string{"bitcoin", "dogecoin"})
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "bitcoin", coins[0].ID)

	empty, err := store.GetCoinsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMaxCoinTimestamp(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	_, ok, err := store.MaxCoinTimestamp(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache has no max timestamp")

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{
		coin("bitcoin", 1, "54000", 300),
		coin("ethereum", 2, "3000", 500),
	}))

	ts, ok, err := store.MaxCoinTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), ts)
}

func TestUpdateCoinPrices(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{coin("bitcoin", 1, "50000", 100)}))

	quotes := map[string]models.PriceQuote{
		"bitcoin":  {USD: dec("55000"), USD24hChange: dec("4.2")},
		"dogecoin": {USD: dec("0.1")},
	}
	require.NoError(t, store.UpdateCoinPrices(ctx, quotes, 900))

	c, err := store.GetCoinByID(ctx, "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.CurrentPrice.Equal(dec("55000")))
	assert.True(t, c.Change24h.Equal(dec("4.2")))
	assert.Equal(t, int64(900), c.LastUpdatedMs)

	missing, err := store.GetCoinByID(ctx, "dogecoin")
	require.NoError(t, err)
	assert.Nil(t, missing, "quotes never synthesize snapshot rows")
}

func TestDeleteOlderThan(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	require.NoError(t, store.UpsertCoins(ctx, []models.CoinSnapshot{
		coin("old", 1, "1", 100),
		coin("fresh", 2, "2", 1000),
	}))
	require.NoError(t, store.UpsertPriceHistory(ctx, "old", 7,
		[]models.PricePoint{{TimestampMs: 1, PriceUSD: dec("1")}}, 100))

	n, err := store.DeleteOlderThan(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	coins, err := store.GetCoins(ctx)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "fresh", coins[0].ID)
}

func TestPriceHistoryRoundTrip(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	_, _, ok, err := store.GetPriceHistory(ctx, "bitcoin", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	series := []models.PricePoint{
		{TimestampMs: 1700000000000, PriceUSD: dec("52000.12345678")},
		{TimestampMs: 1700000060000, PriceUSD: dec("52113.9")},
	}
	require.NoError(t, store.UpsertPriceHistory(ctx, "bitcoin", 7, series, 4242))

	got, ts, ok, err := store.GetPriceHistory(ctx, "bitcoin", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4242), ts)
	require.Len(t, got, 2)
	assert.True(t, got[0].PriceUSD.Equal(dec("52000.12345678")))
	assert.Equal(t, int64(1700000060000), got[1].TimestampMs)
}

func TestCoinDetailNullSupplies(t *testing.T) {
	store := NewStore(setupDB(t), logrus.New())
	ctx := context.Background()

	d := models.CoinDetailSnapshot{
		ID:             "monero",
		Symbol:         "XMR",
		Name:           "Monero",
		CurrentPrice:   dec("160.25"),
		Change24h:      dec("1.1"),
		MarketCapUSD:   dec("2900000000"),
		TotalVolumeUSD: dec("90000000"),
		// Monero reports no max supply.
		CirculatingSupply: decimal.NewNullDecimal(dec("18400000")),
		AllTimeHighUSD:    dec("542.33"),
		AllTimeLowUSD:     dec("0.216177"),
		LastUpdatedMs:     1234,
	}
	require.NoError(t, store.UpsertCoinDetail(ctx, d))

	got, err := store.GetCoinDetailByID(ctx, "monero")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CirculatingSupply.Valid)
	assert.True(t, got.CirculatingSupply.Decimal.Equal(dec("18400000")))
	assert.False(t, got.TotalSupply.Valid)
	assert.False(t, got.MaxSupply.Valid)
}
