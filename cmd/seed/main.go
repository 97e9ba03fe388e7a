// Seeds the holdings ledger with a few sample purchase lots, for demoing the
// portfolio endpoints against a fresh database.
package main

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hodler/internal/database"
	"hodler/internal/models"
)

func main() {
	logger := logrus.New()

	dbPath := os.Getenv("HODLER_DB")
	if dbPath == "" {
		dbPath = "hodler.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	ledger := database.NewLedger(db, logger)
	now := time.Now()

	samples := []models.Holding{
		{
			CoinID:         "bitcoin",
			CoinSymbol:     "BTC",
			CoinName:       "Bitcoin",
			Amount:         decimal.RequireFromString("0.5"),
			PurchasePrice:  decimal.RequireFromString("45000"),
			PurchaseDateMs: now.AddDate(0, -3, 0).UnixMilli(),
		},
		{
			CoinID:         "bitcoin",
			CoinSymbol:     "BTC",
			CoinName:       "Bitcoin",
			Amount:         decimal.RequireFromString("0.3"),
			PurchasePrice:  decimal.RequireFromString("55000"),
			PurchaseDateMs: now.AddDate(0, -1, 0).UnixMilli(),
		},
		{
			CoinID:         "ethereum",
			CoinSymbol:     "ETH",
			CoinName:       "Ethereum",
			Amount:         decimal.RequireFromString("4.25"),
			PurchasePrice:  decimal.RequireFromString("2800.50"),
			PurchaseDateMs: now.AddDate(0, -2, 0).UnixMilli(),
		},
	}

	ctx := context.Background()
	for _, h := range samples {
		id, err := ledger.Insert(ctx, h)
		if err != nil {
			logger.Fatalf("insert %s failed: %v", h.CoinID, err)
		}
		logger.Infof("seeded holding %d: %s %s @ %s", id, h.Amount, h.CoinSymbol, h.PurchasePrice)
	}
}
