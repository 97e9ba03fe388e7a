package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hodler/internal/coingecko"
	"hodler/internal/database"
	"hodler/internal/handlers"
	"hodler/internal/portfolio"
	"hodler/internal/repository"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Load .env file if it exists, but don't fail if it's missing (e.g. in production)
	_ = godotenv.Load()

	dbPath := os.Getenv("HODLER_DB")
	if dbPath == "" {
		dbPath = "hodler.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	store := database.NewStore(db, logger)
	ledger := database.NewLedger(db, logger)

	timeout := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if iv, err := strconv.Atoi(v); err == nil && iv > 0 {
			timeout = time.Duration(iv) * time.Second
		}
	}
	remote := coingecko.NewClient(os.Getenv("COINGECKO_URL"), timeout, logger)

	clock := repository.SystemClock()
	repo := repository.New(remote, store, clock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retentionHours := 24 * 7
	if v := os.Getenv("CACHE_RETENTION_HOURS"); v != "" {
		if iv, err := strconv.Atoi(v); err == nil && iv > 0 {
			retentionHours = iv
		}
	}
	cutoff := clock.Now().Add(-time.Duration(retentionHours) * time.Hour).UnixMilli()
	if n, err := store.DeleteOlderThan(ctx, cutoff); err != nil {
		logger.Warnf("cache purge failed: %v", err)
	} else if n > 0 {
		logger.Infof("purged %d stale cache rows", n)
	}

	tracker := portfolio.NewTracker(ledger, repo, logger)
	go tracker.Run(ctx)

	h := handlers.NewHandler(repo, ledger, tracker, logger)

	rg := gin.Default()
	rg.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	h.Register(rg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Infof("server starting on :%s", port)
	rg.Run(fmt.Sprintf(":" + port))
}
