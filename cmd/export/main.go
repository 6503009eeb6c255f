package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"orderflow/internal/config"
	"orderflow/internal/domain/entity/instruments"
	"orderflow/internal/infrastructure/export"
	inframarketdata "orderflow/internal/infrastructure/marketdata"
)

const maxExportTrades = 5_000_000

func main() {
	symbol := flag.String("symbol", "btcusdt", "symbol to export")
	window := flag.Duration("window", time.Hour, "lookback from now")
	out := flag.String("out", "trades.parquet", "output parquet file")
	limit := flag.Int("limit", 1_000_000, "maximum trades to export")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	repo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init trades repo: %v", err)
	}
	defer repo.Close()

	sym := instruments.NormalizeSymbol(*symbol)
	since := time.Now().Add(-*window).UTC()
	n := min(max(*limit, 1), maxExportTrades)

	trades, err := repo.GetTradesSince(ctx, sym, since, n)
	if err != nil {
		logger.Fatalf("load trades: %v", err)
	}
	if err := export.WriteTrades(*out, trades); err != nil {
		logger.Fatalf("export trades: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"symbol": sym,
		"since":  since,
		"trades": len(trades),
		"out":    *out,
	}).Info("export finished")
}
