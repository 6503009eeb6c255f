package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"orderflow/internal/config"
	domain "orderflow/internal/domain/entity/instruments"
	"orderflow/internal/infrastructure/binance"
	infrainstruments "orderflow/internal/infrastructure/instruments"
	"orderflow/internal/infrastructure/migrations"
)

const defaultBinanceRESTURL = "https://api.binance.com"

type dataConfig struct {
	DatabaseDSN      string
	RESTBaseURL      string
	Symbols          []string
	Catalogue        config.Catalogue
	IncludeCatalogue bool
	RunMigrations    bool
}

// instrumentFetcher loads symbol metadata from the exchange.
type instrumentFetcher interface {
	FetchInstrument(ctx context.Context, symbol string) (domain.Instrument, error)
}

// instrumentStore persists resolved instruments.
type instrumentStore interface {
	UpsertInstrument(ctx context.Context, instrument *domain.Instrument) error
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	if cfg.RunMigrations {
		migrator, err := migrations.NewMigrator(cfg.DatabaseDSN, logger)
		if err != nil {
			logger.Fatalf("init migrations: %v", err)
		}
		if err := migrator.Up(); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
		_ = migrator.Close()
	}

	repo, err := infrainstruments.NewRepository(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer repo.Close()

	client := binance.NewClient(config.BinanceConfig{RESTBaseURL: cfg.RESTBaseURL}, logger)

	symbols := cfg.Symbols
	if cfg.IncludeCatalogue {
		symbols = mergeSymbols(symbols, cfg.Catalogue)
	}
	if len(symbols) == 0 {
		logger.Fatal("no symbols to sync")
	}

	synced, fallback, err := syncSymbols(ctx, symbols, client, repo, cfg.Catalogue, logger)
	if err != nil {
		logger.Fatalf("sync symbols: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"symbols":  len(symbols),
		"exchange": synced,
		"fallback": fallback,
	}).Info("reference data sync finished")
}

func loadConfig() (*dataConfig, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	catalogue := config.DefaultCatalogue()
	if path := envOrDefault("SYMBOLS_FILE", ""); path != "" {
		var err error
		catalogue, err = config.LoadCatalogue(path)
		if err != nil {
			return nil, err
		}
	}

	var symbols []string
	for _, part := range strings.Split(os.Getenv("FEED_SYMBOLS"), ",") {
		if symbol := domain.NormalizeSymbol(part); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}

	return &dataConfig{
		DatabaseDSN:      dsn,
		RESTBaseURL:      envOrDefault("BINANCE_REST_URL", defaultBinanceRESTURL),
		Symbols:          symbols,
		Catalogue:        catalogue,
		IncludeCatalogue: boolEnv("SYNC_INCLUDE_CATALOGUE", true),
		RunMigrations:    boolEnv("RUN_MIGRATIONS", true),
	}, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolEnv(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// mergeSymbols returns the sorted union of symbols and the catalogue entries.
func mergeSymbols(symbols []string, catalogue config.Catalogue) []string {
	set := make(map[string]struct{}, len(symbols)+len(catalogue.Symbols))
	for _, s := range symbols {
		set[domain.NormalizeSymbol(s)] = struct{}{}
	}
	for _, entry := range catalogue.Symbols {
		set[domain.NormalizeSymbol(entry.Symbol)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// syncSymbols stores exchange metadata for every symbol. When the exchange fails, a
// catalogue tick size is stored instead; symbols with neither are skipped.
func syncSymbols(ctx context.Context, symbols []string, fetcher instrumentFetcher, store instrumentStore, catalogue config.Catalogue, logger *logrus.Logger) (synced, fallback int, err error) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return synced, fallback, ctx.Err()
		}
		log := logger.WithField("symbol", symbol)

		inst, fetchErr := fetcher.FetchInstrument(ctx, symbol)
		if fetchErr != nil {
			tick, ok := catalogue.TickSize(symbol)
			if !ok {
				log.WithError(fetchErr).Warn("skip symbol without exchange or catalogue data")
				continue
			}
			log.WithError(fetchErr).Warn("exchange lookup failed, using catalogue tick size")
			inst = domain.Instrument{Symbol: symbol, TickSize: tick, Source: domain.TickSourceCatalogue}
			fallback++
		} else {
			synced++
		}

		if err := store.UpsertInstrument(ctx, &inst); err != nil {
			return synced, fallback, fmt.Errorf("save %s: %w", symbol, err)
		}
		log.WithField("tick_size", inst.TickSize).Debug("symbol synced")
	}
	return synced, fallback, nil
}
