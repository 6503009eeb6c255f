package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	docs "orderflow/docs"
	appinstruments "orderflow/internal/application/service/instruments"
	"orderflow/internal/application/service/orderflow"
	"orderflow/internal/application/service/session"
	"orderflow/internal/cache"
	"orderflow/internal/config"
	"orderflow/internal/domain/entity/marketdata"
	"orderflow/internal/infrastructure/binance"
	"orderflow/internal/infrastructure/broker"
	infrainstruments "orderflow/internal/infrastructure/instruments"
	inframarketdata "orderflow/internal/infrastructure/marketdata"
	"orderflow/internal/infrastructure/migrations"
	"orderflow/internal/infrastructure/retention"
	infrahttp "orderflow/internal/interfaces/http"
	"orderflow/internal/logger"
	"orderflow/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLog := logrus.New()
	bootLog.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		bootLog.Fatalf("failed to init logger: %v", err)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()

	migrator, err := migrations.NewMigrator(cfg.Postgres.DSN, log)
	if err != nil {
		log.Fatalf("failed to init migrations: %v", err)
	}
	if err := migrator.Up(); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	if err := migrator.Close(); err != nil {
		log.WithError(err).Warn("close migrator")
	}

	tradeRepo, err := inframarketdata.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to init trades repo: %v", err)
	}
	defer tradeRepo.Close()

	instrumentRepo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to init instruments repo: %v", err)
	}

	m := metrics.New()

	var store cache.Store
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		store = cache.NewRedisStore(redisClient, "orderflow:")
	} else {
		memory := cache.NewMemoryStore(time.Minute)
		defer memory.Close()
		store = memory
	}
	valueCache := cache.New(store, log)
	valueCache.OnLookup(m.CacheLookup)

	exchange := binance.NewClient(cfg.Binance, log)

	instrumentService := appinstruments.NewService(instrumentRepo, exchange, cfg.Symbols, cfg.Symbols.DefaultTickSize, valueCache, log)
	defer instrumentService.Close()

	allowlist, err := orderflow.NewAllowlist(cfg.SymbolAllowlist)
	if err != nil {
		log.Fatalf("invalid SYMBOL_ALLOWLIST: %v", err)
	}

	hub := session.NewHub()
	orderflowService := orderflow.NewService(orderflow.Dependencies{
		Trades:    tradeRepo,
		History:   exchange,
		Ticks:     instrumentService,
		Hub:       hub,
		Cache:     valueCache,
		CacheTTL:  cfg.Cache.TTL(),
		Allowlist: allowlist,
		Metrics:   m,
		Logger:    log,
	})

	writer := broker.NewBatchWriter(broker.BatchConfig{
		Size:    cfg.RabbitMQ.BatchSize,
		Timeout: cfg.RabbitMQ.BatchTimeout,
	}, tradeRepo, log, m)

	retentionJob, err := retention.NewJob(cfg.Retention, tradeRepo, log, m)
	if err != nil {
		log.Fatalf("failed to init retention: %v", err)
	}

	handler := infrahttp.NewHandler(infrahttp.Dependencies{
		Orderflow:     orderflowService,
		Instruments:   instrumentService,
		ResponseCache: store,
		CacheTTL:      cfg.Cache.TTL(),
		Session:       cfg.Session,
		Metrics:       m,
		Logger:        log,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return writer.Run(gctx)
	})

	if cfg.RabbitMQ.URL != "" {
		consumer, err := broker.NewConsumer(cfg.RabbitMQ, log, m, writer, broker.SinkFunc(hub.Publish))
		if err != nil {
			log.Fatalf("failed to init consumer: %v", err)
		}
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	for _, symbol := range cfg.FeedSymbols {
		if !orderflowService.Allowed(symbol) {
			log.WithField("symbol", symbol).Warn("feed symbol rejected by allowlist")
			continue
		}
		g.Go(func() error {
			return exchange.Stream(gctx, symbol, func(trade marketdata.Trade) {
				m.TradesIngested("binance", 1, 0)
				writer.Add(trade)
				hub.Publish(trade)
			})
		})
	}

	g.Go(func() error {
		return retentionJob.Run(gctx)
	})

	g.Go(func() error {
		log.WithField("addr", cfg.HTTP.Addr()).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown error")
		}
		if err := writer.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("flush pending trades")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("server stopped with error")
	}
	log.Info("server stopped")
}
