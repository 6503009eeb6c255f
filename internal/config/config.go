package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnv             = "development"
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 8080
	defaultRedisDB         = 0
	defaultCacheTTLSeconds = 30

	defaultTradesExchange = "orderflow.trades"
	defaultPrefetch       = 50
	defaultBatchSize      = 500
	defaultBatchTimeout   = 5 * time.Second

	defaultBinanceWSURL   = "wss://stream.binance.com:9443/ws"
	defaultBinanceRESTURL = "https://api.binance.com"
	defaultBinanceRPS     = 5

	defaultSessionWindow       = 120 * time.Second
	defaultSessionBucket       = 5 * time.Second
	defaultSessionPush         = time.Second
	defaultLargeTradeThreshold = 5
	defaultSessionMaxTrades    = 50_000

	defaultRetentionHours    = 24
	defaultRetentionBatch    = 50_000
	defaultRetentionSchedule = "@hourly"

	defaultLogLevel = "info"
)

// Config keeps the runtime configuration for the service.
type Config struct {
	Env             string
	HTTP            HTTPConfig
	Postgres        PostgresConfig
	Redis           RedisConfig
	Cache           CacheConfig
	RabbitMQ        RabbitMQConfig
	Binance         BinanceConfig
	Session         SessionConfig
	Retention       RetentionConfig
	Log             LogConfig
	FeedSymbols     []string
	SymbolAllowlist []string
	Symbols         Catalogue
}

// HTTPConfig holds HTTP server related settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RedisConfig stores Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig stores cache behavior.
type CacheConfig struct {
	TTLSeconds int
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RabbitMQConfig configures the trade consumer. An empty URL disables it.
type RabbitMQConfig struct {
	URL            string
	TradesExchange string
	Prefetch       int
	BatchSize      int
	BatchTimeout   time.Duration
}

type BinanceConfig struct {
	WSBaseURL         string
	RESTBaseURL       string
	RequestsPerSecond int
}

// SessionConfig holds defaults for streaming sessions.
type SessionConfig struct {
	Window              time.Duration
	BucketSize          time.Duration
	PushInterval        time.Duration
	LargeTradeThreshold float64
	MaxTrades           int
}

type RetentionConfig struct {
	Hours     int
	BatchSize int
	Schedule  string
}

type LogConfig struct {
	Level string
	File  string
}

// Load builds Config from environment variables, reading .env first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	host := getString("HTTP_HOST", defaultHTTPHost)
	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return nil, fmt.Errorf("parse HTTP_PORT: %w", err)
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}

	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	cacheTTL, err := getInt("CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("parse CACHE_TTL_SECONDS: %w", err)
	}

	rabbit, err := loadRabbitMQ()
	if err != nil {
		return nil, err
	}

	rps, err := getInt("BINANCE_REQUESTS_PER_SECOND", defaultBinanceRPS)
	if err != nil {
		return nil, fmt.Errorf("parse BINANCE_REQUESTS_PER_SECOND: %w", err)
	}

	session, err := loadSession()
	if err != nil {
		return nil, err
	}

	retention, err := loadRetention()
	if err != nil {
		return nil, err
	}

	catalogue := DefaultCatalogue()
	if path := os.Getenv("SYMBOLS_FILE"); path != "" {
		catalogue, err = LoadCatalogue(path)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		Env:  getString("APP_ENV", defaultEnv),
		HTTP: HTTPConfig{Host: host, Port: port},
		Postgres: PostgresConfig{
			DSN: dsn,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			TTLSeconds: cacheTTL,
		},
		RabbitMQ: rabbit,
		Binance: BinanceConfig{
			WSBaseURL:         getString("BINANCE_WS_URL", defaultBinanceWSURL),
			RESTBaseURL:       getString("BINANCE_REST_URL", defaultBinanceRESTURL),
			RequestsPerSecond: rps,
		},
		Session:   session,
		Retention: retention,
		Log: LogConfig{
			Level: getString("LOG_LEVEL", defaultLogLevel),
			File:  os.Getenv("LOG_FILE"),
		},
		FeedSymbols:     getList("FEED_SYMBOLS"),
		SymbolAllowlist: getList("SYMBOL_ALLOWLIST"),
		Symbols:         catalogue,
	}, nil
}

func loadRabbitMQ() (RabbitMQConfig, error) {
	prefetch, err := getInt("RABBITMQ_PREFETCH", defaultPrefetch)
	if err != nil {
		return RabbitMQConfig{}, fmt.Errorf("parse RABBITMQ_PREFETCH: %w", err)
	}
	batchSize, err := getInt("RABBITMQ_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		return RabbitMQConfig{}, fmt.Errorf("parse RABBITMQ_BATCH_SIZE: %w", err)
	}
	batchTimeout, err := getDuration("RABBITMQ_BATCH_TIMEOUT", defaultBatchTimeout)
	if err != nil {
		return RabbitMQConfig{}, fmt.Errorf("parse RABBITMQ_BATCH_TIMEOUT: %w", err)
	}
	return RabbitMQConfig{
		URL:            os.Getenv("RABBITMQ_URL"),
		TradesExchange: getString("RABBITMQ_TRADES_EXCHANGE", defaultTradesExchange),
		Prefetch:       prefetch,
		BatchSize:      batchSize,
		BatchTimeout:   batchTimeout,
	}, nil
}

func loadSession() (SessionConfig, error) {
	window, err := getDuration("SESSION_WINDOW", defaultSessionWindow)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("parse SESSION_WINDOW: %w", err)
	}
	bucket, err := getDuration("SESSION_BUCKET", defaultSessionBucket)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("parse SESSION_BUCKET: %w", err)
	}
	push, err := getDuration("SESSION_PUSH_INTERVAL", defaultSessionPush)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("parse SESSION_PUSH_INTERVAL: %w", err)
	}
	threshold, err := getFloat("LARGE_TRADE_THRESHOLD", defaultLargeTradeThreshold)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("parse LARGE_TRADE_THRESHOLD: %w", err)
	}
	maxTrades, err := getInt("SESSION_MAX_TRADES", defaultSessionMaxTrades)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("parse SESSION_MAX_TRADES: %w", err)
	}
	return SessionConfig{
		Window:              window,
		BucketSize:          bucket,
		PushInterval:        push,
		LargeTradeThreshold: threshold,
		MaxTrades:           maxTrades,
	}, nil
}

func loadRetention() (RetentionConfig, error) {
	hours, err := getInt("ORDERFLOW_RETENTION_HOURS", defaultRetentionHours)
	if err != nil {
		return RetentionConfig{}, fmt.Errorf("parse ORDERFLOW_RETENTION_HOURS: %w", err)
	}
	batch, err := getInt("RETENTION_BATCH_SIZE", defaultRetentionBatch)
	if err != nil {
		return RetentionConfig{}, fmt.Errorf("parse RETENTION_BATCH_SIZE: %w", err)
	}
	return RetentionConfig{
		Hours:     hours,
		BatchSize: batch,
		Schedule:  getString("RETENTION_CRON", defaultRetentionSchedule),
	}, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to float: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

// getList splits a comma separated variable, dropping blanks and lowercasing entries.
func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
