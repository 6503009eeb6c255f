package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DSN", "postgres://localhost/orderflow")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL())
	assert.Equal(t, "orderflow.trades", cfg.RabbitMQ.TradesExchange)
	assert.Equal(t, 120*time.Second, cfg.Session.Window)
	assert.Equal(t, 5*time.Second, cfg.Session.BucketSize)
	assert.Equal(t, 24, cfg.Retention.Hours)
	assert.Equal(t, 50_000, cfg.Retention.BatchSize)
	assert.Equal(t, "@hourly", cfg.Retention.Schedule)
	tick, ok := cfg.Symbols.TickSize("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 0.1, tick)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DSN", "")
	_, err := Load()
	assert.EqualError(t, err, "DATABASE_DSN is required")
}

func TestLoadWrapsParseErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_DSN", "postgres://localhost/orderflow")
	t.Setenv("SESSION_WINDOW", "two minutes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse SESSION_WINDOW")
}

func TestLoadReadsDotEnvAndLists(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_DSN=postgres://from-dotenv\nHTTP_PORT=9090\n"), 0o600))
	t.Setenv("FEED_SYMBOLS", " BTCUSDT, ethusdt ,,")
	t.Setenv("SYMBOL_ALLOWLIST", "*usdt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-dotenv", cfg.Postgres.DSN)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"btcusdt", "ethusdt"}, cfg.FeedSymbols)
	assert.Equal(t, []string{"*usdt"}, cfg.SymbolAllowlist)
}

func TestParseCatalogue(t *testing.T) {
	cat, err := ParseCatalogue([]byte(`
default_tick_size: 0.001
symbols:
  - symbol: " ETHUSDT "
    tick_size: 0.01
  - symbol: btcusdt
    tick_size: 0.1
`))
	require.NoError(t, err)
	assert.Equal(t, 0.001, cat.DefaultTickSize)
	tick, ok := cat.TickSize("ethusdt")
	assert.True(t, ok)
	assert.Equal(t, 0.01, tick)
	_, ok = cat.TickSize("dogeusdt")
	assert.False(t, ok)

	_, err = ParseCatalogue([]byte("symbols:\n  - symbol: x\n    tick_size: 0\n"))
	assert.Error(t, err)
	_, err = ParseCatalogue([]byte("symbols:\n  - symbol: x\n    tick_size: 1\n  - symbol: X\n    tick_size: 2\n"))
	assert.ErrorContains(t, err, "duplicate")
}
