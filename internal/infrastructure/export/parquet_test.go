package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain/entity/marketdata"
)

func TestWriteAndReadTrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "btcusdt.parquet")
	trades := []marketdata.Trade{
		{Symbol: "btcusdt", TimestampMs: 1_700_000_000_000, Price: 35000.5, Quantity: 0.25, Side: marketdata.SideBuy},
		{Symbol: "btcusdt", TimestampMs: 1_700_000_000_250, Price: 35000.0, Quantity: 1.5, Side: marketdata.SideSell},
	}

	require.NoError(t, WriteTrades(path, trades))

	got, err := ReadTrades(path)
	require.NoError(t, err)
	assert.Equal(t, trades, got)
}

func TestReadTradesMissingFile(t *testing.T) {
	_, err := ReadTrades(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
}
