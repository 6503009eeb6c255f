package footprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain/entity/marketdata"
)

func TestStatsEmpty(t *testing.T) {
	stats := Stats("btcusdt", 900, nil, 0)
	assert.Nil(t, stats.VWAP)
	assert.Nil(t, stats.LargestCluster)
	assert.Zero(t, stats.TradeCount)
}

func TestStats(t *testing.T) {
	trades := []marketdata.Trade{
		trade(10_000, 100, 1, marketdata.SideBuy),
		trade(50_000, 110, 1, marketdata.SideSell),
		trade(70_000, 105, 2, marketdata.SideBuy),
		trade(130_000, 90, 2, marketdata.SideSell),
	}
	stats := Stats("btcusdt", 900, trades, 0)
	assert.Equal(t, 4, stats.TradeCount)
	assert.Equal(t, 3.0, stats.BuyVolume)
	assert.Equal(t, 3.0, stats.SellVolume)
	assert.Zero(t, stats.NetDelta)
	require.NotNil(t, stats.VWAP)
	assert.InDelta(t, (100+110+210+180)/6.0, *stats.VWAP, 1e-9)

	require.NotNil(t, stats.LargestCluster)
	assert.Equal(t, int64(0), stats.LargestCluster.StartTimestamp, "earliest cluster wins ties")
	assert.Equal(t, int64(60_000), stats.LargestCluster.EndTimestamp)
	assert.Equal(t, 2, stats.LargestCluster.TradeCount)
}

func TestFilterAndDedupe(t *testing.T) {
	trades := []marketdata.Trade{
		trade(3, 1, 5, marketdata.SideBuy),
		trade(1, 1, 0.1, marketdata.SideSell),
		trade(3, 1, 5, marketdata.SideBuy),
		trade(2, 1, 1, marketdata.SideBuy),
	}
	assert.Len(t, Filter(trades, 1), 3)
	assert.Len(t, Filter(trades, 0), 4)

	deduped := Dedupe(trades)
	require.Len(t, deduped, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{deduped[0].TimestampMs, deduped[1].TimestampMs, deduped[2].TimestampMs})
}
