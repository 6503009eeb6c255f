package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"orderflow/internal/domain/entity/marketdata"
)

func TestHubRoutesBySymbol(t *testing.T) {
	hub := NewHub()
	btc := New(Config{Symbol: "btcusdt", Window: time.Minute})
	eth := New(Config{Symbol: "ethusdt", Window: time.Minute})
	unsubBTC := hub.Subscribe(btc)
	hub.Subscribe(eth)
	assert.Equal(t, 2, hub.Count())
	assert.ElementsMatch(t, []string{"btcusdt", "ethusdt"}, hub.Symbols())

	hub.Publish(
		marketdata.Trade{Symbol: "BTCUSDT", TimestampMs: 1_000, Price: 1, Quantity: 1, Side: marketdata.SideBuy},
		marketdata.Trade{Symbol: "ethusdt", TimestampMs: 1_000, Price: 2, Quantity: 1, Side: marketdata.SideSell},
		marketdata.Trade{Symbol: "solusdt", TimestampMs: 1_000, Price: 3, Quantity: 1, Side: marketdata.SideSell},
	)
	assert.Equal(t, 1, btc.Len())
	assert.Equal(t, 1, eth.Len())

	unsubBTC()
	unsubBTC()
	assert.Equal(t, 1, hub.Count())
	hub.Publish(marketdata.Trade{Symbol: "btcusdt", TimestampMs: 2_000, Price: 1, Quantity: 1, Side: marketdata.SideBuy})
	assert.Equal(t, 1, btc.Len())
}
