package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "orderflow/internal/domain/entity/instruments"
)

func TestSymbolModelRoundTrip(t *testing.T) {
	row := NewSymbolModel(domain.Instrument{
		Symbol:     " BTCUSDT ",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		TickSize:   0.1,
		Source:     domain.TickSourceExchange,
	})
	assert.Equal(t, "btcusdt", row.Symbol)
	assert.Equal(t, "symbols", row.TableName())

	got := row.ToDomain()
	assert.Equal(t, "btcusdt", got.Symbol)
	assert.Equal(t, 0.1, got.TickSize)
	assert.Equal(t, domain.TickSourceExchange, got.Source)
}

func TestSymbolModelUnknownSource(t *testing.T) {
	row := SymbolModel{Symbol: "ethusdt", TickSize: 0.01, Source: "manual"}
	assert.Equal(t, domain.TickSourceDatabase, row.ToDomain().Source)
}
