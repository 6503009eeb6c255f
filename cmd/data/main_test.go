package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/config"
	domain "orderflow/internal/domain/entity/instruments"
)

type stubFetcher map[string]domain.Instrument

func (s stubFetcher) FetchInstrument(_ context.Context, symbol string) (domain.Instrument, error) {
	inst, ok := s[symbol]
	if !ok {
		return domain.Instrument{}, errors.New("unknown symbol")
	}
	return inst, nil
}

type memoryStore struct {
	saved map[string]domain.Instrument
	err   error
}

func (m *memoryStore) UpsertInstrument(_ context.Context, inst *domain.Instrument) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]domain.Instrument{}
	}
	m.saved[inst.Symbol] = *inst
	return nil
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSyncSymbolsUsesExchangeThenCatalogue(t *testing.T) {
	fetcher := stubFetcher{
		"ethusdt": {Symbol: "ethusdt", TickSize: 0.01, Source: domain.TickSourceExchange},
	}
	catalogue := config.Catalogue{DefaultTickSize: 0.01, Symbols: []config.SymbolSpec{{Symbol: "btcusdt", TickSize: 0.1}}}
	store := &memoryStore{}

	synced, fallback, err := syncSymbols(context.Background(), []string{"btcusdt", "ethusdt", "xyzusdt"}, fetcher, store, catalogue, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, fallback)

	require.Len(t, store.saved, 2)
	assert.Equal(t, domain.TickSourceExchange, store.saved["ethusdt"].Source)
	assert.Equal(t, 0.1, store.saved["btcusdt"].TickSize)
	assert.Equal(t, domain.TickSourceCatalogue, store.saved["btcusdt"].Source)
}

func TestSyncSymbolsStopsOnStoreError(t *testing.T) {
	fetcher := stubFetcher{"ethusdt": {Symbol: "ethusdt", TickSize: 0.01}}
	_, _, err := syncSymbols(context.Background(), []string{"ethusdt"}, fetcher, &memoryStore{err: errors.New("read only")}, config.Catalogue{}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save ethusdt")
}

func TestMergeSymbols(t *testing.T) {
	catalogue := config.Catalogue{Symbols: []config.SymbolSpec{{Symbol: "btcusdt", TickSize: 0.1}, {Symbol: "solusdt", TickSize: 0.01}}}
	assert.Equal(t, []string{"btcusdt", "ethusdt", "solusdt"}, mergeSymbols([]string{"ETHUSDT", "btcusdt"}, catalogue))
}
