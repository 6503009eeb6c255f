package instruments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/cache"
	domain "orderflow/internal/domain/entity/instruments"
	interfaces "orderflow/internal/domain/interfaces"
)

type fakeRepo struct {
	mu       sync.Mutex
	items    map[string]domain.Instrument
	getErr   error
	upserted []domain.Instrument
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[string]domain.Instrument{}}
}

func (r *fakeRepo) GetInstrument(_ context.Context, symbol string) (*domain.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	item, ok := r.items[symbol]
	if !ok {
		return nil, interfaces.ErrInstrumentNotFound
	}
	return &item, nil
}

func (r *fakeRepo) UpsertInstrument(_ context.Context, instrument *domain.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[instrument.Symbol] = *instrument
	r.upserted = append(r.upserted, *instrument)
	return nil
}

func (r *fakeRepo) ListInstruments(context.Context) ([]domain.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Instrument, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, nil
}

func (r *fakeRepo) Close() {}

type fakeFetcher struct {
	ticks map[string]float64
	err   error
	calls int
}

func (f *fakeFetcher) FetchTickSize(_ context.Context, symbol string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	tick, ok := f.ticks[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return tick, nil
}

type staticCatalogue map[string]float64

func (c staticCatalogue) TickSize(symbol string) (float64, bool) {
	tick, ok := c[symbol]
	return tick, ok
}

func TestResolvePrefersRepository(t *testing.T) {
	repo := newFakeRepo()
	repo.items["btcusdt"] = domain.Instrument{Symbol: "btcusdt", TickSize: 0.5, Source: domain.TickSourceDatabase}
	fetcher := &fakeFetcher{ticks: map[string]float64{"btcusdt": 0.01}}

	svc := NewService(repo, fetcher, nil, 0, nil, nil)
	got := svc.Resolve(context.Background(), " BTCUSDT ")

	assert.Equal(t, 0.5, got.TickSize)
	assert.Equal(t, domain.TickSourceDatabase, got.Source)
	assert.Zero(t, fetcher.calls)
}

func TestResolveFallsBackToExchangeAndStores(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{ticks: map[string]float64{"ethusdt": 0.01}}
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()

	svc := NewService(repo, fetcher, staticCatalogue{"ethusdt": 0.05}, 0, cache.New(store, nil), nil)
	got := svc.Resolve(context.Background(), "ethusdt")

	assert.Equal(t, 0.01, got.TickSize)
	assert.Equal(t, domain.TickSourceExchange, got.Source)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, domain.TickSourceExchange, repo.upserted[0].Source)
}

func TestResolveExchangeIsCached(t *testing.T) {
	fetcher := &fakeFetcher{ticks: map[string]float64{"solusdt": 0.001}}
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()

	svc := NewService(nil, fetcher, nil, 0, cache.New(store, nil), nil)
	assert.Equal(t, 0.001, svc.TickSize(context.Background(), "solusdt"))
	assert.Equal(t, 0.001, svc.TickSize(context.Background(), "solusdt"))
	assert.Equal(t, 1, fetcher.calls)
}

func TestResolveCatalogueThenDefault(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("db down")
	fetcher := &fakeFetcher{err: errors.New("timeout")}

	svc := NewService(repo, fetcher, staticCatalogue{"btcusdt": 0.1}, 0.001, nil, nil)

	got := svc.Resolve(context.Background(), "btcusdt")
	assert.Equal(t, 0.1, got.TickSize)
	assert.Equal(t, domain.TickSourceCatalogue, got.Source)

	got = svc.Resolve(context.Background(), "dogeusdt")
	assert.Equal(t, 0.001, got.TickSize)
	assert.Equal(t, domain.TickSourceDefault, got.Source)
}

func TestResolveWithoutSources(t *testing.T) {
	svc := NewService(nil, nil, nil, 0, nil, nil)
	assert.Equal(t, DefaultTickSize, svc.TickSize(context.Background(), "xrpusdt"))

	list, err := svc.ListInstruments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, svc.UpsertInstrument(context.Background(), nil), ErrNilInstrument)
}
