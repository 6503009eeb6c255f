package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/application/service/session"
	"orderflow/internal/cache"
	"orderflow/internal/domain/entity/marketdata"
	interfaces "orderflow/internal/domain/interfaces"
	apperrors "orderflow/internal/errors"
)

type fakeTrades struct {
	mu      sync.Mutex
	trades  []marketdata.Trade
	addErr  error
	getErr  error
	queries int
}

func (f *fakeTrades) AddTrades(_ context.Context, trades []marketdata.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.trades = append(f.trades, trades...)
	return nil
}

func (f *fakeTrades) GetTradesSince(_ context.Context, symbol string, since time.Time, limit int) ([]marketdata.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []marketdata.Trade
	for _, t := range f.trades {
		if t.Symbol == symbol && t.TimestampMs >= since.UnixMilli() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTrades) PruneBefore(context.Context, time.Time, int) (int64, error) { return 0, nil }

func (f *fakeTrades) RecordRetentionRun(context.Context, interfaces.RetentionRun) error { return nil }

func (f *fakeTrades) Close() {}

type fakeHistory struct {
	trades []marketdata.Trade
	err    error
	calls  int
}

func (f *fakeHistory) FetchTrades(context.Context, string, time.Time, int) ([]marketdata.Trade, error) {
	f.calls++
	return f.trades, f.err
}

type fixedTicks float64

func (f fixedTicks) TickSize(context.Context, string) float64 { return float64(f) }

// now is 2023-11-14T22:13:20Z, aligned to the minute plus 20s.
var now = time.UnixMilli(1_700_000_000_000)

func tr(symbol string, ts int64, price, qty float64, side marketdata.Side) marketdata.Trade {
	return marketdata.Trade{Symbol: symbol, TimestampMs: ts, Price: price, Quantity: qty, Side: side}
}

func newService(repo *fakeTrades, deps Dependencies) *Service {
	deps.Trades = repo
	deps.Now = func() time.Time { return now }
	if deps.Ticks == nil {
		deps.Ticks = fixedTicks(0.1)
	}
	return NewService(deps)
}

func TestFootprintBuildsAlignedWindow(t *testing.T) {
	nowMs := now.UnixMilli()
	repo := &fakeTrades{trades: []marketdata.Trade{
		tr("btcusdt", nowMs-5_000, 100, 2, marketdata.SideBuy),
		tr("btcusdt", nowMs-61_000, 99, 1, marketdata.SideSell),
		tr("ethusdt", nowMs-5_000, 2000, 1, marketdata.SideBuy),
	}}
	svc := newService(repo, Dependencies{})

	bars, err := svc.Footprint(context.Background(), FootprintQuery{Symbol: "BTCUSDT", Timeframe: "1m", MaxBars: 3})
	require.NoError(t, err)
	require.Len(t, bars, 3)

	ref := (nowMs/60_000)*60_000 + 60_000
	assert.Equal(t, ref, bars[2].BucketEnd)
	assert.Equal(t, ref-180_000, bars[0].BucketStart)
	assert.Equal(t, 2.0, bars[2].BuyVolume)
	assert.Equal(t, 1.0, bars[1].SellVolume)
	assert.Nil(t, bars[0].Open)
}

func TestFootprintValidation(t *testing.T) {
	svc := newService(&fakeTrades{}, Dependencies{})

	_, err := svc.Footprint(context.Background(), FootprintQuery{Timeframe: "1m"})
	assert.ErrorIs(t, err, ErrMissingSymbol)

	_, err = svc.Footprint(context.Background(), FootprintQuery{Symbol: "btcusdt", Timeframe: "2m"})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnknownTimeframe))

	bad := -1.0
	_, err = svc.Footprint(context.Background(), FootprintQuery{Symbol: "btcusdt", Timeframe: "1m", PriceStep: &bad})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidStep))
}

func TestFootprintEmptyReturnsShells(t *testing.T) {
	svc := newService(&fakeTrades{}, Dependencies{})
	bars, err := svc.Footprint(context.Background(), FootprintQuery{Symbol: "btcusdt", Timeframe: "5m"})
	require.NoError(t, err)
	assert.Len(t, bars, DefaultMaxBars)
	for _, bar := range bars {
		assert.True(t, bar.Empty())
	}
}

func TestFootprintRepositoryFailure(t *testing.T) {
	svc := newService(&fakeTrades{getErr: errors.New("db down")}, Dependencies{})
	_, err := svc.Footprint(context.Background(), FootprintQuery{Symbol: "btcusdt", Timeframe: "1m"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestFootprintUsesCache(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()
	repo := &fakeTrades{}
	svc := newService(repo, Dependencies{Cache: cache.New(store, nil), CacheTTL: time.Minute})

	q := FootprintQuery{Symbol: "btcusdt", Timeframe: "1m", MaxBars: 10}
	_, err := svc.Footprint(context.Background(), q)
	require.NoError(t, err)
	_, err = svc.Footprint(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queries)
}

func TestClampMaxBars(t *testing.T) {
	assert.Equal(t, DefaultMaxBars, ClampMaxBars(0))
	assert.Equal(t, DefaultMaxBars, ClampMaxBars(-3))
	assert.Equal(t, 1, ClampMaxBars(1))
	assert.Equal(t, MaxBars, ClampMaxBars(10_000))
}

func raw(t *testing.T, items ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func TestIngestStoresValidAndPublishes(t *testing.T) {
	repo := &fakeTrades{}
	hub := session.NewHub()
	live := session.New(session.Config{Symbol: "btcusdt", Window: time.Hour})
	defer hub.Subscribe(live)()

	svc := newService(repo, Dependencies{Hub: hub})
	res, err := svc.Ingest(context.Background(), " BTCUSDT ", raw(t,
		map[string]any{"timestamp": 1000, "price": 100, "quantity": 1, "side": "buy"},
		map[string]any{"timestamp": 1001, "price": 100, "quantity": 1, "side": "BUY"},
		map[string]any{"timestamp": 1002, "price": -1, "quantity": 1, "side": "sell"},
		"garbage",
	))
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Inserted: 1, Dropped: 3}, res)
	require.Len(t, repo.trades, 1)
	assert.Equal(t, "btcusdt", repo.trades[0].Symbol)
	assert.Equal(t, 1, live.Len())
}

func TestIngestRejections(t *testing.T) {
	svc := newService(&fakeTrades{}, Dependencies{})

	_, err := svc.Ingest(context.Background(), "", raw(t, map[string]any{"timestamp": 1}))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = svc.Ingest(context.Background(), "btcusdt", nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	res, err := svc.Ingest(context.Background(), "btcusdt", raw(t, map[string]any{"timestamp": 1, "price": 1, "quantity": 1, "side": "hold"}))
	assert.ErrorIs(t, err, ErrNoValidTrades)
	assert.Equal(t, 1, res.Dropped)
}

func TestIngestPersistenceFailure(t *testing.T) {
	svc := newService(&fakeTrades{addErr: errors.New("conn reset")}, Dependencies{})
	_, err := svc.Ingest(context.Background(), "btcusdt", raw(t, map[string]any{"timestamp": 1, "price": 1, "quantity": 1, "side": "buy"}))
	assert.True(t, apperrors.Is(err, apperrors.CodePersistence))
}

func TestAllowlist(t *testing.T) {
	allow, err := NewAllowlist([]string{"*usdt", "btc*"})
	require.NoError(t, err)
	assert.True(t, allow.Allowed("ethusdt"))
	assert.True(t, allow.Allowed("btceur"))
	assert.False(t, allow.Allowed("etheur"))

	_, err = NewAllowlist([]string{"[abc"})
	assert.Error(t, err)

	svc := newService(&fakeTrades{}, Dependencies{Allowlist: allow})
	_, err = svc.Footprint(context.Background(), FootprintQuery{Symbol: "etheur", Timeframe: "1m"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	assert.False(t, svc.Allowed("ETHEUR"))
}

func TestHistorySources(t *testing.T) {
	nowMs := now.UnixMilli()
	repo := &fakeTrades{trades: []marketdata.Trade{
		tr("btcusdt", nowMs-2_000, 100, 1, marketdata.SideBuy),
		tr("btcusdt", nowMs-1_000, 101, 1, marketdata.SideSell),
		tr("btcusdt", nowMs-2_000_000, 90, 1, marketdata.SideSell),
	}}
	upstream := &fakeHistory{trades: []marketdata.Trade{
		tr("", nowMs-500, 102, 1, marketdata.SideBuy),
		tr("", nowMs-500, 102, 1, marketdata.SideBuy),
	}}
	svc := newService(repo, Dependencies{History: upstream})

	trades, err := svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt"})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Less(t, trades[0].TimestampMs, trades[1].TimestampMs)

	trades, err = svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt", MaxPoints: 1})
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	trades, err = svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt", Source: SourceExchange})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "btcusdt", trades[0].Symbol)

	trades, err = svc.History(context.Background(), HistoryQuery{Symbol: "solusdt", Source: SourceAuto})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, 2, upstream.calls)

	_, err = svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt", Source: "s3"})
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestHistoryUpstreamFailure(t *testing.T) {
	svc := newService(&fakeTrades{}, Dependencies{History: &fakeHistory{err: errors.New("timeout")}})
	_, err := svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt", Source: SourceExchange})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstreamFetch))

	svc = newService(&fakeTrades{}, Dependencies{})
	_, err = svc.History(context.Background(), HistoryQuery{Symbol: "btcusdt", Source: SourceExchange})
	assert.True(t, apperrors.Is(err, apperrors.CodeUpstreamFetch))
}

func TestSessionStats(t *testing.T) {
	nowMs := now.UnixMilli()
	repo := &fakeTrades{trades: []marketdata.Trade{
		tr("btcusdt", nowMs-10_000, 100, 2, marketdata.SideBuy),
		tr("btcusdt", nowMs-9_000, 110, 2, marketdata.SideSell),
	}}
	svc := newService(repo, Dependencies{})

	stats, err := svc.SessionStats(context.Background(), "btcusdt", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultStatsWindowSeconds), stats.WindowSeconds)
	assert.Equal(t, 2, stats.TradeCount)
	assert.Equal(t, 0.0, stats.NetDelta)
	require.NotNil(t, stats.VWAP)
	assert.InDelta(t, 105, *stats.VWAP, 1e-9)

	stats, err = svc.SessionStats(context.Background(), "ethusdt", 999_999)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxStatsWindowSeconds), stats.WindowSeconds)
	assert.Nil(t, stats.VWAP)
}

func TestSessionSeedsAndSubscribes(t *testing.T) {
	nowMs := now.UnixMilli()
	repo := &fakeTrades{trades: []marketdata.Trade{
		tr("btcusdt", nowMs-3_000, 100, 1, marketdata.SideBuy),
		tr("btcusdt", nowMs-2_000, 101, 1, marketdata.SideSell),
	}}
	hub := session.NewHub()
	svc := newService(repo, Dependencies{Hub: hub})

	sess, closeFn, err := svc.Session(context.Background(), session.Config{Symbol: "BTCUSDT", Window: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Len())
	assert.Equal(t, 1, hub.Count())

	hub.Publish(tr("btcusdt", nowMs-1_000, 102, 1, marketdata.SideBuy))
	assert.Equal(t, 3, sess.Len())

	closeFn()
	closeFn()
	assert.Zero(t, hub.Count())
}
