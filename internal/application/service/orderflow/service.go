package orderflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"orderflow/internal/application/service/session"
	"orderflow/internal/cache"
	"orderflow/internal/domain/entity/instruments"
	"orderflow/internal/domain/entity/marketdata"
	"orderflow/internal/domain/footprint"
	interfaces "orderflow/internal/domain/interfaces"
	apperrors "orderflow/internal/errors"
	"orderflow/internal/metrics"
)

const (
	DefaultMaxBars = 120
	MaxBars        = 500
	// MaxTradesPerRequest caps the trades loaded for one footprint.
	MaxTradesPerRequest = 50_000
	tradesPerBar        = 1000

	DefaultHistoryWindowSeconds = 900
	DefaultHistoryMaxPoints     = 5000
	MaxHistoryWindowSeconds     = 86_400
	MaxHistoryPoints            = 50_000

	DefaultStatsWindowSeconds = 86_400
	MaxStatsWindowSeconds     = 86_400
	maxStatsTrades            = 500_000
)

// History sources.
const (
	SourceDatabase = "db"
	SourceExchange = "exchange"
	// SourceAuto reads the database and falls back to the exchange when it has nothing.
	SourceAuto = "auto"
)

var (
	ErrMissingSymbol  = apperrors.Validation("missing_symbol", "symbol is required")
	ErrInvalidPayload = apperrors.Validation("invalid_payload", "invalid payload")
	ErrNoValidTrades  = apperrors.Validation("no_valid_trades", "no valid trades to ingest")
	ErrInvalidSource  = apperrors.Validation("invalid_source", "source must be db, exchange or auto")
)

// TickResolver yields the price increment of a symbol.
type TickResolver interface {
	TickSize(ctx context.Context, symbol string) float64
}

// Dependencies of Service. Trades is required, the rest may be nil.
type Dependencies struct {
	Trades    interfaces.TradeRepository
	History   interfaces.HistoryFetcher
	Ticks     TickResolver
	Hub       *session.Hub
	Cache     *cache.Cache
	CacheTTL  time.Duration
	Allowlist *Allowlist
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
	Now       func() time.Time
}

type Service struct {
	trades    interfaces.TradeRepository
	history   interfaces.HistoryFetcher
	ticks     TickResolver
	hub       *session.Hub
	cache     *cache.Cache
	cacheTTL  time.Duration
	allowlist *Allowlist
	metrics   *metrics.Metrics
	logger    *logrus.Entry
	now       func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		trades:    deps.Trades,
		history:   deps.History,
		ticks:     deps.Ticks,
		hub:       deps.Hub,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		allowlist: deps.Allowlist,
		metrics:   deps.Metrics,
		logger:    logger.WithField("component", "orderflow"),
		now:       now,
	}
}

// FootprintQuery mirrors the footprint endpoint parameters.
// A nil PriceStep derives the step from the loaded trades.
type FootprintQuery struct {
	Symbol    string
	Timeframe string
	PriceStep *float64
	MaxBars   int
}

// Footprint aggregates stored trades into maxBars bars ending at the close of the current bar.
func (s *Service) Footprint(ctx context.Context, q FootprintQuery) ([]marketdata.FootprintBar, error) {
	symbol, err := s.checkSymbol(q.Symbol)
	if err != nil {
		return nil, err
	}
	tf, err := marketdata.ParseTimeframe(q.Timeframe)
	if err != nil {
		return nil, err
	}
	if q.PriceStep != nil {
		if _, err := footprint.NewQuantizer(*q.PriceStep); err != nil {
			return nil, err
		}
	}
	maxBars := ClampMaxBars(q.MaxBars)

	tfMs := tf.Milliseconds()
	ref := footprint.AlignDown(s.now().UnixMilli(), tfMs) + tfMs
	windowSeconds := tf.Seconds() * int64(maxBars)
	since := time.UnixMilli(ref - windowSeconds*1000).UTC()
	limit := min(maxBars*tradesPerBar, MaxTradesPerRequest)

	key := fmt.Sprintf("footprint:%s:%s:%s:%d:%d", symbol, tf, stepKey(q.PriceStep), maxBars, ref)
	return cache.GetOrCompute(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]marketdata.FootprintBar, error) {
		trades, err := s.trades.GetTradesSince(ctx, symbol, since, limit)
		if err != nil {
			return nil, fmt.Errorf("load trades: %w", err)
		}
		return footprint.Aggregate(trades, footprint.Options{
			Timeframe:     tf,
			PriceStep:     q.PriceStep,
			FallbackStep:  s.tickSize(ctx, symbol),
			WindowSeconds: windowSeconds,
			ReferenceMs:   ref,
		})
	})
}

// ClampMaxBars applies the default for non-positive values and caps at MaxBars.
func ClampMaxBars(n int) int {
	if n <= 0 {
		return DefaultMaxBars
	}
	return min(n, MaxBars)
}

func stepKey(step *float64) string {
	if step == nil {
		return "auto"
	}
	return strconv.FormatFloat(*step, 'f', -1, 64)
}

// IngestResult reports how many trades were stored and how many failed validation.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Dropped  int `json:"dropped"`
}

// Ingest validates raw trades, stores the valid ones and publishes them to live sessions.
func (s *Service) Ingest(ctx context.Context, symbol string, items []json.RawMessage) (IngestResult, error) {
	symbol = instruments.NormalizeSymbol(symbol)
	if symbol == "" || len(items) == 0 {
		return IngestResult{}, ErrInvalidPayload
	}
	if _, err := s.checkSymbol(symbol); err != nil {
		return IngestResult{}, err
	}

	trades, dropped := footprint.DecodeBatch(items)
	s.metrics.TradesIngested("ingest", len(trades), dropped)
	if len(trades) == 0 {
		return IngestResult{Dropped: dropped}, ErrNoValidTrades
	}
	for i := range trades {
		trades[i].Symbol = symbol
	}

	if err := s.trades.AddTrades(ctx, trades); err != nil {
		return IngestResult{}, apperrors.Persistence("insert trades", err)
	}
	if s.hub != nil {
		s.hub.Publish(trades...)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"inserted": len(trades),
		"dropped":  dropped,
	}).Debug("ingested trades")
	return IngestResult{Inserted: len(trades), Dropped: dropped}, nil
}

type HistoryQuery struct {
	Symbol        string
	WindowSeconds int
	MaxPoints     int
	Source        string
}

// History returns raw trades of the last WindowSeconds, ascending and capped at MaxPoints.
func (s *Service) History(ctx context.Context, q HistoryQuery) ([]marketdata.Trade, error) {
	symbol, err := s.checkSymbol(q.Symbol)
	if err != nil {
		return nil, err
	}
	window := clampPositive(q.WindowSeconds, DefaultHistoryWindowSeconds, MaxHistoryWindowSeconds)
	maxPoints := clampPositive(q.MaxPoints, DefaultHistoryMaxPoints, MaxHistoryPoints)
	since := s.now().Add(-time.Duration(window) * time.Second).UTC()

	source := q.Source
	if source == "" {
		source = SourceDatabase
	}
	if s.trades == nil {
		source = SourceExchange
	}

	switch source {
	case SourceDatabase, SourceAuto:
		trades, err := s.trades.GetTradesSince(ctx, symbol, since, maxPoints)
		if err != nil {
			return nil, fmt.Errorf("load trades: %w", err)
		}
		if len(trades) > 0 || source == SourceDatabase || s.history == nil {
			return trades, nil
		}
		return s.fetchHistory(ctx, symbol, since, maxPoints)
	case SourceExchange:
		return s.fetchHistory(ctx, symbol, since, maxPoints)
	default:
		return nil, ErrInvalidSource
	}
}

func (s *Service) fetchHistory(ctx context.Context, symbol string, since time.Time, limit int) ([]marketdata.Trade, error) {
	if s.history == nil {
		return nil, apperrors.UpstreamFetch("exchange", fmt.Errorf("no history source configured"))
	}
	trades, err := s.history.FetchTrades(ctx, symbol, since, limit)
	s.metrics.UpstreamFetch("binance", err)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeUpstreamFetch) {
			return nil, err
		}
		return nil, apperrors.UpstreamFetch("binance", err)
	}
	trades = footprint.Dedupe(trades)
	if len(trades) > limit {
		trades = trades[:limit]
	}
	for i := range trades {
		trades[i].Symbol = symbol
	}
	return trades, nil
}

// SessionStats summarizes stored trades of the last windowSeconds.
func (s *Service) SessionStats(ctx context.Context, symbol string, windowSeconds int) (marketdata.SessionStats, error) {
	symbol, err := s.checkSymbol(symbol)
	if err != nil {
		return marketdata.SessionStats{}, err
	}
	window := clampPositive(windowSeconds, DefaultStatsWindowSeconds, MaxStatsWindowSeconds)
	since := s.now().Add(-time.Duration(window) * time.Second).UTC()

	key := fmt.Sprintf("session-stats:%s:%d:%d", symbol, window, since.Unix()/60)
	return cache.GetOrCompute(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (marketdata.SessionStats, error) {
		trades, err := s.trades.GetTradesSince(ctx, symbol, since, maxStatsTrades)
		if err != nil {
			return marketdata.SessionStats{}, fmt.Errorf("load trades: %w", err)
		}
		return footprint.Stats(symbol, int64(window), trades, footprint.DefaultClusterMs), nil
	})
}

// SeedTrades loads the recent trades a new live session starts from. Failures are logged
// and yield an empty seed so the session can still run on live data.
func (s *Service) SeedTrades(ctx context.Context, symbol string, window time.Duration) []marketdata.Trade {
	trades, err := s.History(ctx, HistoryQuery{
		Symbol:        symbol,
		WindowSeconds: int(window / time.Second),
		MaxPoints:     MaxHistoryPoints,
		Source:        SourceAuto,
	})
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("seed session history failed")
		return nil
	}
	return trades
}

// Session opens a rolling window session for symbol seeded with recent history and subscribed to the hub.
// The returned close func unsubscribes it.
func (s *Service) Session(ctx context.Context, cfg session.Config) (*session.RollingWindowSession, func(), error) {
	symbol, err := s.checkSymbol(cfg.Symbol)
	if err != nil {
		return nil, nil, err
	}
	cfg.Symbol = symbol
	if cfg.FallbackStep <= 0 {
		cfg.FallbackStep = s.tickSize(ctx, symbol)
	}
	sess := session.New(cfg)

	// Subscribe first; Append dedupes trades that also arrive in the seed.
	unsubscribe := func() {}
	if s.hub != nil {
		unsubscribe = s.hub.Subscribe(sess)
	}
	sess.Append(s.SeedTrades(ctx, symbol, sess.Window())...)
	s.metrics.SessionOpened()

	var once sync.Once
	return sess, func() {
		once.Do(func() {
			unsubscribe()
			s.metrics.SessionClosed()
		})
	}, nil
}

// Allowed reports whether symbol passes the allowlist.
func (s *Service) Allowed(symbol string) bool {
	return s.allowlist.Allowed(instruments.NormalizeSymbol(symbol))
}

func (s *Service) checkSymbol(raw string) (string, error) {
	symbol := instruments.NormalizeSymbol(raw)
	if symbol == "" {
		return "", ErrMissingSymbol
	}
	if !s.allowlist.Allowed(symbol) {
		return "", apperrors.Validation("symbol_not_allowed", fmt.Sprintf("symbol %s is not allowed", symbol))
	}
	return symbol, nil
}

func (s *Service) tickSize(ctx context.Context, symbol string) float64 {
	if s.ticks == nil {
		return footprint.DefaultTickSize
	}
	return s.ticks.TickSize(ctx, symbol)
}

func clampPositive(v, fallback, max int) int {
	if v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
