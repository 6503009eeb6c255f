package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
	"orderflow/internal/metrics"

	"github.com/sirupsen/logrus"
)

const (
	defaultFlushInterval = 5 * time.Second
	defaultMaxPending    = 200_000
)

// BatchConfig controls batching thresholds for trade persistence.
type BatchConfig struct {
	// Size triggers an early flush once that many trades are pending.
	Size int
	// Timeout is the flush tick.
	Timeout time.Duration
	// MaxPending bounds the trades kept while storage keeps failing; the oldest are dropped first.
	MaxPending int
}

// TradeStore persists trades, such as the postgres trade repository.
type TradeStore interface {
	AddTrades(ctx context.Context, trades []domain.Trade) error
}

// BatchWriter buffers trades and writes them on every tick. A failed batch is put
// back in front of the pending queue and retried on the next tick.
type BatchWriter struct {
	trades *batchBuffer[domain.Trade]
}

// NewBatchWriter configures a batch writer flushing into store.
func NewBatchWriter(cfg BatchConfig, store TradeStore, logger *logrus.Logger, m *metrics.Metrics) *BatchWriter {
	if logger == nil {
		logger = logrus.New()
	}
	componentLogger := logger.WithField("component", "batch_writer")
	return &BatchWriter{
		trades: newBatchBuffer(cfg, store.AddTrades, componentLogger.WithField("entity", "trade"), m.BatchFlush),
	}
}

// Add queues trades. It never blocks on storage.
func (b *BatchWriter) Add(trades ...domain.Trade) {
	b.trades.enqueue(trades...)
}

// Run flushes on every tick, or earlier when Size trades are pending, until ctx is done.
func (b *BatchWriter) Run(ctx context.Context) error {
	b.trades.run(ctx)
	return nil
}

// Flush writes the pending trades now.
func (b *BatchWriter) Flush(ctx context.Context) error {
	return b.trades.flush(ctx)
}

// Stop makes a last best-effort flush using the provided context.
func (b *BatchWriter) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return b.trades.flush(ctx)
}

func (b *BatchWriter) Pending() int {
	return b.trades.len()
}

type batchBuffer[T any] struct {
	cfg     BatchConfig
	mu      sync.Mutex
	items   []T
	kick    chan struct{}
	flushMu sync.Mutex
	flushFn func(context.Context, []T) error
	onFlush func(error)
	logger  *logrus.Entry
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry, onFlush func(error)) *batchBuffer[T] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFlushInterval
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	return &batchBuffer[T]{
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
		flushFn: flushFn,
		onFlush: onFlush,
		logger:  logger,
	}
}

func (bb *batchBuffer[T]) enqueue(items ...T) {
	if len(items) == 0 {
		return
	}
	bb.mu.Lock()
	bb.items = append(bb.items, items...)
	bb.trimLocked()
	full := bb.cfg.Size > 0 && len(bb.items) >= bb.cfg.Size
	bb.mu.Unlock()

	if full {
		select {
		case bb.kick <- struct{}{}:
		default:
		}
	}
}

func (bb *batchBuffer[T]) run(ctx context.Context) {
	ticker := time.NewTicker(bb.cfg.Timeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-bb.kick:
		}
		// Errors are logged and the batch is retried on the next tick.
		_ = bb.flush(ctx)
	}
}

func (bb *batchBuffer[T]) len() int {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return len(bb.items)
}

func (bb *batchBuffer[T]) takeBatch() []T {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.takeBatchLocked()
}

func (bb *batchBuffer[T]) takeBatchLocked() []T {
	if len(bb.items) == 0 {
		return nil
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	return batch
}

// requeue puts a failed batch back in front of anything queued since it was taken.
func (bb *batchBuffer[T]) requeue(batch []T) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	merged := make([]T, 0, len(batch)+len(bb.items))
	merged = append(merged, batch...)
	merged = append(merged, bb.items...)
	bb.items = merged
	bb.trimLocked()
}

func (bb *batchBuffer[T]) trimLocked() {
	over := len(bb.items) - bb.cfg.MaxPending
	if over <= 0 {
		return
	}
	bb.items = append(bb.items[:0], bb.items[over:]...)
	if bb.logger != nil {
		bb.logger.WithField("dropped", over).Error("pending batch over capacity, dropped oldest items")
	}
}

func (bb *batchBuffer[T]) flush(ctx context.Context) error {
	bb.flushMu.Lock()
	defer bb.flushMu.Unlock()

	batch := bb.takeBatch()
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	err := bb.flushFn(ctx, batch)
	if bb.onFlush != nil {
		bb.onFlush(err)
	}
	if err != nil {
		bb.requeue(batch)
		perr := apperrors.Persistence("flush batch", err)
		if bb.logger != nil && !errors.Is(err, context.Canceled) {
			bb.logger.WithError(perr).WithField("size", len(batch)).Warn("batch flush failed")
		}
		return perr
	}
	if bb.logger != nil {
		bb.logger.WithFields(logrus.Fields{
			"size":    len(batch),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
	return nil
}
