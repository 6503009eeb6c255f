package interfaces

import (
	"context"
	"time"

	marketdata "orderflow/internal/domain/entity/marketdata"
)

// TradeRepository stores normalized trades per symbol.
type TradeRepository interface {
	AddTrades(ctx context.Context, trades []marketdata.Trade) error
	// GetTradesSince returns up to limit trades with timestamp >= since, ascending.
	GetTradesSince(ctx context.Context, symbol string, since time.Time, limit int) ([]marketdata.Trade, error)
	// PruneBefore deletes trades older than cutoff in batches and returns the total removed.
	PruneBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	RecordRetentionRun(ctx context.Context, run RetentionRun) error
	Close()
}

// RetentionRun is the audit row written after each prune.
type RetentionRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Cutoff     time.Time
	Deleted    int64
	Err        string
}

// HistoryFetcher loads recent trades from an upstream exchange.
type HistoryFetcher interface {
	FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]marketdata.Trade, error)
}

// TradeStream delivers live trades for a symbol until ctx is done.
type TradeStream interface {
	Stream(ctx context.Context, symbol string, handle func(marketdata.Trade)) error
}
