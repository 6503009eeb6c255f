package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "orderflow/internal/domain/entity/marketdata"
	interfaces "orderflow/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Trades

var tradeColumns = []string{"id", "symbol", "side", "price", "quantity", "traded_at"}

func (r *Repository) AddTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(trades))
	for _, trade := range trades {
		if trade.Symbol == "" {
			return errors.New("trade symbol is empty")
		}
		rows = append(rows, tradeRow(trade))
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"orderflow_trades"},
		tradeColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

func tradeRow(trade domain.Trade) []interface{} {
	return []interface{}{
		uuid.New(),
		trade.Symbol,
		string(trade.Side),
		trade.Price,
		trade.Quantity,
		trade.Time(),
	}
}

func (r *Repository) GetTradesSince(ctx context.Context, symbol string, since time.Time, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT symbol, side, price, quantity, traded_at
		FROM orderflow_trades
		WHERE symbol=$1 AND traded_at >= $2
		ORDER BY traded_at ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, symbol, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]domain.Trade, 0, limit)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		trade    domain.Trade
		side     string
		tradedAt time.Time
	)
	if err := row.Scan(&trade.Symbol, &side, &trade.Price, &trade.Quantity, &tradedAt); err != nil {
		return domain.Trade{}, err
	}
	trade.Side = domain.Side(side)
	trade.TimestampMs = tradedAt.UnixMilli()
	return trade, nil
}

// Retention

const pruneBatchQuery = `
	DELETE FROM orderflow_trades
	WHERE id IN (
		SELECT id FROM orderflow_trades
		WHERE traded_at < $1
		LIMIT $2
	)`

func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be positive")
	}
	var total int64
	for {
		tag, err := r.pool.Exec(ctx, pruneBatchQuery, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("prune trades: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (r *Repository) RecordRetentionRun(ctx context.Context, run interfaces.RetentionRun) error {
	const query = `
		INSERT INTO retention_runs (id, started_at, finished_at, cutoff, deleted, status, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	status := "ok"
	var errText *string
	if run.Err != "" {
		status = "error"
		errText = &run.Err
	}
	_, err := r.pool.Exec(ctx, query,
		uuid.New(),
		run.StartedAt,
		run.FinishedAt,
		run.Cutoff,
		run.Deleted,
		status,
		errText,
	)
	return err
}
