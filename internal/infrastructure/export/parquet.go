package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"orderflow/internal/domain/entity/marketdata"
)

// TradeRecord is the parquet row of one trade.
type TradeRecord struct {
	Symbol   string  `parquet:"symbol,dict"`
	Time     int64   `parquet:"time,timestamp(millisecond)"`
	Price    float64 `parquet:"price"`
	Quantity float64 `parquet:"quantity"`
	Side     string  `parquet:"side,dict"`
}

func NewTradeRecord(t marketdata.Trade) TradeRecord {
	return TradeRecord{
		Symbol:   t.Symbol,
		Time:     t.TimestampMs,
		Price:    t.Price,
		Quantity: t.Quantity,
		Side:     string(t.Side),
	}
}

func (r TradeRecord) Trade() marketdata.Trade {
	return marketdata.Trade{
		Symbol:      r.Symbol,
		TimestampMs: r.Time,
		Price:       r.Price,
		Quantity:    r.Quantity,
		Side:        marketdata.Side(r.Side),
	}
}

// WriteTrades writes trades to path, creating parent directories.
func WriteTrades(path string, trades []marketdata.Trade) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	rows := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, NewTradeRecord(t))
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadTrades loads a file written by WriteTrades.
func ReadTrades(path string) ([]marketdata.Trade, error) {
	rows, err := parquet.ReadFile[TradeRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	trades := make([]marketdata.Trade, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, r.Trade())
	}
	return trades, nil
}
