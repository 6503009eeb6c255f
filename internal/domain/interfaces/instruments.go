package interfaces

import (
	"context"
	"errors"

	domain "orderflow/internal/domain/entity/instruments"
)

// ErrInstrumentNotFound is returned by repositories for unknown symbols.
var ErrInstrumentNotFound = errors.New("instrument not found")

type InstrumentsRepository interface {
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	UpsertInstrument(ctx context.Context, instrument *domain.Instrument) error
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
	Close()
}

// TickSizeFetcher reads a symbol's price increment from the exchange.
type TickSizeFetcher interface {
	FetchTickSize(ctx context.Context, symbol string) (float64, error)
}
