package instruments

import (
	"context"
	"errors"
	"fmt"

	domain "orderflow/internal/domain/entity/instruments"
	interfaces "orderflow/internal/domain/interfaces"
	"orderflow/internal/infrastructure/instruments/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrInstrumentNotFound aliases the domain sentinel so callers of this package can match it directly.
var ErrInstrumentNotFound = interfaces.ErrInstrumentNotFound

type Repository struct {
	db *gorm.DB
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepositoryWithDB wraps an existing gorm handle.
func NewRepositoryWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() {
	if r == nil || r.db == nil {
		return
	}
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (r *Repository) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	var row models.SymbolModel
	err := r.db.WithContext(ctx).
		Where("symbol = ?", domain.NormalizeSymbol(symbol)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstrumentNotFound
		}
		return nil, fmt.Errorf("get symbol %s: %w", symbol, err)
	}
	instrument := row.ToDomain()
	return &instrument, nil
}

func (r *Repository) UpsertInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return errors.New("instrument is nil")
	}
	if instrument.TickSize <= 0 {
		return fmt.Errorf("tick size must be positive, got %v", instrument.TickSize)
	}
	row := models.NewSymbolModel(*instrument)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"base_asset", "quote_asset", "tick_size", "source", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *Repository) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	var rows []models.SymbolModel
	if err := r.db.WithContext(ctx).Order("symbol").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	out := make([]domain.Instrument, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}
