package models

import (
	domain "orderflow/internal/domain/entity/instruments"
)

// SymbolModel is a row of the symbols table.
type SymbolModel struct {
	Symbol     string  `gorm:"primaryKey;column:symbol;type:varchar(32);not null"`
	BaseAsset  string  `gorm:"column:base_asset;type:varchar(16)"`
	QuoteAsset string  `gorm:"column:quote_asset;type:varchar(16)"`
	TickSize   float64 `gorm:"column:tick_size;type:double precision;not null"`
	Source     string  `gorm:"column:source;type:varchar(16);not null"`
	BaseModel
}

func (SymbolModel) TableName() string {
	return "symbols"
}

// ToDomain converts the row, treating an unknown source as the database itself.
func (m SymbolModel) ToDomain() domain.Instrument {
	source, err := domain.NewTickSource(m.Source)
	if err != nil {
		source = domain.TickSourceDatabase
	}
	return domain.Instrument{
		Symbol:     m.Symbol,
		BaseAsset:  m.BaseAsset,
		QuoteAsset: m.QuoteAsset,
		TickSize:   m.TickSize,
		Source:     source,
		UpdatedAt:  m.UpdatedAt,
	}
}

func NewSymbolModel(i domain.Instrument) SymbolModel {
	return SymbolModel{
		Symbol:     domain.NormalizeSymbol(i.Symbol),
		BaseAsset:  i.BaseAsset,
		QuoteAsset: i.QuoteAsset,
		TickSize:   i.TickSize,
		Source:     i.Source.String(),
	}
}
