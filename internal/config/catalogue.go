package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SymbolSpec is one catalogue entry.
type SymbolSpec struct {
	Symbol   string  `yaml:"symbol"`
	TickSize float64 `yaml:"tick_size"`
}

// Catalogue is the static symbol metadata shipped with the service.
type Catalogue struct {
	DefaultTickSize float64      `yaml:"default_tick_size"`
	Symbols         []SymbolSpec `yaml:"symbols"`
}

// DefaultCatalogue is used when SYMBOLS_FILE is not set.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		DefaultTickSize: 0.01,
		Symbols: []SymbolSpec{
			{Symbol: "btcusdt", TickSize: 0.1},
		},
	}
}

// LoadCatalogue reads and validates a yaml catalogue file.
func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalogue{}, fmt.Errorf("read symbols file: %w", err)
	}
	return ParseCatalogue(data)
}

func ParseCatalogue(data []byte) (Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalogue{}, fmt.Errorf("parse symbols file: %w", err)
	}
	if cat.DefaultTickSize == 0 {
		cat.DefaultTickSize = DefaultCatalogue().DefaultTickSize
	}
	if cat.DefaultTickSize < 0 {
		return Catalogue{}, fmt.Errorf("default_tick_size must be positive, got %v", cat.DefaultTickSize)
	}
	seen := make(map[string]struct{}, len(cat.Symbols))
	for i := range cat.Symbols {
		entry := &cat.Symbols[i]
		entry.Symbol = strings.ToLower(strings.TrimSpace(entry.Symbol))
		if entry.Symbol == "" {
			return Catalogue{}, fmt.Errorf("symbols[%d]: symbol is required", i)
		}
		if entry.TickSize <= 0 {
			return Catalogue{}, fmt.Errorf("symbols[%d] %s: tick_size must be positive", i, entry.Symbol)
		}
		if _, dup := seen[entry.Symbol]; dup {
			return Catalogue{}, fmt.Errorf("symbols[%d]: duplicate symbol %s", i, entry.Symbol)
		}
		seen[entry.Symbol] = struct{}{}
	}
	return cat, nil
}

// TickSize returns the catalogue tick for symbol.
func (c Catalogue) TickSize(symbol string) (float64, bool) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	for _, entry := range c.Symbols {
		if entry.Symbol == symbol {
			return entry.TickSize, true
		}
	}
	return 0, false
}
