package instruments

import (
	"fmt"
	"strings"
	"time"
)

// TickSource tells where a tick size was resolved from.
type TickSource string

const (
	TickSourceDatabase  TickSource = "database"
	TickSourceExchange  TickSource = "exchange"
	TickSourceCatalogue TickSource = "catalogue"
	TickSourceDefault   TickSource = "default"
)

func (s TickSource) String() string {
	return string(s)
}

func (s TickSource) IsValid() bool {
	switch s {
	case TickSourceDatabase, TickSourceExchange, TickSourceCatalogue, TickSourceDefault:
		return true
	default:
		return false
	}
}

func NewTickSource(s string) (TickSource, error) {
	ts := TickSource(s)
	if !ts.IsValid() {
		return "", fmt.Errorf("invalid tick source: %s", s)
	}
	return ts, nil
}

// Instrument is a tradable symbol with its price increment.
type Instrument struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	// TickSize is the minimum price increment and the floor for derived footprint steps.
	TickSize  float64
	Source    TickSource
	UpdatedAt time.Time
}

// NormalizeSymbol is the canonical storage form of a symbol: trimmed and lowercase.
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}
