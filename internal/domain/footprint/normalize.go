package footprint

import (
	"encoding/json"
	"math"

	"orderflow/internal/domain/entity/instruments"
	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

// maxSafeTimestamp is the largest integer a JSON number carries without loss.
const maxSafeTimestamp = 1 << 53

const (
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonInvalidPrice     = "invalid_price"
	ReasonInvalidQuantity  = "invalid_quantity"
	ReasonInvalidSide      = "invalid_side"
	ReasonMalformed        = "malformed_record"
)

// RawTrade is an unvalidated trade tuple as received from a feed or a client.
type RawTrade struct {
	Symbol    string  `json:"symbol,omitempty"`
	Timestamp float64 `json:"timestamp"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Side      string  `json:"side"`
}

// Normalize validates raw and returns the canonical trade.
func Normalize(raw RawTrade) (marketdata.Trade, error) {
	ts := raw.Timestamp
	if !isFinite(ts) || ts <= 0 || ts != math.Trunc(ts) || ts > maxSafeTimestamp {
		return marketdata.Trade{}, apperrors.Validation(ReasonInvalidTimestamp, "timestamp must be a positive integer of milliseconds")
	}
	if !isFinite(raw.Price) || raw.Price <= 0 {
		return marketdata.Trade{}, apperrors.Validation(ReasonInvalidPrice, "price must be a finite positive number")
	}
	if !isFinite(raw.Quantity) || raw.Quantity <= 0 {
		return marketdata.Trade{}, apperrors.Validation(ReasonInvalidQuantity, "quantity must be a finite positive number")
	}
	side := marketdata.Side(raw.Side)
	if !side.Valid() {
		return marketdata.Trade{}, apperrors.Validation(ReasonInvalidSide, `side must be "buy" or "sell"`)
	}
	return marketdata.Trade{
		Symbol:      instruments.NormalizeSymbol(raw.Symbol),
		TimestampMs: int64(ts),
		Price:       raw.Price,
		Quantity:    raw.Quantity,
		Side:        side,
	}, nil
}

// NormalizeBatch keeps the valid records of raws and reports how many were dropped.
func NormalizeBatch(raws []RawTrade) ([]marketdata.Trade, int) {
	trades := make([]marketdata.Trade, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		trade, err := Normalize(raw)
		if err != nil {
			dropped++
			continue
		}
		trades = append(trades, trade)
	}
	return trades, dropped
}

// DecodeBatch decodes each element of a JSON array independently, so a record with
// a wrongly typed field is dropped without failing its neighbours.
func DecodeBatch(items []json.RawMessage) ([]marketdata.Trade, int) {
	raws := make([]RawTrade, 0, len(items))
	dropped := 0
	for _, item := range items {
		var raw RawTrade
		if err := json.Unmarshal(item, &raw); err != nil {
			dropped++
			continue
		}
		raws = append(raws, raw)
	}
	trades, invalid := NormalizeBatch(raws)
	return trades, dropped + invalid
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
