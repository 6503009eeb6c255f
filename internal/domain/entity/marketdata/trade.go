package marketdata

import (
	"strconv"
	"time"
)

// Side is the aggressor direction of an executed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) String() string {
	return string(s)
}

// Trade is a normalized execution. It is never mutated after normalization.
type Trade struct {
	Symbol      string  `json:"symbol,omitempty"`
	TimestampMs int64   `json:"timestamp"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Side        Side    `json:"side"`
}

// Time returns the execution time in UTC.
func (t Trade) Time() time.Time {
	return time.UnixMilli(t.TimestampMs).UTC()
}

// Key identifies a trade across merged history and live sources.
func (t Trade) Key() string {
	return strconv.FormatInt(t.TimestampMs, 10) + "-" + string(t.Side) + "-" +
		strconv.FormatFloat(t.Price, 'f', -1, 64) + "-" + strconv.FormatFloat(t.Quantity, 'f', -1, 64)
}
