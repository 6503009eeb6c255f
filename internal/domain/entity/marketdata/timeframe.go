package marketdata

import (
	"strings"
	"time"

	apperrors "orderflow/internal/errors"
)

// Timeframe is a supported footprint bar duration.
type Timeframe string

const (
	Timeframe5s  Timeframe = "5s"
	Timeframe15s Timeframe = "15s"
	Timeframe30s Timeframe = "30s"
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Timeframes lists every supported value in ascending duration.
var Timeframes = []Timeframe{
	Timeframe5s, Timeframe15s, Timeframe30s,
	Timeframe1m, Timeframe3m, Timeframe5m, Timeframe15m, Timeframe30m,
	Timeframe1h, Timeframe4h, Timeframe1d,
}

// Duration returns the bar length, or zero for an unsupported value.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe5s:
		return 5 * time.Second
	case Timeframe15s:
		return 15 * time.Second
	case Timeframe30s:
		return 30 * time.Second
	case Timeframe1m:
		return time.Minute
	case Timeframe3m:
		return 3 * time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

func (tf Timeframe) Milliseconds() int64 {
	return tf.Duration().Milliseconds()
}

func (tf Timeframe) Seconds() int64 {
	return int64(tf.Duration() / time.Second)
}

// ParseTimeframe accepts a timeframe label, ignoring surrounding space.
func ParseTimeframe(value string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(value))
	if !tf.Valid() {
		return "", apperrors.UnknownTimeframe(value)
	}
	return tf, nil
}
