package footprint

import "orderflow/internal/domain/entity/marketdata"

// DeltaSample is the minimal input of the cumulative delta series.
type DeltaSample struct {
	Timestamp int64
	Delta     float64
}

// Accumulate returns the running sum of samples starting from seed. Passing the
// last value of a previous page as seed continues that page's series exactly.
func Accumulate(samples []DeltaSample, seed float64) []marketdata.CumulativeDeltaPoint {
	points := make([]marketdata.CumulativeDeltaPoint, len(samples))
	running := seed
	for i, s := range samples {
		running += s.Delta
		points[i] = marketdata.CumulativeDeltaPoint{Timestamp: s.Timestamp, CumulativeDelta: running}
	}
	return points
}

func BarDeltas(bars []marketdata.FootprintBar) []DeltaSample {
	samples := make([]DeltaSample, len(bars))
	for i, b := range bars {
		samples[i] = DeltaSample{Timestamp: b.BucketStart, Delta: b.Delta}
	}
	return samples
}

// CumulativeDelta is Accumulate over the deltas of bars.
func CumulativeDelta(bars []marketdata.FootprintBar, seed float64) []marketdata.CumulativeDeltaPoint {
	return Accumulate(BarDeltas(bars), seed)
}
