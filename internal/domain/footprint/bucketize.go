package footprint

import (
	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

// Grid is a contiguous run of equal, half-open time buckets starting at WindowStart.
type Grid struct {
	WindowStart int64
	SizeMs      int64
	Count       int
}

// NewGrid covers [referenceMs-windowMs, referenceMs) with ceil(windowMs/sizeMs) buckets.
// The last bucket may end after referenceMs when the window is not a multiple of the size.
func NewGrid(windowMs, sizeMs, referenceMs int64) (Grid, error) {
	if windowMs <= 0 {
		return Grid{}, apperrors.Validation("invalid_window", "window must be positive")
	}
	if sizeMs <= 0 {
		return Grid{}, apperrors.Validation("invalid_bucket_size", "bucket size must be positive")
	}
	count := (windowMs + sizeMs - 1) / sizeMs
	return Grid{WindowStart: referenceMs - windowMs, SizeMs: sizeMs, Count: int(count)}, nil
}

// Index returns the bucket holding ts, or false when ts falls outside every bucket.
func (g Grid) Index(ts int64) (int, bool) {
	if ts < g.WindowStart {
		return 0, false
	}
	idx := (ts - g.WindowStart) / g.SizeMs
	if idx >= int64(g.Count) {
		return 0, false
	}
	return int(idx), true
}

func (g Grid) Start(i int) int64 {
	return g.WindowStart + int64(i)*g.SizeMs
}

func (g Grid) End() int64 {
	return g.Start(g.Count)
}

// Bucket is one shell of a bucketized window with the trades assigned to it.
type Bucket struct {
	Start  int64
	End    int64
	Trades []marketdata.Trade
}

// Bucketize assigns trades to the gap-filled buckets of the window ending at
// referenceMs. Trades outside every bucket are dropped. Trades keep input order.
func Bucketize(trades []marketdata.Trade, windowSeconds, bucketSizeSeconds, referenceMs int64) ([]Bucket, error) {
	grid, err := NewGrid(windowSeconds*1000, bucketSizeSeconds*1000, referenceMs)
	if err != nil {
		return nil, err
	}
	return bucketizeGrid(grid, trades), nil
}

func bucketizeGrid(grid Grid, trades []marketdata.Trade) []Bucket {
	buckets := make([]Bucket, grid.Count)
	for i := range buckets {
		buckets[i].Start = grid.Start(i)
		buckets[i].End = grid.Start(i + 1)
	}
	for _, t := range trades {
		idx, ok := grid.Index(t.TimestampMs)
		if !ok {
			continue
		}
		buckets[idx].Trades = append(buckets[idx].Trades, t)
	}
	return buckets
}
