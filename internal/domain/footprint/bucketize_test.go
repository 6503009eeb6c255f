package footprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

func TestBucketizeGapFill(t *testing.T) {
	tests := []struct {
		name           string
		window, bucket int64
		want           int
	}{
		{"exact multiple", 120, 5, 24},
		{"non exact multiple", 7, 3, 3},
		{"bucket larger than window", 2, 5, 1},
		{"single bucket", 60, 60, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets, err := Bucketize(nil, tt.window, tt.bucket, 1_000_000)
			require.NoError(t, err)
			require.Len(t, buckets, tt.want)
			assert.Equal(t, int64(1_000_000-tt.window*1000), buckets[0].Start)
			for i := 1; i < len(buckets); i++ {
				assert.Equal(t, buckets[i-1].End, buckets[i].Start)
				assert.Equal(t, tt.bucket*1000, buckets[i].End-buckets[i].Start)
			}
		})
	}
}

func TestBucketizeBoundaries(t *testing.T) {
	trades := []marketdata.Trade{
		trade(999, 1, 1, marketdata.SideBuy),   // before window
		trade(1000, 1, 1, marketdata.SideBuy),  // window start
		trade(1999, 1, 1, marketdata.SideBuy),  // end of first bucket
		trade(2000, 1, 1, marketdata.SideSell), // boundary belongs to next bucket
		trade(3999, 1, 1, marketdata.SideSell),
		trade(4000, 1, 1, marketdata.SideSell), // reference is exclusive
	}
	buckets, err := Bucketize(trades, 3, 1, 4000)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Len(t, buckets[0].Trades, 2)
	assert.Len(t, buckets[1].Trades, 1)
	assert.Equal(t, int64(2000), buckets[1].Trades[0].TimestampMs)
	assert.Len(t, buckets[2].Trades, 1)
}

func TestBucketizeNonExactMultipleAssignsByIndex(t *testing.T) {
	// window [3000, 10000) with 3s buckets: 3000, 6000, 9000; last bucket ends at 12000.
	trades := []marketdata.Trade{
		trade(9500, 1, 1, marketdata.SideBuy),
		trade(10_500, 1, 1, marketdata.SideBuy),
		trade(12_000, 1, 1, marketdata.SideBuy),
	}
	buckets, err := Bucketize(trades, 7, 3, 10_000)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, int64(9000), buckets[2].Start)
	assert.Equal(t, int64(12_000), buckets[2].End)
	assert.Len(t, buckets[2].Trades, 2, "trade past the reference still lands in the last bucket")
}

func TestBucketizeRejectsNonPositiveSizes(t *testing.T) {
	_, err := Bucketize(nil, 0, 1, 1000)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	_, err = Bucketize(nil, 10, 0, 1000)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestAlignDown(t *testing.T) {
	assert.Equal(t, int64(60_000), AlignDown(61_234, 60_000))
	assert.Equal(t, int64(60_000), AlignDown(60_000, 60_000))
	assert.Equal(t, int64(-60_000), AlignDown(-1, 60_000))
}
