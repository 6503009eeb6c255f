package footprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		price, step, want float64
	}{
		{100.07, 0.1, 100.0},
		{100.0, 0.1, 100.0},
		{99.99, 0.1, 99.9},
		{0.3, 0.1, 0.3},
		{64123.456, 0.5, 64123.0},
		{64123.756, 0.5, 64123.5},
		{1.23456, 0.0001, 1.2345},
		{1234, 25, 1225},
	}
	for _, tt := range tests {
		got, err := Quantize(tt.price, tt.step)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "quantize(%v, %v)", tt.price, tt.step)
	}
}

func TestQuantizeInvalidStep(t *testing.T) {
	for _, step := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, err := Quantize(100, step)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeInvalidStep), "step %v", step)
	}
}

func pricesAt(prices ...float64) []marketdata.Trade {
	out := make([]marketdata.Trade, len(prices))
	for i, p := range prices {
		out[i] = trade(int64(i+1), p, 1, marketdata.SideBuy)
	}
	return out
}

func TestDeriveStepFallback(t *testing.T) {
	assert.Equal(t, 0.1, DeriveStep(nil, 0.1))
	assert.Equal(t, DefaultTickSize, DeriveStep(nil, 0))
	assert.Equal(t, 0.5, DeriveStep(pricesAt(100, 100), 0.5), "flat sample uses the tick")
	assert.Equal(t, 1.0, DeriveStep(pricesAt(100, 100.2), 1), "never below the tick")
}

func TestDeriveStepTargetsCellBand(t *testing.T) {
	for _, span := range []float64{0.37, 1, 2.5, 13, 99, 640, 7_000} {
		sample := pricesAt(1000, 1000+span)
		step := DeriveStep(sample, 0.0001)
		cells := math.Floor((1000+span)/step) - math.Floor(1000/step) + 1
		assert.GreaterOrEqual(t, cells, 20.0, "span %v step %v", span, step)
		assert.LessOrEqual(t, cells, 60.0, "span %v step %v", span, step)
	}
}

func TestDeriveStepMonotonicInRange(t *testing.T) {
	prev := 0.0
	for span := 0.01; span < 5000; span *= 1.07 {
		step := DeriveStep(pricesAt(500, 500+span), 0.01)
		assert.GreaterOrEqual(t, step, prev, "span %v", span)
		prev = step
	}
}

func TestSnapUp(t *testing.T) {
	assert.Equal(t, 0.05, snapUp(0.04))
	assert.Equal(t, 0.1, snapUp(0.1))
	assert.Equal(t, 0.2, snapUp(0.11))
	assert.Equal(t, 5.0, snapUp(2.01))
	assert.Equal(t, 10.0, snapUp(5.5))
}
