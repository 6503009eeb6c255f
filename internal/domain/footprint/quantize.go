package footprint

import (
	"math"

	"github.com/shopspring/decimal"

	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

const (
	// DefaultTickSize is used when neither a configured step nor a symbol tick is known.
	DefaultTickSize = 0.01
	// targetCells is the cell count DeriveStep aims for before snapping the step up.
	targetCells = 50
)

// Quantizer maps prices onto a fixed step grid.
type Quantizer struct {
	step     decimal.Decimal
	decimals int32
}

func NewQuantizer(step float64) (*Quantizer, error) {
	if !isFinite(step) || step <= 0 {
		return nil, apperrors.InvalidStep(step)
	}
	d := decimal.NewFromFloat(step)
	decimals := int32(0)
	if exp := d.Exponent(); exp < 0 {
		decimals = -exp
	}
	return &Quantizer{step: d, decimals: decimals}, nil
}

// Step returns the grid step.
func (q *Quantizer) Step() float64 {
	f, _ := q.step.Float64()
	return f
}

// Quantize returns floor(price/step)*step rounded to the step's decimal places.
func (q *Quantizer) Quantize(price float64) float64 {
	p := decimal.NewFromFloat(price)
	f, _ := p.Div(q.step).Floor().Mul(q.step).Round(q.decimals).Float64()
	return f
}

// Quantize is the one-shot form of Quantizer.Quantize.
func Quantize(price, step float64) (float64, error) {
	q, err := NewQuantizer(step)
	if err != nil {
		return 0, err
	}
	if !isFinite(price) {
		return 0, apperrors.Validation(ReasonInvalidPrice, "price must be finite")
	}
	return q.Quantize(price), nil
}

// DeriveStep picks a cell step for sample. The step is range/50 snapped up to a
// 1-2-5 decade value and never below fallback, so it grows with the observed range.
// An empty or flat sample returns fallback.
func DeriveStep(sample []marketdata.Trade, fallback float64) float64 {
	if !isFinite(fallback) || fallback <= 0 {
		fallback = DefaultTickSize
	}
	if len(sample) == 0 {
		return fallback
	}
	lo, hi := sample[0].Price, sample[0].Price
	for _, t := range sample[1:] {
		if t.Price < lo {
			lo = t.Price
		}
		if t.Price > hi {
			hi = t.Price
		}
	}
	span := hi - lo
	if !(span > 0) {
		return fallback
	}
	step := snapUp(span / targetCells)
	if step < fallback {
		return fallback
	}
	return step
}

// snapUp rounds v up to the nearest value in {1, 2, 5} x 10^k.
func snapUp(v float64) float64 {
	exp := math.Floor(math.Log10(v))
	base := math.Pow(10, exp)
	for _, m := range []int64{1, 2, 5, 10} {
		if float64(m)*base >= v*(1-1e-12) {
			f, _ := decimal.NewFromInt(m).Shift(int32(exp)).Float64()
			return f
		}
	}
	f, _ := decimal.NewFromInt(10).Shift(int32(exp)).Float64()
	return f
}
