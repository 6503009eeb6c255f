package footprint

import (
	"sort"

	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
)

// Options configures Aggregate.
type Options struct {
	Timeframe marketdata.Timeframe
	// PriceStep overrides step derivation when set. It must be positive.
	PriceStep *float64
	// FallbackStep is the symbol tick size used by step derivation.
	FallbackStep float64
	// WindowSeconds and ReferenceMs pin the reported window to [ReferenceMs-WindowSeconds, ReferenceMs).
	// A zero ReferenceMs ends the window at the close of the newest trade's bar; a zero
	// WindowSeconds starts it at the open of the oldest trade's bar.
	WindowSeconds int64
	ReferenceMs   int64
}

// Aggregate builds the gap-filled footprint bars of trades. Configuration is checked
// before any trade is touched, and either every bar is returned or none.
func Aggregate(trades []marketdata.Trade, opts Options) ([]marketdata.FootprintBar, error) {
	if !opts.Timeframe.Valid() {
		return nil, apperrors.UnknownTimeframe(string(opts.Timeframe))
	}
	if opts.PriceStep != nil {
		if step := *opts.PriceStep; !isFinite(step) || step <= 0 {
			return nil, apperrors.InvalidStep(step)
		}
	}

	sorted := sortByTime(trades)
	grid, ok, err := resolveGrid(sorted, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []marketdata.FootprintBar{}, nil
	}
	return aggregateGrid(sorted, grid, opts.PriceStep, opts.FallbackStep)
}

// Window pins bucketing to explicit sizes for callers not bound to a Timeframe.
type Window struct {
	Seconds       int64
	BucketSeconds int64
	ReferenceMs   int64
}

// AggregateWindow is Aggregate over an explicit window and bucket size.
func AggregateWindow(trades []marketdata.Trade, win Window, priceStep *float64, fallbackStep float64) ([]marketdata.FootprintBar, error) {
	if priceStep != nil {
		if step := *priceStep; !isFinite(step) || step <= 0 {
			return nil, apperrors.InvalidStep(step)
		}
	}
	grid, err := NewGrid(win.Seconds*1000, win.BucketSeconds*1000, win.ReferenceMs)
	if err != nil {
		return nil, err
	}
	return aggregateGrid(sortByTime(trades), grid, priceStep, fallbackStep)
}

func sortByTime(trades []marketdata.Trade) []marketdata.Trade {
	sorted := make([]marketdata.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})
	return sorted
}

func aggregateGrid(sorted []marketdata.Trade, grid Grid, priceStep *float64, fallbackStep float64) ([]marketdata.FootprintBar, error) {
	inWindow := sorted[:0:0]
	for _, t := range sorted {
		if _, ok := grid.Index(t.TimestampMs); ok {
			inWindow = append(inWindow, t)
		}
	}

	var step float64
	if priceStep != nil {
		step = *priceStep
	} else {
		step = DeriveStep(inWindow, fallbackStep)
	}
	quantizer, err := NewQuantizer(step)
	if err != nil {
		return nil, err
	}

	accs := make([]barAccumulator, grid.Count)
	for _, t := range inWindow {
		idx, _ := grid.Index(t.TimestampMs)
		accs[idx].add(t, quantizer.Quantize(t.Price))
	}

	bars := make([]marketdata.FootprintBar, grid.Count)
	var prevClose *float64
	for i := range accs {
		bars[i] = accs[i].bar(grid.Start(i), grid.Start(i+1), prevClose)
		if bars[i].Close != nil {
			prevClose = bars[i].Close
		}
	}
	return bars, nil
}

func resolveGrid(sorted []marketdata.Trade, opts Options) (Grid, bool, error) {
	tfMs := opts.Timeframe.Milliseconds()
	ref := opts.ReferenceMs
	if ref == 0 {
		if len(sorted) == 0 {
			return Grid{}, false, nil
		}
		ref = AlignDown(sorted[len(sorted)-1].TimestampMs, tfMs) + tfMs
	}
	windowMs := opts.WindowSeconds * 1000
	if windowMs == 0 {
		if len(sorted) == 0 {
			return Grid{}, false, nil
		}
		windowMs = ref - AlignDown(sorted[0].TimestampMs, tfMs)
		if windowMs <= 0 {
			return Grid{}, false, nil
		}
	}
	grid, err := NewGrid(windowMs, tfMs, ref)
	if err != nil {
		return Grid{}, false, err
	}
	return grid, true, nil
}

// AlignDown floors ts to a multiple of sizeMs.
func AlignDown(ts, sizeMs int64) int64 {
	r := ts % sizeMs
	if r < 0 {
		r += sizeMs
	}
	return ts - r
}

type barAccumulator struct {
	trades     int
	open       float64
	high       float64
	low        float64
	close      float64
	cells      []marketdata.PriceCell
	cellIndex  map[float64]int
}

func (a *barAccumulator) add(t marketdata.Trade, cellPrice float64) {
	if a.trades == 0 {
		a.open, a.high, a.low = t.Price, t.Price, t.Price
		a.cellIndex = make(map[float64]int)
	}
	a.trades++
	if t.Price > a.high {
		a.high = t.Price
	}
	if t.Price < a.low {
		a.low = t.Price
	}
	a.close = t.Price

	idx, ok := a.cellIndex[cellPrice]
	if !ok {
		idx = len(a.cells)
		a.cells = append(a.cells, marketdata.PriceCell{Price: cellPrice})
		a.cellIndex[cellPrice] = idx
	}
	cell := &a.cells[idx]
	cell.TradesCount++
	if t.Side == marketdata.SideBuy {
		cell.BuyVolume += t.Quantity
	} else {
		cell.SellVolume += t.Quantity
	}
}

func (a *barAccumulator) bar(start, end int64, prevClose *float64) marketdata.FootprintBar {
	bar := marketdata.FootprintBar{
		BucketStart: start,
		BucketEnd:   end,
		Cells:       []marketdata.PriceCell{},
	}
	if a.trades == 0 {
		if prevClose != nil {
			c := *prevClose
			bar.Open, bar.High, bar.Low, bar.Close = &c, &c, &c, &c
		}
		return bar
	}
	open, high, low, closePrice := a.open, a.high, a.low, a.close
	bar.Open, bar.High, bar.Low, bar.Close = &open, &high, &low, &closePrice
	bar.TradesCount = a.trades

	cells := make([]marketdata.PriceCell, len(a.cells))
	copy(cells, a.cells)
	sort.Slice(cells, func(i, j int) bool { return cells[i].Price < cells[j].Price })
	bar.Cells = cells

	// Bar totals are summed from the cells in price order so they match the cells exactly.
	for _, c := range cells {
		bar.BuyVolume += c.BuyVolume
		bar.SellVolume += c.SellVolume
		bar.TotalVolume += c.BuyVolume + c.SellVolume
	}
	bar.Delta = bar.BuyVolume - bar.SellVolume
	return bar
}
