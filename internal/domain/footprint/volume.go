package footprint

import (
	"math"

	"orderflow/internal/domain/entity/marketdata"
)

// NewVolumeBucket derives imbalance and dominant side from buy and sell volume.
// Buy dominates ties; an empty bucket has no dominant side.
func NewVolumeBucket(ts int64, buy, sell float64) marketdata.VolumeBucket {
	total := buy + sell
	vb := marketdata.VolumeBucket{
		Timestamp:   ts,
		BuyVolume:   buy,
		SellVolume:  sell,
		Delta:       buy - sell,
		TotalVolume: total,
	}
	if total > 0 {
		vb.Imbalance = (buy - sell) / total
		vb.ImbalancePercent = math.Abs(vb.Imbalance) * 100
		side := marketdata.SideSell
		if buy >= sell {
			side = marketdata.SideBuy
		}
		vb.DominantSide = &side
	}
	return vb
}

// VolumeBuckets bucketizes trades and reduces every bucket to a VolumeBucket.
func VolumeBuckets(trades []marketdata.Trade, windowSeconds, bucketSizeSeconds, referenceMs int64) ([]marketdata.VolumeBucket, error) {
	buckets, err := Bucketize(trades, windowSeconds, bucketSizeSeconds, referenceMs)
	if err != nil {
		return nil, err
	}
	out := make([]marketdata.VolumeBucket, len(buckets))
	for i, b := range buckets {
		var buy, sell float64
		for _, t := range b.Trades {
			if t.Side == marketdata.SideBuy {
				buy += t.Quantity
			} else {
				sell += t.Quantity
			}
		}
		out[i] = NewVolumeBucket(b.Start, buy, sell)
	}
	return out, nil
}

// BarVolumeBuckets drops the price ladder of bars.
func BarVolumeBuckets(bars []marketdata.FootprintBar) []marketdata.VolumeBucket {
	out := make([]marketdata.VolumeBucket, len(bars))
	for i, b := range bars {
		out[i] = NewVolumeBucket(b.BucketStart, b.BuyVolume, b.SellVolume)
	}
	return out
}
