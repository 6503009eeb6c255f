package footprint

import (
	"sort"

	"orderflow/internal/domain/entity/marketdata"
)

// DefaultClusterMs is the width of the activity clusters in session stats.
const DefaultClusterMs int64 = 60_000

// Stats summarizes trades: side volumes, VWAP and the heaviest epoch aligned cluster.
// Ties between clusters go to the earliest one.
func Stats(symbol string, windowSeconds int64, trades []marketdata.Trade, clusterMs int64) marketdata.SessionStats {
	if clusterMs <= 0 {
		clusterMs = DefaultClusterMs
	}
	stats := marketdata.SessionStats{Symbol: symbol, WindowSeconds: windowSeconds, TradeCount: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	var notional, volume float64
	clusters := make(map[int64]*marketdata.Cluster)
	for _, t := range trades {
		start := AlignDown(t.TimestampMs, clusterMs)
		c, ok := clusters[start]
		if !ok {
			c = &marketdata.Cluster{StartTimestamp: start, EndTimestamp: start + clusterMs}
			clusters[start] = c
		}
		if t.Side == marketdata.SideBuy {
			stats.BuyVolume += t.Quantity
			c.BuyVolume += t.Quantity
		} else {
			stats.SellVolume += t.Quantity
			c.SellVolume += t.Quantity
		}
		c.Volume += t.Quantity
		c.TradeCount++
		volume += t.Quantity
		notional += t.Price * t.Quantity
	}
	stats.NetDelta = stats.BuyVolume - stats.SellVolume
	if volume > 0 {
		vwap := notional / volume
		stats.VWAP = &vwap
	}

	starts := make([]int64, 0, len(clusters))
	for start := range clusters {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	var largest *marketdata.Cluster
	for _, start := range starts {
		if c := clusters[start]; largest == nil || c.Volume > largest.Volume {
			largest = c
		}
	}
	if largest != nil {
		c := *largest
		stats.LargestCluster = &c
	}
	return stats
}

// Filter keeps trades with quantity >= minQuantity.
func Filter(trades []marketdata.Trade, minQuantity float64) []marketdata.Trade {
	if minQuantity <= 0 {
		return trades
	}
	out := make([]marketdata.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Quantity >= minQuantity {
			out = append(out, t)
		}
	}
	return out
}

// Dedupe merges trades by Trade.Key, keeping the first occurrence, sorted by time.
func Dedupe(trades []marketdata.Trade) []marketdata.Trade {
	seen := make(map[string]struct{}, len(trades))
	out := make([]marketdata.Trade, 0, len(trades))
	for _, t := range trades {
		key := t.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out
}
