package marketdata

// Cluster is a fixed-width, epoch aligned time slice of trades.
type Cluster struct {
	StartTimestamp int64   `json:"startTimestamp"`
	EndTimestamp   int64   `json:"endTimestamp"`
	Volume         float64 `json:"volume"`
	BuyVolume      float64 `json:"buyVolume"`
	SellVolume     float64 `json:"sellVolume"`
	TradeCount     int     `json:"tradeCount"`
}

// SessionStats summarizes a window of trades for one symbol.
type SessionStats struct {
	Symbol         string   `json:"symbol"`
	WindowSeconds  int64    `json:"windowSeconds"`
	TradeCount     int      `json:"tradeCount"`
	BuyVolume      float64  `json:"buyVolume"`
	SellVolume     float64  `json:"sellVolume"`
	NetDelta       float64  `json:"netDelta"`
	VWAP           *float64 `json:"vwap"`
	LargestCluster *Cluster `json:"largestCluster"`
}
