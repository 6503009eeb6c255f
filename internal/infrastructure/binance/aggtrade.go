package binance

import (
	"strconv"

	"orderflow/internal/domain/entity/marketdata"
	"orderflow/internal/domain/footprint"
)

// aggTrade is an aggregated trade as sent by both the stream and /api/v3/aggTrades.
type aggTrade struct {
	ID           int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	EventTime    int64  `json:"E"`
	IsBuyerMaker bool   `json:"m"`
}

// toTrade normalizes the record. A buyer maker means the taker sold.
func (a aggTrade) toTrade(symbol string) (marketdata.Trade, error) {
	price, err := strconv.ParseFloat(a.Price, 64)
	if err != nil {
		price = 0
	}
	quantity, err := strconv.ParseFloat(a.Quantity, 64)
	if err != nil {
		quantity = 0
	}
	ts := a.TradeTime
	if ts == 0 {
		ts = a.EventTime
	}
	side := marketdata.SideBuy
	if a.IsBuyerMaker {
		side = marketdata.SideSell
	}
	return footprint.Normalize(footprint.RawTrade{
		Symbol:    symbol,
		Timestamp: float64(ts),
		Price:     price,
		Quantity:  quantity,
		Side:      string(side),
	})
}
