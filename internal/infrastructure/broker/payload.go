package broker

import (
	"encoding/json"

	domain "orderflow/internal/domain/entity/marketdata"
)

// TradeMessage is the body published on the trades exchange. Trades are kept raw
// so each record is validated on its own by the consumer.
type TradeMessage struct {
	Symbol string            `json:"symbol"`
	Source string            `json:"source,omitempty"`
	Trades []json.RawMessage `json:"trades"`
}

// NewTradeMessage encodes normalized trades for publishing.
func NewTradeMessage(symbol, source string, trades []domain.Trade) (TradeMessage, error) {
	msg := TradeMessage{Symbol: symbol, Source: source, Trades: make([]json.RawMessage, 0, len(trades))}
	for _, t := range trades {
		raw, err := json.Marshal(t)
		if err != nil {
			return TradeMessage{}, err
		}
		msg.Trades = append(msg.Trades, raw)
	}
	return msg, nil
}
