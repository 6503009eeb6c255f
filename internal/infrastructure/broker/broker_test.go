package broker

import (
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/config"
	domain "orderflow/internal/domain/entity/marketdata"
)

type collect struct {
	trades []domain.Trade
}

func (c *collect) Add(trades ...domain.Trade) { c.trades = append(c.trades, trades...) }

func newTestConsumer(t *testing.T, sinks ...TradeSink) *Consumer {
	t.Helper()
	c, err := NewConsumer(config.RabbitMQConfig{URL: "amqp://localhost", TradesExchange: "orderflow.trades"}, nil, nil, sinks...)
	require.NoError(t, err)
	return c
}

func TestNewConsumerRequiresURL(t *testing.T) {
	_, err := NewConsumer(config.RabbitMQConfig{}, nil, nil)
	assert.Error(t, err)
}

func TestHandleDeliveryFansOutValidTrades(t *testing.T) {
	first, second := &collect{}, &collect{}
	var published []domain.Trade
	c := newTestConsumer(t, first, second, SinkFunc(func(trades ...domain.Trade) {
		published = append(published, trades...)
	}))

	msg, err := NewTradeMessage("BTCUSDT", "binance", []domain.Trade{
		{TimestampMs: 1000, Price: 100, Quantity: 1, Side: domain.SideBuy},
		{TimestampMs: 1001, Price: 101, Quantity: 2, Side: domain.SideSell},
	})
	require.NoError(t, err)
	msg.Trades = append(msg.Trades, json.RawMessage(`{"timestamp":1002,"price":0,"quantity":1,"side":"buy"}`))
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	require.NoError(t, c.handleDelivery(&amqp.Delivery{Body: body}))
	require.Len(t, first.trades, 2)
	assert.Equal(t, "btcusdt", first.trades[0].Symbol)
	assert.Equal(t, first.trades, second.trades)
	assert.Equal(t, first.trades, published)
}

func TestHandleDeliveryMalformed(t *testing.T) {
	c := newTestConsumer(t)

	err := c.handleDelivery(&amqp.Delivery{Body: []byte(`{"symbol":"btcusdt","trades":{}}`)})
	assert.True(t, errors.Is(err, errMalformed))

	err = c.handleDelivery(&amqp.Delivery{Body: []byte(`{"trades":[]}`)})
	assert.True(t, errors.Is(err, errMalformed))
}
