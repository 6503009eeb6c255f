package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "orderflow/internal/domain/entity/marketdata"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends trade batches to a fanout exchange.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	source   string
	logger   *logrus.Logger
	mu       sync.Mutex
}

func NewPublisher(conn *amqp.Connection, exchange, source string, logger *logrus.Logger) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		source:   source,
		logger:   logger,
	}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Error("close rabbitmq channel")
	}
}

// PublishTrades sends trades of one symbol as a single message.
func (p *Publisher) PublishTrades(ctx context.Context, symbol string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msg, err := NewTradeMessage(symbol, p.source, trades)
	if err != nil {
		return fmt.Errorf("encode trades: %w", err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
