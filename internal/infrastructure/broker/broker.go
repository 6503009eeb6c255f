package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"orderflow/internal/config"
	"orderflow/internal/domain/entity/instruments"
	domain "orderflow/internal/domain/entity/marketdata"
	"orderflow/internal/domain/footprint"
	"orderflow/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// errMalformed marks deliveries that can never be processed and must not be requeued.
var errMalformed = errors.New("malformed message")

// TradeSink receives normalized trades.
type TradeSink interface {
	Add(trades ...domain.Trade)
}

// SinkFunc adapts a function, such as Hub.Publish, to TradeSink.
type SinkFunc func(trades ...domain.Trade)

func (f SinkFunc) Add(trades ...domain.Trade) { f(trades...) }

// Consumer subscribes to the trades fanout exchange, validates each message and
// hands the trades to its sinks.
type Consumer struct {
	cfg     config.RabbitMQConfig
	sinks   []TradeSink
	logger  *logrus.Logger
	metrics *metrics.Metrics

	conn    *amqp.Connection
	channel *amqp.Channel
	wg      sync.WaitGroup
}

// NewConsumer prepares a consumer for the given configuration.
func NewConsumer(cfg config.RabbitMQConfig, logger *logrus.Logger, m *metrics.Metrics, sinks ...TradeSink) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.TradesExchange == "" {
		return nil, errors.New("trades exchange is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Consumer{
		cfg:     cfg,
		sinks:   sinks,
		logger:  logger,
		metrics: m,
	}, nil
}

// Start establishes the AMQP connection and begins consuming the trades exchange.
func (c *Consumer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	deliveries, err := c.subscribe()
	if err != nil {
		c.Close()
		return err
	}
	c.wg.Add(1)
	go c.consumeLoop(ctx, deliveries)

	c.logger.WithField("exchange", c.cfg.TradesExchange).Info("rabbitmq consumer started")
	return nil
}

// Run starts the consumer and blocks until ctx is done or the broker closes the connection.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	closed := c.conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		c.Close()
		return nil
	case amqpErr := <-closed:
		c.Close()
		if amqpErr != nil {
			return fmt.Errorf("rabbitmq connection closed: %w", amqpErr)
		}
		return nil
	}
}

// Close stops consumption and releases resources.
func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	exchange := c.cfg.TradesExchange
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("start consume: %w", err)
	}
	c.channel = ch
	return deliveries, nil
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.WithField("exchange", c.cfg.TradesExchange)
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handleDelivery(&delivery); err != nil {
				log.WithError(err).Warn("failed to process message")
				_ = delivery.Nack(false, !errors.Is(err, errMalformed))
				continue
			}
			if err := delivery.Ack(false); err != nil {
				log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

func (c *Consumer) handleDelivery(delivery *amqp.Delivery) error {
	var payload TradeMessage
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		return fmt.Errorf("%w: decode payload: %v", errMalformed, err)
	}
	symbol := instruments.NormalizeSymbol(payload.Symbol)
	if symbol == "" {
		return fmt.Errorf("%w: symbol is empty", errMalformed)
	}

	trades, dropped := footprint.DecodeBatch(payload.Trades)
	c.metrics.TradesIngested("rabbitmq", len(trades), dropped)
	if dropped > 0 {
		c.logger.WithFields(logrus.Fields{"symbol": symbol, "dropped": dropped}).Debug("dropped invalid trades")
	}
	if len(trades) == 0 {
		return nil
	}
	for i := range trades {
		trades[i].Symbol = symbol
	}
	for _, sink := range c.sinks {
		sink.Add(trades...)
	}
	return nil
}
