package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"orderflow/internal/domain/entity/marketdata"
)

const (
	handshakeTimeout = 10 * time.Second
	baseBackoff      = time.Second
	maxBackoff       = 30 * time.Second
)

// backoff returns the reconnect delay after attempt consecutive failures.
func backoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	return min(maxBackoff, baseBackoff<<attempt)
}

// Stream delivers aggTrades of symbol to handle, reconnecting until ctx is done.
func (c *Client) Stream(ctx context.Context, symbol string, handle func(marketdata.Trade)) error {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	log := c.logger.WithField("symbol", symbol)
	attempt := 0
	for {
		connected, err := c.streamOnce(ctx, symbol, handle)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		delay := backoff(attempt)
		attempt++
		log.WithError(err).WithField("retry_in", delay.String()).Warn("aggTrade stream disconnected")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// streamOnce reads one connection until it fails. connected reports whether the handshake succeeded.
func (c *Client) streamOnce(ctx context.Context, symbol string, handle func(marketdata.Trade)) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	endpoint := fmt.Sprintf("%s/%s@aggTrade", c.wsBaseURL, symbol)
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	c.logger.WithFields(logrus.Fields{"symbol": symbol}).Info("aggTrade stream connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, nil
			}
			return true, err
		}
		var msg aggTrade
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.WithError(err).Debug("skip undecodable aggTrade")
			continue
		}
		trade, err := msg.toTrade(symbol)
		if err != nil {
			continue
		}
		handle(trade)
	}
}
