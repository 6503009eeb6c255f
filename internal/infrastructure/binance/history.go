package binance

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"orderflow/internal/domain/entity/marketdata"
)

const (
	historyMaxPages = 6
	historyPageSize = 1000
)

// FetchTrades pages through /api/v3/aggTrades from since, up to limit trades.
func (c *Client) FetchTrades(ctx context.Context, symbol string, since time.Time, limit int) ([]marketdata.Trade, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	startMs := since.UnixMilli()
	next := startMs
	if limit <= 0 {
		limit = historyMaxPages * historyPageSize
	}

	trades := make([]marketdata.Trade, 0, min(limit, historyMaxPages*historyPageSize))
	dropped := 0
	for page := 0; page < historyMaxPages && len(trades) < limit; page++ {
		query := url.Values{}
		query.Set("symbol", strings.ToUpper(symbol))
		query.Set("startTime", strconv.FormatInt(next, 10))
		query.Set("limit", strconv.Itoa(historyPageSize))

		var payload []aggTrade
		if err := c.getJSON(ctx, "/api/v3/aggTrades", query, &payload); err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			break
		}
		for _, raw := range payload {
			trade, err := raw.toTrade(symbol)
			if err != nil {
				dropped++
				continue
			}
			if trade.TimestampMs >= startMs {
				trades = append(trades, trade)
			}
		}

		last := payload[len(payload)-1].TradeTime
		if len(payload) < historyPageSize || last+1 <= next {
			break
		}
		next = last + 1
	}

	sort.SliceStable(trades, func(i, j int) bool { return trades[i].TimestampMs < trades[j].TimestampMs })
	if len(trades) > limit {
		trades = trades[:limit]
	}
	if dropped > 0 {
		c.logger.WithField("symbol", symbol).WithField("dropped", dropped).Debug("dropped invalid history trades")
	}
	return trades, nil
}
