package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderflow/internal/domain/entity/instruments"
	apperrors "orderflow/internal/errors"
)

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// FetchInstrument reads the assets and PRICE_FILTER tick size of symbol from /api/v3/exchangeInfo.
func (c *Client) FetchInstrument(ctx context.Context, symbol string) (instruments.Instrument, error) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	query := url.Values{}
	query.Set("symbol", upper)

	var info exchangeInfo
	if err := c.getJSON(ctx, "/api/v3/exchangeInfo", query, &info); err != nil {
		return instruments.Instrument{}, err
	}
	for _, s := range info.Symbols {
		if s.Symbol != upper {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType != "PRICE_FILTER" {
				continue
			}
			tick, err := strconv.ParseFloat(f.TickSize, 64)
			if err != nil || tick <= 0 {
				return instruments.Instrument{}, apperrors.UpstreamFetch(source, fmt.Errorf("invalid tick size %q for %s", f.TickSize, upper))
			}
			return instruments.Instrument{
				Symbol:     instruments.NormalizeSymbol(upper),
				BaseAsset:  s.BaseAsset,
				QuoteAsset: s.QuoteAsset,
				TickSize:   tick,
				Source:     instruments.TickSourceExchange,
				UpdatedAt:  time.Now().UTC(),
			}, nil
		}
	}
	return instruments.Instrument{}, apperrors.UpstreamFetch(source, fmt.Errorf("no PRICE_FILTER for %s", upper))
}

// FetchTickSize returns the PRICE_FILTER tick size of symbol.
func (c *Client) FetchTickSize(ctx context.Context, symbol string) (float64, error) {
	inst, err := c.FetchInstrument(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return inst.TickSize, nil
}
