package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"orderflow/internal/config"
	apperrors "orderflow/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultRESTBaseURL = "https://api.binance.com"
	defaultWSBaseURL   = "wss://stream.binance.com:9443/ws"
	requestTimeout     = 10 * time.Second
	source             = "binance"
)

// Client talks to the Binance spot REST and websocket APIs.
type Client struct {
	restBaseURL string
	wsBaseURL   string
	http        *http.Client
	limiter     *rate.Limiter
	logger      *logrus.Entry
}

func NewClient(cfg config.BinanceConfig, logger *logrus.Logger) *Client {
	rest := strings.TrimRight(cfg.RESTBaseURL, "/")
	if rest == "" {
		rest = defaultRESTBaseURL
	}
	ws := strings.TrimRight(cfg.WSBaseURL, "/")
	if ws == "" {
		ws = defaultWSBaseURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		restBaseURL: rest,
		wsBaseURL:   ws,
		http:        &http.Client{Timeout: requestTimeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
		logger:      logger.WithField("component", "binance"),
	}
}

// getJSON performs a rate limited GET and decodes the body into dest.
// Failures are returned as upstream fetch errors.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.UpstreamFetch(source, err)
	}
	endpoint := c.restBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.UpstreamFetch(source, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.UpstreamFetch(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.UpstreamFetch(source, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperrors.UpstreamFetch(source, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
