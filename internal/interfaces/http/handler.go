// @title           Order Flow Footprint API
// @version         1.0
// @description     Footprint bars, trade ingestion, history and live order flow sessions

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	appinstruments "orderflow/internal/application/service/instruments"
	"orderflow/internal/application/service/orderflow"
	"orderflow/internal/cache"
	"orderflow/internal/config"
	domaininstruments "orderflow/internal/domain/entity/instruments"
	"orderflow/internal/domain/entity/marketdata"
	apperrors "orderflow/internal/errors"
	"orderflow/internal/metrics"
)

const (
	apiBasePath         = "/api/v1"
	orderflowBasePath   = apiBasePath + "/orderflow"
	instrumentsBasePath = apiBasePath + "/instruments"
)

var (
	errMissingSymbol  = errors.New("symbol is required")
	errInvalidPayload = errors.New("invalid payload")
)

// Dependencies of Handler. Orderflow is required.
type Dependencies struct {
	Orderflow   *orderflow.Service
	Instruments *appinstruments.Service
	// ResponseCache backs the GET response cache; nil disables it.
	ResponseCache cache.Store
	CacheTTL      time.Duration
	Session       config.SessionConfig
	Metrics       *metrics.Metrics
	Logger        *logrus.Logger
}

type Handler struct {
	router      *gin.Engine
	orderflow   *orderflow.Service
	instruments *appinstruments.Service
	cache       cache.Store
	cacheTTL    time.Duration
	session     config.SessionConfig
	metrics     *metrics.Metrics
	logger      *logrus.Entry
	upgrader    websocket.Upgrader
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:      router,
		orderflow:   deps.Orderflow,
		instruments: deps.Instruments,
		cache:       deps.ResponseCache,
		cacheTTL:    deps.CacheTTL,
		session:     deps.Session,
		metrics:     deps.Metrics,
		logger:      logger.WithField("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	router.Use(h.accessLog())
	if h.metrics != nil {
		router.Use(h.metrics.Middleware())
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)
	h.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if h.metrics != nil {
		h.router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	h.router.GET(apiBasePath+"/footprint", h.getFootprint)

	of := h.router.Group(orderflowBasePath)
	{
		of.POST("/ingest", h.ingestTrades)
		of.GET("/history", h.cacheMiddleware(), h.getHistory)
		of.GET("/session-stats", h.getSessionStats)
		of.GET("/stream", h.streamSession)
	}

	if h.instruments != nil {
		inst := h.router.Group(instrumentsBasePath)
		inst.Use(h.cacheMiddleware())
		{
			inst.GET("", h.listInstruments)
			inst.GET("/:symbol", h.getInstrument)
			inst.PUT("", h.upsertInstrument)
		}
	}
}

// health reports liveness
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Footprint handlers

type footprintResponse struct {
	Bars []marketdata.FootprintBar `json:"bars"`
}

// getFootprint returns footprint bars for a symbol
// @Summary      Get footprint bars
// @Description  Aggregates stored trades into time x price footprint bars ending at the close of the current bar
// @Tags         footprint
// @Produce      json
// @Param        symbol     query     string  true   "Symbol, case-insensitive"
// @Param        timeframe  query     string  true   "Bar timeframe (5s, 15s, 30s, 1m, 3m, 5m, 15m, 30m, 1h, 4h, 1d)"
// @Param        priceStep  query     number  false  "Price step; derived from the trades when absent or invalid"
// @Param        maxBars    query     int     false  "Number of bars, 1..500, default 120"
// @Success      200        {object}  footprintResponse
// @Failure      400        {object}  map[string]string
// @Failure      500        {object}  map[string]string
// @Router       /footprint [get]
func (h *Handler) getFootprint(c *gin.Context) {
	query := orderflow.FootprintQuery{
		Symbol:    c.Query("symbol"),
		Timeframe: c.Query("timeframe"),
		PriceStep: parsePositiveFloat(c.Query("priceStep")),
		MaxBars:   parseIntOrZero(c.Query("maxBars")),
	}
	bars, err := h.orderflow.Footprint(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err, "failed to generate footprint")
		return
	}
	if bars == nil {
		bars = []marketdata.FootprintBar{}
	}
	c.JSON(http.StatusOK, footprintResponse{Bars: bars})
}

// Order flow handlers

type ingestRequest struct {
	Symbol string            `json:"symbol"`
	Trades []json.RawMessage `json:"trades"`
}

// ingestTrades stores a batch of trades
// @Summary      Ingest trades
// @Description  Validates each trade independently, stores the valid ones and publishes them to live sessions
// @Tags         orderflow
// @Accept       json
// @Produce      json
// @Param        payload  body      ingestRequest  true  "Symbol and trades"
// @Success      200      {object}  orderflow.IngestResult
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /orderflow/ingest [post]
func (h *Handler) ingestTrades(c *gin.Context) {
	var payload ingestRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, errInvalidPayload)
		return
	}
	result, err := h.orderflow.Ingest(c.Request.Context(), payload.Symbol, payload.Trades)
	if err != nil {
		h.respondError(c, err, "failed to ingest trades")
		return
	}
	c.JSON(http.StatusOK, result)
}

type historyResponse struct {
	Trades []marketdata.Trade `json:"trades"`
}

// getHistory returns raw trades of a recent window
// @Summary      Get trade history
// @Description  Raw normalized trades, ascending by timestamp
// @Tags         orderflow
// @Produce      json
// @Param        symbol         query     string  true   "Symbol"
// @Param        windowSeconds  query     int     false  "Lookback in seconds, default 900, max 86400"
// @Param        maxPoints      query     int     false  "Maximum trades, default 5000, max 50000"
// @Param        source         query     string  false  "db, exchange or auto"
// @Success      200            {object}  historyResponse
// @Failure      400            {object}  map[string]string
// @Failure      502            {object}  map[string]string
// @Failure      500            {object}  map[string]string
// @Router       /orderflow/history [get]
func (h *Handler) getHistory(c *gin.Context) {
	trades, err := h.orderflow.History(c.Request.Context(), orderflow.HistoryQuery{
		Symbol:        c.Query("symbol"),
		WindowSeconds: parseIntOrZero(c.Query("windowSeconds")),
		MaxPoints:     parseIntOrZero(c.Query("maxPoints")),
		Source:        strings.ToLower(strings.TrimSpace(c.Query("source"))),
	})
	if err != nil {
		h.respondError(c, err, "failed to load history")
		return
	}
	if trades == nil {
		trades = []marketdata.Trade{}
	}
	c.JSON(http.StatusOK, historyResponse{Trades: trades})
}

// getSessionStats summarizes a recent window
// @Summary      Get session stats
// @Description  Buy and sell volume, net delta, VWAP and the largest 60s cluster
// @Tags         orderflow
// @Produce      json
// @Param        symbol                query     string  true   "Symbol"
// @Param        sessionWindowSeconds  query     int     false  "Window in seconds, default and max 86400"
// @Success      200                   {object}  marketdata.SessionStats
// @Failure      400                   {object}  map[string]string
// @Failure      500                   {object}  map[string]string
// @Router       /orderflow/session-stats [get]
func (h *Handler) getSessionStats(c *gin.Context) {
	window := c.Query("sessionWindowSeconds")
	if window == "" {
		window = c.Query("windowSeconds")
	}
	stats, err := h.orderflow.SessionStats(c.Request.Context(), c.Query("symbol"), parseIntOrZero(window))
	if err != nil {
		h.respondError(c, err, "failed to compute session stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Instruments handlers

type instrumentPayload struct {
	Symbol     string  `json:"symbol" binding:"required"`
	BaseAsset  string  `json:"base_asset"`
	QuoteAsset string  `json:"quote_asset"`
	TickSize   float64 `json:"tick_size" binding:"required,gt=0"`
}

func (p instrumentPayload) toDomain() *domaininstruments.Instrument {
	return &domaininstruments.Instrument{
		Symbol:     domaininstruments.NormalizeSymbol(p.Symbol),
		BaseAsset:  strings.ToUpper(p.BaseAsset),
		QuoteAsset: strings.ToUpper(p.QuoteAsset),
		TickSize:   p.TickSize,
		Source:     domaininstruments.TickSourceDatabase,
		UpdatedAt:  time.Now().UTC(),
	}
}

type instrumentResponse struct {
	Symbol     string    `json:"symbol"`
	BaseAsset  string    `json:"base_asset,omitempty"`
	QuoteAsset string    `json:"quote_asset,omitempty"`
	TickSize   float64   `json:"tick_size"`
	Source     string    `json:"source"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

func newInstrumentResponse(inst domaininstruments.Instrument) instrumentResponse {
	return instrumentResponse{
		Symbol:     inst.Symbol,
		BaseAsset:  inst.BaseAsset,
		QuoteAsset: inst.QuoteAsset,
		TickSize:   inst.TickSize,
		Source:     inst.Source.String(),
		UpdatedAt:  inst.UpdatedAt,
	}
}

// listInstruments lists stored instruments
// @Summary      List instruments
// @Tags         instruments
// @Produce      json
// @Success      200  {array}   instrumentResponse
// @Failure      500  {object}  map[string]string
// @Router       /instruments [get]
func (h *Handler) listInstruments(c *gin.Context) {
	list, err := h.instruments.ListInstruments(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list instruments")
		return
	}
	out := make([]instrumentResponse, 0, len(list))
	for _, inst := range list {
		out = append(out, newInstrumentResponse(inst))
	}
	c.JSON(http.StatusOK, out)
}

// getInstrument resolves the tick size of a symbol
// @Summary      Resolve instrument
// @Description  Looks the symbol up in the database, the exchange, then the catalogue
// @Tags         instruments
// @Produce      json
// @Param        symbol  path      string  true  "Symbol"
// @Success      200     {object}  instrumentResponse
// @Failure      400     {object}  map[string]string
// @Router       /instruments/{symbol} [get]
func (h *Handler) getInstrument(c *gin.Context) {
	symbol := domaininstruments.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		writeError(c, http.StatusBadRequest, errMissingSymbol)
		return
	}
	c.JSON(http.StatusOK, newInstrumentResponse(h.instruments.Resolve(c.Request.Context(), symbol)))
}

// upsertInstrument stores a tick size override
// @Summary      Upsert instrument
// @Tags         instruments
// @Accept       json
// @Produce      json
// @Param        instrument  body      instrumentPayload  true  "Instrument"
// @Success      200         {object}  instrumentResponse
// @Failure      400         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /instruments [put]
func (h *Handler) upsertInstrument(c *gin.Context) {
	var payload instrumentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	inst := payload.toDomain()
	if err := h.instruments.UpsertInstrument(c.Request.Context(), inst); err != nil {
		h.respondError(c, err, "failed to store instrument")
		return
	}
	h.evictInstrument(c.Request.Context(), inst.Symbol)
	c.JSON(http.StatusOK, newInstrumentResponse(*inst))
}

// Helpers

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondError maps typed errors to their status. Client errors and upstream
// failures carry their own message; anything else is logged and answered with fallback.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && (status < http.StatusInternalServerError || status == http.StatusBadGateway) {
		if status == http.StatusBadGateway {
			h.logger.WithError(err).WithField("path", c.FullPath()).Warn("upstream fetch failed")
		}
		c.JSON(status, gin.H{"error": appErr.Message})
		return
	}
	h.logger.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	c.JSON(status, gin.H{"error": fallback})
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			return
		}
		h.logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("http request")
	}
}

// cacheMiddleware caches successful GET responses in the response cache.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || h.cacheTTL <= 0 || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		cached, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("response cache read failed")
		}
		h.metrics.CacheLookup(ok)
		if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder
		c.Header("X-Cache", "MISS")

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			if err := h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL); err != nil {
				h.logger.WithError(err).WithField("key", key).Warn("response cache write failed")
			}
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if symbol := c.Param("symbol"); symbol != "" {
		path = strings.Replace(path, ":symbol", domaininstruments.NormalizeSymbol(symbol), 1)
	}
	return responseCacheKey(c.Request.Method, path, c.Request.URL.RawQuery)
}

func responseCacheKey(method, path, rawQuery string) string {
	return fmt.Sprintf("cache:%s:%s?%s", method, path, rawQuery)
}

// evictInstrument drops the cached instrument list and the symbol's cached lookup.
func (h *Handler) evictInstrument(ctx context.Context, symbol string) {
	if h.cache == nil {
		return
	}
	keys := []string{
		responseCacheKey(http.MethodGet, instrumentsBasePath, ""),
		responseCacheKey(http.MethodGet, instrumentsBasePath+"/"+domaininstruments.NormalizeSymbol(symbol), ""),
	}
	if err := h.cache.Delete(ctx, keys...); err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Warn("response cache eviction failed")
	}
}

// parsePositiveFloat returns nil unless value is a finite number above zero.
func parsePositiveFloat(value string) *float64 {
	if value == "" {
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseIntOrZero(value string) int {
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return v
}
