package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	tradesIngested      *prometheus.CounterVec
	tradesDropped       *prometheus.CounterVec
	batchFlushes        *prometheus.CounterVec
	upstreamFetches     *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	retentionDeleted    prometheus.Counter
	activeSessions      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orderflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		tradesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_trades_ingested_total",
				Help: "Trades accepted after normalization",
			},
			[]string{"source"},
		),
		tradesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_trades_dropped_total",
				Help: "Trades rejected by normalization",
			},
			[]string{"source"},
		),
		batchFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_batch_flushes_total",
				Help: "Trade batch flushes by outcome",
			},
			[]string{"status"},
		),
		upstreamFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_upstream_fetches_total",
				Help: "Upstream history fetches by outcome",
			},
			[]string{"source", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderflow_cache_lookups_total",
				Help: "Cache lookups by result",
			},
			[]string{"result"},
		),
		retentionDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orderflow_retention_deleted_total",
				Help: "Trades removed by retention",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orderflow_sessions_active",
				Help: "Number of live streaming sessions",
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tradesIngested,
		m.tradesDropped,
		m.batchFlushes,
		m.upstreamFetches,
		m.cacheLookups,
		m.retentionDeleted,
		m.activeSessions,
	)
	return m
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TradesIngested(source string, accepted, dropped int) {
	if m == nil {
		return
	}
	m.tradesIngested.WithLabelValues(source).Add(float64(accepted))
	m.tradesDropped.WithLabelValues(source).Add(float64(dropped))
}

func (m *Metrics) BatchFlush(err error) {
	if m == nil {
		return
	}
	m.batchFlushes.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) UpstreamFetch(source string, err error) {
	if m == nil {
		return
	}
	m.upstreamFetches.WithLabelValues(source, outcome(err)).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RetentionDeleted(n int64) {
	if m == nil {
		return
	}
	m.retentionDeleted.Add(float64(n))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
