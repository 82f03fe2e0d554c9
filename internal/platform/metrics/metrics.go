// Package metrics はPrometheus形式のメトリクスを提供します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "retail"

// Metrics はアプリケーションのメトリクスを保持します。専用のレジストリに登録するため複数生成できます。
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	detectionRequests *prometheus.CounterVec
	detectionDuration *prometheus.HistogramVec
	detectedProducts  *prometheus.CounterVec
}

// New はメトリクスを生成してレジストリに登録します。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		detectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_requests_total",
			Help:      "Detection requests by input kind and outcome (ok, rejected, error).",
		}, []string{"kind", "outcome"}),
		detectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "End-to-end detection latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		detectedProducts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detected_products_total",
			Help:      "Detections returned to clients, split by whether they matched a catalog product.",
		}, []string{"kind", "matched"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.detectionRequests,
		m.detectionDuration,
		m.detectedProducts,
	)
	return m
}

// Registry はメトリクスのレジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用のHTTPハンドラーを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDetection は1件の検出リクエストの結果を記録します。
// matched, unmatched はカタログに該当した検出と該当しなかった検出の件数です。
func (m *Metrics) ObserveDetection(kind, outcome string, elapsed time.Duration, matched, unmatched int) {
	m.detectionRequests.WithLabelValues(kind, outcome).Inc()
	m.detectionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	if matched > 0 {
		m.detectedProducts.WithLabelValues(kind, "true").Add(float64(matched))
	}
	if unmatched > 0 {
		m.detectedProducts.WithLabelValues(kind, "false").Add(float64(unmatched))
	}
}

// Middleware はHTTPリクエスト数をルートとステータスコードごとに数えるginミドルウェアです。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
