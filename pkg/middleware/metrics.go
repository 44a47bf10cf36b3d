package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はHTTPリクエストのPrometheusメトリクスを保持する。
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics はメトリクスを生成し、regに登録する。
// namespaceはメトリクス名の接頭辞になる（例: "notification"）。
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of response durations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Handler はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// パスラベルにはルート定義（例: /api/v1/notification/:user_id）を使い、
// 未定義のパスは "unmatched" にまとめる。
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requests.WithLabelValues(path, method, status).Inc()
		m.duration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
