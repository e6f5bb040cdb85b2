package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 预测结果标签
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics 服务的 Prometheus 指标
type Metrics struct {
	registry *prometheus.Registry

	PredictionsTotal *prometheus.CounterVec
	InferenceSeconds prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New 创建指标并注册到独立的 registry
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_predict_predictions_total",
			Help: "Total number of prediction submissions partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	m.InferenceSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_predict_inference_duration_seconds",
			Help:    "Time taken for one model invocation including preprocessing.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_predict_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_predict_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	collectors := []prometheus.Collector{
		m.PredictionsTotal,
		m.InferenceSeconds,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// ObservePrediction 记录一次提交，nil 安全
func (m *Metrics) ObservePrediction(outcome string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveInference 记录推理耗时，nil 安全
func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceSeconds.Observe(d.Seconds())
}

// ObserveHTTP 记录一次 HTTP 请求，nil 安全
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, fmt.Sprintf("%d", status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
