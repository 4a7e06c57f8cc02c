package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics shared by every router.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheba_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_http_auth_failures_total",
			Help: "Rejected bearer tokens by reason",
		}, []string{"reason"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_http_rate_limited_total",
			Help: "Requests rejected by the per-principal rate limit, by route pattern",
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}
