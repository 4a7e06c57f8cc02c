package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trusted credential registry.
// All methods are nil-safe so stores and services may run without metrics.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsAmended prometheus.Counter
	StatusChanges      *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	LookupDuration     *prometheus.HistogramVec
}

// New registers registry metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers registry metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "sheba_credentials_issued_total",
			Help: "Total number of trusted credentials issued",
		}),
		CredentialsAmended: factory.NewCounter(prometheus.CounterOpts{
			Name: "sheba_credentials_amended_total",
			Help: "Total number of trusted credential field amendments",
		}),
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_credential_status_changes_total",
			Help: "Trusted credential lifecycle transitions by target status",
		}, []string{"status"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_registry_cache_lookups_total",
			Help: "Registry cache lookups by index and result (hit, miss, error)",
		}, []string{"index", "result"}),
		LookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheba_registry_lookup_duration_seconds",
			Help:    "Duration of registry lookups by index",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"index"}),
	}
}

func (m *Metrics) IncIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncAmended() {
	if m == nil {
		return
	}
	m.CredentialsAmended.Inc()
}

func (m *Metrics) IncStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// RecordCacheLookup counts a cache lookup against index ("fingerprint" or "identifier").
func (m *Metrics) RecordCacheLookup(index, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(index, result).Inc()
}

// ObserveLookup records lookup latency. Call with time.Now() taken at the start.
func (m *Metrics) ObserveLookup(index string, start time.Time) {
	if m == nil {
		return
	}
	m.LookupDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
}
