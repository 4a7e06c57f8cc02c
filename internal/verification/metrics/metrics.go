package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification attempts. All methods are
// nil-safe.
type Metrics struct {
	Verdicts         *prometheus.CounterVec
	ExtractionTiers  *prometheus.CounterVec
	SimilarityScores prometheus.Histogram
	MatchDuration    prometheus.Histogram
	Confirmations    *prometheus.CounterVec
	OCRRequests      *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_verification_verdicts_total",
			Help: "Verification verdicts by outcome and reason",
		}, []string{"outcome", "reason"}),
		ExtractionTiers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_extraction_field_hits_total",
			Help: "Extracted fields by field key and cascade tier",
		}, []string{"field", "tier"}),
		SimilarityScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheba_name_similarity_score",
			Help:    "Name similarity scores computed on identifier fallback",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		MatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheba_match_duration_seconds",
			Help:    "Duration of one verification attempt from raw text to verdict",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_confirmations_total",
			Help: "Candidate confirmation decisions by result",
		}, []string{"result"}),
		OCRRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sheba_ocr_requests_total",
			Help: "Text recognition calls by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordVerdict(outcome, reason string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) RecordTier(field, tier string) {
	if m == nil {
		return
	}
	m.ExtractionTiers.WithLabelValues(field, tier).Inc()
}

func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.SimilarityScores.Observe(float64(score))
}

// ObserveMatch records attempt latency. Call with time.Now() taken at the start.
func (m *Metrics) ObserveMatch(start time.Time) {
	if m == nil {
		return
	}
	m.MatchDuration.Observe(time.Since(start).Seconds())
}

// RecordConfirmation counts a decision: confirmed, abandoned, rejected, conflict.
func (m *Metrics) RecordConfirmation(result string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordOCR(result string) {
	if m == nil {
		return
	}
	m.OCRRequests.WithLabelValues(result).Inc()
}
