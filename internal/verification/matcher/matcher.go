// Package matcher decides one verification attempt: raw text in, verdict out.
//
// The attempt walks RECEIVED → PARSED → {EXACT_MATCHED | CANDIDATE_FOUND |
// NO_MATCH} and ends in one of the four verdict outcomes. The fingerprint
// lookup always runs first; the identifier fallback is never consulted once an
// exact match exists. A Matcher holds no per-attempt state and may be shared.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	credmodels "shebacred/internal/credential/models"
	"shebacred/internal/extraction"
	"shebacred/internal/verification/metrics"
	"shebacred/internal/verification/models"
	"shebacred/internal/verification/similarity"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/sentinel"
)

// Threshold is the name similarity a candidate must strictly exceed.
const Threshold = 90

var tracer = otel.Tracer("shebacred/verification/matcher")

// Registry is the read-only lookup surface of the trusted registry. Both
// methods return sentinel.ErrNotFound on a miss.
type Registry interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*credmodels.TrustedCredential, error)
	FindByIdentifier(ctx context.Context, identifier string) (*credmodels.TrustedCredential, error)
}

// Result is a verdict together with the parse and the record that decided it.
type Result struct {
	Verdict    models.Verdict
	Extraction *extraction.Extraction
	// Record is the matched or candidate record, nil otherwise.
	Record *credmodels.TrustedCredential
	// Score is the similarity computed on the identifier fallback, or -1 when
	// no candidate was scored.
	Score int
}

type Matcher struct {
	registry  Registry
	extractor *extraction.Extractor
	scorer    similarity.Scorer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Matcher)

// WithScorer replaces the name similarity function.
func WithScorer(scorer similarity.Scorer) Option {
	return func(m *Matcher) { m.scorer = scorer }
}

func WithExtractor(e *extraction.Extractor) Option {
	return func(m *Matcher) { m.extractor = e }
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Matcher) { m.metrics = metrics }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

func New(registry Registry, opts ...Option) *Matcher {
	m := &Matcher{
		registry: registry,
		scorer:   similarity.Levenshtein,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.extractor == nil {
		m.extractor = extraction.New()
	}
	return m
}

// Match runs one attempt for docID. Domain outcomes are verdicts; an error
// means the registry could not be consulted.
func (m *Matcher) Match(ctx context.Context, docID id.DocumentID, text string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "matcher.Match")
	defer span.End()
	start := time.Now()
	defer m.metrics.ObserveMatch(start)

	res, err := m.match(ctx, docID, text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("outcome", string(res.Verdict.Outcome)),
		attribute.String("reason", string(res.Verdict.Reason)),
	)
	m.metrics.RecordVerdict(string(res.Verdict.Outcome), string(res.Verdict.Reason))
	m.logger.DebugContext(ctx, "verification attempt decided",
		"document_id", docID,
		"outcome", res.Verdict.Outcome,
		"reason", res.Verdict.Reason,
		"score", res.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (m *Matcher) match(ctx context.Context, docID id.DocumentID, text string) (*Result, error) {
	// RECEIVED → PARSED
	parsed, err := m.extractor.Extract(text)
	if err != nil {
		return &Result{Verdict: models.ParseFailed(), Score: -1}, nil
	}
	for field, tier := range parsed.Provenance {
		m.metrics.RecordTier(field, tier.String())
	}
	res := &Result{Extraction: parsed, Score: -1}

	// PARSED → EXACT_MATCHED
	exact, err := m.lookup(ctx, "fingerprint", parsed.Fields.Fingerprint(), m.registry.FindByFingerprint)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		res.Record = exact
		if !exact.Status.IsActive() {
			res.Verdict = models.Unverified(models.ReasonRecordInactive)
			return res, nil
		}
		res.Verdict = models.Verified(exact)
		return res, nil
	}

	// PARSED → CANDIDATE_FOUND, anchored on the identifier only.
	identifier := parsed.Fields.Identifier()
	if identifier == "" {
		res.Verdict = models.Unverified(models.ReasonNoIdentifier)
		return res, nil
	}
	candidate, err := m.lookup(ctx, "identifier", identifier, m.registry.FindByIdentifier)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		res.Verdict = models.Unverified(models.ReasonNoRecordForIdentifier)
		return res, nil
	}

	res.Score = m.scorer(candidate.Fields.Name(), parsed.Fields.Name())
	m.metrics.ObserveScore(res.Score)
	if res.Score <= Threshold {
		res.Verdict = models.Unverified(models.ReasonBelowThreshold)
		return res, nil
	}
	res.Record = candidate
	if !candidate.Status.IsActive() {
		res.Verdict = models.Unverified(models.ReasonRecordInactive)
		return res, nil
	}
	res.Verdict = models.ConfirmationRequired(candidate, docID, res.Score)
	return res, nil
}

func (m *Matcher) lookup(
	ctx context.Context,
	index, key string,
	find func(context.Context, string) (*credmodels.TrustedCredential, error),
) (*credmodels.TrustedCredential, error) {
	ctx, span := tracer.Start(ctx, "matcher.lookup_"+index)
	defer span.End()

	cred, err := find(ctx, key)
	switch {
	case err == nil:
		return cred, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil
	default:
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "registry lookup by "+index+" failed")
	}
}
