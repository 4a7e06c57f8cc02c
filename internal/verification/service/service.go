// Package service runs verification attempts for user documents and owns the
// confirmation transition that links a document to a trusted record.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	credmodels "shebacred/internal/credential/models"
	"shebacred/internal/verification/matcher"
	"shebacred/internal/verification/metrics"
	"shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	audit "shebacred/pkg/platform/audit"
	"shebacred/pkg/platform/sentinel"
	"shebacred/pkg/platform/tx"
	"shebacred/pkg/requestcontext"
)

var tracer = otel.Tracer("shebacred/verification")

const (
	defaultBatchLimit       = 20
	defaultBatchConcurrency = 4
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

// Registry is the read side of the trusted registry.
type Registry interface {
	FindByID(ctx context.Context, credID id.CredentialID) (*credmodels.TrustedCredential, error)
}

type Matcher interface {
	Match(ctx context.Context, docID id.DocumentID, text string) (*matcher.Result, error)
}

// Recognizer turns a certificate image into raw text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Submission is a document after an attempt together with that attempt's
// verdict.
type Submission struct {
	Document *models.Document
	Verdict  models.Verdict
}

type Service struct {
	documents        DocumentStore
	registry         Registry
	matcher          Matcher
	tx               tx.Runner
	auditor          AuditPublisher
	recognizer       Recognizer
	metrics          *metrics.Metrics
	logger           *slog.Logger
	batchLimit       int
	batchConcurrency int
}

type Option func(*Service)

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithRecognizer enables image submissions.
func WithRecognizer(r Recognizer) Option {
	return func(s *Service) { s.recognizer = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithBatchLimits caps batch size and fan-out.
func WithBatchLimits(maxTexts, concurrency int) Option {
	return func(s *Service) {
		if maxTexts > 0 {
			s.batchLimit = maxTexts
		}
		if concurrency > 0 {
			s.batchConcurrency = concurrency
		}
	}
}

func New(documents DocumentStore, registry Registry, m Matcher, opts ...Option) *Service {
	s := &Service{
		documents:        documents,
		registry:         registry,
		matcher:          m,
		logger:           slog.Default(),
		batchLimit:       defaultBatchLimit,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	return s
}

// Submit creates a document owned by principal and runs the first attempt.
func (s *Service) Submit(ctx context.Context, principal id.PrincipalID, text string) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "verification.Submit")
	defer span.End()

	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal required")
	}

	now := requestcontext.Now(ctx)
	doc := models.NewDocument(principal, text, now)
	res, err := s.matcher.Match(ctx, doc.ID, text)
	if err != nil {
		return nil, err
	}
	doc.Record(text, res.Verdict, now)

	err = s.tx.RunInTx(tx.WithLockKey(ctx, doc.ID.String()), func(ctx context.Context) error {
		if err := s.documents.Create(ctx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("document_id", doc.ID.String()),
		attribute.String("outcome", string(res.Verdict.Outcome)),
	)
	s.emitBestEffort(ctx, audit.EventDocumentSubmitted, doc, "", "")
	s.recordOutcome(ctx, doc, res)
	return &Submission{Document: doc, Verdict: res.Verdict}, nil
}

// Resubmit runs a new attempt for an existing document. A linked document is
// not re-verified: it reports VERIFIED while its record is active and
// record_inactive once the record is revoked or expired. A document with
// a pending candidate must be confirmed or abandoned first.
func (s *Service) Resubmit(ctx context.Context, principal id.PrincipalID, docID id.DocumentID, text string) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "verification.Resubmit")
	defer span.End()

	doc, err := s.owned(ctx, principal, docID, s.documents.FindByID)
	if err != nil {
		return nil, err
	}
	if doc.IsLinked() {
		verdict, err := s.linkedVerdict(ctx, doc)
		if err != nil {
			return nil, err
		}
		return &Submission{Document: doc, Verdict: verdict}, nil
	}
	if doc.HasPendingCandidate() {
		return nil, pendingCandidate()
	}

	res, err := s.matcher.Match(ctx, docID, text)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(tx.WithLockKey(ctx, docID.String()), func(ctx context.Context) error {
		locked, err := s.owned(ctx, principal, docID, s.documents.FindByIDForUpdate)
		if err != nil {
			return err
		}
		if locked.IsLinked() {
			return dErrors.New(dErrors.CodeConflict, "document is already verified")
		}
		if locked.HasPendingCandidate() {
			return pendingCandidate()
		}
		locked.Record(text, res.Verdict, requestcontext.Now(ctx))
		if err := s.documents.Update(ctx, locked); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
		}
		doc = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordOutcome(ctx, doc, res)
	return &Submission{Document: doc, Verdict: res.Verdict}, nil
}

// Confirm accepts the candidate surfaced for docID and links the document to
// it. The document row is locked for the whole check-and-link, so of two
// concurrent confirmations exactly one succeeds. Every identity mismatch is
// reported with the same not-found error.
func (s *Service) Confirm(ctx context.Context, principal id.PrincipalID, docID id.DocumentID, candidateID id.CredentialID) (*models.Verdict, error) {
	ctx, span := tracer.Start(ctx, "verification.Confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", docID.String()),
		attribute.String("candidate_id", candidateID.String()),
	)

	var verdict models.Verdict
	err := s.tx.RunInTx(tx.WithLockKey(ctx, docID.String()), func(ctx context.Context) error {
		doc, err := s.owned(ctx, principal, docID, s.documents.FindByIDForUpdate)
		if err != nil {
			return err
		}
		if doc.IsLinked() {
			return dErrors.New(dErrors.CodeConflict, "document is already verified")
		}
		if !doc.HasPendingCandidate() || doc.CandidateID != candidateID {
			return confirmationRejected()
		}
		cred, err := s.registry.FindByID(ctx, candidateID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return confirmationRejected()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
		}
		if !cred.Status.IsActive() {
			return confirmationRejected()
		}

		before := *doc
		doc.Link(cred.ID, requestcontext.Now(ctx))
		if err := s.saveAudited(ctx, before, doc, audit.EventCandidateConfirmed, string(models.OutcomeVerified), ""); err != nil {
			return err
		}
		verdict = models.Verified(cred)
		return nil
	})
	if err != nil {
		s.confirmFailed(ctx, principal, docID, err)
		return nil, err
	}

	s.metrics.RecordConfirmation("confirmed")
	s.logger.InfoContext(ctx, "candidate confirmed",
		"document_id", docID,
		"candidate_id", candidateID,
		"principal_id", principal,
	)
	return &verdict, nil
}

// Abandon discards the pending candidate so new text may be submitted.
func (s *Service) Abandon(ctx context.Context, principal id.PrincipalID, docID id.DocumentID) (*models.Document, error) {
	ctx, span := tracer.Start(ctx, "verification.Abandon")
	defer span.End()

	var out *models.Document
	err := s.tx.RunInTx(tx.WithLockKey(ctx, docID.String()), func(ctx context.Context) error {
		doc, err := s.owned(ctx, principal, docID, s.documents.FindByIDForUpdate)
		if err != nil {
			return err
		}
		if !doc.HasPendingCandidate() {
			return dErrors.New(dErrors.CodeConflict, "document has no pending candidate")
		}
		before := *doc
		doc.Abandon(requestcontext.Now(ctx))
		if err := s.saveAudited(ctx, before, doc, audit.EventCandidateAbandoned, "", string(models.ReasonCandidateAbandoned)); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConfirmation("abandoned")
	s.logger.InfoContext(ctx, "candidate abandoned", "document_id", docID, "principal_id", principal)
	return out, nil
}

// Get returns one of principal's documents.
func (s *Service) Get(ctx context.Context, principal id.PrincipalID, docID id.DocumentID) (*models.Document, error) {
	return s.owned(ctx, principal, docID, s.documents.FindByID)
}

// PublicStatus reports whether a document is verified against an active
// record, without revealing fields or the owner.
func (s *Service) PublicStatus(ctx context.Context, docID id.DocumentID) (*models.PublicStatus, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, documentNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	status := &models.PublicStatus{DocumentID: doc.ID.String()}
	if !doc.IsLinked() {
		return status, nil
	}
	cred, err := s.registry.FindByID(ctx, doc.VerifiedCredentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return status, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	status.Verified = cred.Status.IsActive()
	status.IssuerID = cred.IssuerID.String()
	status.CredentialStatus = cred.Status
	status.VerifiedAt = doc.UpdatedAt.UTC().Format(time.RFC3339)
	return status, nil
}

// VerifyBatch submits each text as its own document. Attempts run
// concurrently and independently; results keep input order.
func (s *Service) VerifyBatch(ctx context.Context, principal id.PrincipalID, texts []string) ([]*Submission, error) {
	ctx, span := tracer.Start(ctx, "verification.VerifyBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(texts)))

	if len(texts) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "texts must not be empty")
	}
	if len(texts) > s.batchLimit {
		return nil, dErrors.New(dErrors.CodeValidation, "too many texts in one batch")
	}

	out := make([]*Submission, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			sub, err := s.Submit(gctx, principal, text)
			if err != nil {
				return err
			}
			out[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitImage recognizes text in image and submits it.
func (s *Service) SubmitImage(ctx context.Context, principal id.PrincipalID, image []byte) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "verification.SubmitImage")
	defer span.End()

	if s.recognizer == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "text recognition is not configured")
	}
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal required")
	}
	if len(image) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "image must not be empty")
	}
	text, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		s.metrics.RecordOCR("error")
		span.RecordError(err)
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "text recognition failed")
	}
	s.metrics.RecordOCR("ok")
	return s.Submit(ctx, principal, text)
}

func (s *Service) owned(
	ctx context.Context,
	principal id.PrincipalID,
	docID id.DocumentID,
	load func(context.Context, id.DocumentID) (*models.Document, error),
) (*models.Document, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "principal required")
	}
	doc, err := load(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, documentNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if doc.OwnerID != principal {
		return nil, documentNotFound()
	}
	return doc, nil
}

func (s *Service) linkedVerdict(ctx context.Context, doc *models.Document) (models.Verdict, error) {
	cred, err := s.registry.FindByID(ctx, doc.VerifiedCredentialID)
	if err != nil {
		return models.Verdict{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load linked credential")
	}
	if !cred.Status.IsActive() {
		return models.Unverified(models.ReasonRecordInactive), nil
	}
	return models.Verified(cred), nil
}

func (s *Service) recordOutcome(ctx context.Context, doc *models.Document, res *matcher.Result) {
	var event audit.AuditEvent
	switch res.Verdict.Outcome {
	case models.OutcomeVerified:
		event = audit.EventDocumentVerified
	case models.OutcomeConfirmationRequired:
		event = audit.EventConfirmationRequired
	case models.OutcomeUnverified:
		event = audit.EventVerificationUnverified
	default:
		event = audit.EventVerificationParseFailed
	}
	s.emitBestEffort(ctx, event, doc, string(res.Verdict.Outcome), string(res.Verdict.Reason))

	attrs := []any{
		"document_id", doc.ID,
		"principal_id", doc.OwnerID,
		"outcome", res.Verdict.Outcome,
	}
	if res.Verdict.Reason != "" {
		attrs = append(attrs, "reason", res.Verdict.Reason)
	}
	if res.Score >= 0 {
		attrs = append(attrs, "score", res.Score)
	}
	if res.Extraction != nil {
		attrs = append(attrs, "fields", len(res.Extraction.Fields))
	}
	if !res.Verdict.CandidateID.IsNil() {
		attrs = append(attrs, "candidate_id", res.Verdict.CandidateID)
	}
	s.logger.InfoContext(ctx, "verification attempt recorded", attrs...)
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, doc *models.Document, decision, reason string) error {
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:   requestcontext.Now(ctx),
		PrincipalID: doc.OwnerID,
		Subject:     doc.ID.String(),
		Action:      string(event),
		Decision:    decision,
		Reason:      reason,
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// saveAudited persists doc and then records a fail-closed event. When the
// event is lost the stored document is put back to before, so a rejected
// decision leaves no trace even under a runner that cannot roll back.
func (s *Service) saveAudited(ctx context.Context, before models.Document, doc *models.Document, event audit.AuditEvent, decision, reason string) error {
	if err := s.documents.Update(ctx, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save document")
	}
	err := s.emit(ctx, event, doc, decision, reason)
	if err == nil {
		return nil
	}
	if restoreErr := s.documents.Update(ctx, &before); restoreErr != nil {
		s.logger.ErrorContext(ctx, "failed to restore document after audit failure",
			"document_id", doc.ID,
			"action", event,
			"error", restoreErr,
		)
	}
	return err
}

// emitBestEffort records attempt events. Attempts are reproducible from the
// stored text, so a lost event is logged rather than failing the request.
func (s *Service) emitBestEffort(ctx context.Context, event audit.AuditEvent, doc *models.Document, decision, reason string) {
	if err := s.emit(ctx, event, doc, decision, reason); err != nil {
		s.logger.WarnContext(ctx, "audit event dropped",
			"action", event,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func (s *Service) confirmFailed(ctx context.Context, principal id.PrincipalID, docID id.DocumentID, err error) {
	result := "rejected"
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		result = "conflict"
	}
	s.metrics.RecordConfirmation(result)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	s.emitBestEffort(ctx, audit.EventConfirmationRejected, &models.Document{ID: docID, OwnerID: principal}, "rejected", "")
	s.logger.WarnContext(ctx, "confirmation rejected", "document_id", docID, "principal_id", principal)
}

func documentNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "document not found")
}

// confirmationRejected must stay indistinguishable from documentNotFound.
func confirmationRejected() error {
	return documentNotFound()
}

func pendingCandidate() error {
	return dErrors.New(dErrors.CodeConflict, "document has a pending candidate; confirm or abandon it first")
}
