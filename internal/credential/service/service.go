// Package service owns the trusted credential registry write path. Every
// mutation re-derives the fingerprint through the models package and leaves a
// compliance audit event in the same transaction.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"shebacred/internal/credential/metrics"
	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	audit "shebacred/pkg/platform/audit"
	"shebacred/pkg/platform/sentinel"
	"shebacred/pkg/platform/tx"
	"shebacred/pkg/requestcontext"
)

var tracer = otel.Tracer("shebacred/credential")

type Store interface {
	Save(ctx context.Context, cred *models.TrustedCredential) error
	Update(ctx context.Context, cred *models.TrustedCredential) error
	FindByID(ctx context.Context, credID id.CredentialID) (*models.TrustedCredential, error)
	ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error)
}

// AuditPublisher emits fail-closed compliance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages issuer-scoped trusted credentials.
type Service struct {
	store   Store
	tx      tx.Runner
	auditor AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTxRunner sets the transactional boundary shared by the store and the
// audit sink. Without it mutations run under an in-process lock.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func New(store Store, auditor AuditPublisher, opts ...Option) *Service {
	s := &Service{
		store:   store,
		auditor: auditor,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	return s
}

// Issue registers a new ACTIVE credential for issuer.
func (s *Service) Issue(ctx context.Context, issuer id.IssuerID, fields models.Fields) (*models.TrustedCredential, error) {
	ctx, span := tracer.Start(ctx, "credential.Issue")
	defer span.End()

	cred, err := models.NewTrustedCredential(issuer, fields, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(tx.WithLockKey(ctx, cred.Fingerprint), func(ctx context.Context) error {
		if err := s.store.Save(ctx, cred); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a credential with identical fields is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save credential")
		}
		return s.emit(ctx, audit.EventCredentialIssued, cred, "")
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("credential_id", cred.ID.String()))
	s.metrics.IncIssued()
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", cred.ID,
		"issuer_id", issuer,
		"field_count", len(cred.Fields),
	)
	return cred, nil
}

// Amend replaces a credential's fields and re-derives its fingerprint.
func (s *Service) Amend(ctx context.Context, issuer id.IssuerID, credID id.CredentialID, fields models.Fields) (*models.TrustedCredential, error) {
	ctx, span := tracer.Start(ctx, "credential.Amend")
	defer span.End()

	var updated *models.TrustedCredential
	err := s.mutate(ctx, issuer, credID, func(current *models.TrustedCredential) (*models.TrustedCredential, audit.AuditEvent, error) {
		next, err := current.WithFields(fields, requestcontext.Now(ctx))
		if err != nil {
			return nil, "", err
		}
		updated = next
		return next, audit.EventCredentialAmended, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAmended()
	s.logger.InfoContext(ctx, "credential amended", "credential_id", credID, "issuer_id", issuer)
	return updated, nil
}

// SetStatus moves a credential through its lifecycle.
func (s *Service) SetStatus(ctx context.Context, issuer id.IssuerID, credID id.CredentialID, status models.Status) (*models.TrustedCredential, error) {
	ctx, span := tracer.Start(ctx, "credential.SetStatus")
	defer span.End()

	var updated *models.TrustedCredential
	err := s.mutate(ctx, issuer, credID, func(current *models.TrustedCredential) (*models.TrustedCredential, audit.AuditEvent, error) {
		next, err := current.WithStatus(status, requestcontext.Now(ctx))
		if err != nil {
			return nil, "", err
		}
		updated = next
		return next, audit.EventCredentialStatusChanged, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncStatusChange(string(status))
	s.logger.InfoContext(ctx, "credential status changed",
		"credential_id", credID,
		"issuer_id", issuer,
		"status", status,
	)
	return updated, nil
}

func (s *Service) mutate(
	ctx context.Context,
	issuer id.IssuerID,
	credID id.CredentialID,
	change func(*models.TrustedCredential) (*models.TrustedCredential, audit.AuditEvent, error),
) error {
	return s.tx.RunInTx(tx.WithLockKey(ctx, credID.String()), func(ctx context.Context) error {
		current, err := s.owned(ctx, issuer, credID)
		if err != nil {
			return err
		}
		next, event, err := change(current)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, next); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.New(dErrors.CodeConflict, "a credential with identical fields is already registered")
			case errors.Is(err, sentinel.ErrNotFound):
				return credentialNotFound()
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
		}
		return s.emit(ctx, event, next, string(next.Status))
	})
}

// Get returns one of issuer's credentials.
func (s *Service) Get(ctx context.Context, issuer id.IssuerID, credID id.CredentialID) (*models.TrustedCredential, error) {
	return s.owned(ctx, issuer, credID)
}

// ListByIssuer returns issuer's credentials, oldest first.
func (s *Service) ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error) {
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer scope required")
	}
	creds, err := s.store.ListByIssuer(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

// owned loads a credential, reporting foreign records as not found so
// issuers cannot probe each other's registries.
func (s *Service) owned(ctx context.Context, issuer id.IssuerID, credID id.CredentialID) (*models.TrustedCredential, error) {
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer scope required")
	}
	cred, err := s.store.FindByID(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, credentialNotFound()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if cred.IssuerID != issuer {
		return nil, credentialNotFound()
	}
	return cred, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, cred *models.TrustedCredential, decision string) error {
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:   requestcontext.Now(ctx),
		PrincipalID: requestcontext.PrincipalID(ctx),
		Subject:     cred.ID.String(),
		Action:      string(event),
		Decision:    decision,
		RequestID:   requestcontext.RequestID(ctx),
		ActorID:     cred.IssuerID.String(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func credentialNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "credential not found")
}
