package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shebacred/internal/credential/models"
	"shebacred/internal/credential/service/mocks"
	"shebacred/internal/credential/store"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	audit "shebacred/pkg/platform/audit"
	"shebacred/pkg/platform/audit/publishers/compliance"
	auditmemory "shebacred/pkg/platform/audit/store/memory"
	"shebacred/pkg/platform/sentinel"
	"shebacred/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *store.InMemoryStore
	auditLog  *auditmemory.InMemoryStore
	service   *Service
	issuer    id.IssuerID
	principal id.PrincipalID
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	s.principal = id.NewPrincipalID()
	s.issuer = id.NewIssuerID()
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithPrincipalID(s.ctx, s.principal)
	s.store = store.NewInMemoryStore()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.service = New(s.store, compliance.New(s.auditLog), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *ServiceSuite) fields() models.Fields {
	return models.Fields{
		models.KeyFullName:         "Abebe Kebede",
		models.KeySerialNumber:     "ET/24/00001",
		models.KeyCertificateTitle: "Computer Science",
	}
}

func (s *ServiceSuite) actions() []string {
	events, err := s.auditLog.ListByPrincipal(s.ctx, s.principal)
	s.Require().NoError(err)
	var out []string
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestIssue() {
	s.Run("stores an active record with derived fingerprint", func() {
		cred, err := s.service.Issue(s.ctx, s.issuer, s.fields())
		s.Require().NoError(err)
		s.Equal(models.StatusActive, cred.Status)
		s.Equal(s.now, cred.IssuedAt)
		s.Equal(s.fields().Fingerprint(), cred.Fingerprint)

		stored, err := s.store.FindByFingerprint(s.ctx, cred.Fingerprint)
		s.Require().NoError(err)
		s.Equal(cred.ID, stored.ID)
		s.Equal([]string{string(audit.EventCredentialIssued)}, s.actions())
	})

	s.Run("identical fields conflict", func() {
		_, err := s.service.Issue(s.ctx, s.issuer, s.fields())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid fields are rejected before storage", func() {
		_, err := s.service.Issue(s.ctx, s.issuer, models.Fields{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAmend() {
	cred, err := s.service.Issue(s.ctx, s.issuer, s.fields())
	s.Require().NoError(err)

	s.Run("re-derives fingerprint", func() {
		amended := s.fields()
		amended[models.KeyGrade] = "Distinction"

		updated, err := s.service.Amend(s.ctx, s.issuer, cred.ID, amended)
		s.Require().NoError(err)
		s.Equal(amended.Fingerprint(), updated.Fingerprint)

		_, err = s.store.FindByFingerprint(s.ctx, cred.Fingerprint)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Contains(s.actions(), string(audit.EventCredentialAmended))
	})

	s.Run("other issuers see not found", func() {
		_, err := s.service.Amend(s.ctx, id.NewIssuerID(), cred.ID, s.fields())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing issuer scope is forbidden", func() {
		_, err := s.service.Amend(s.ctx, id.IssuerID{}, cred.ID, s.fields())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("collision with another record conflicts", func() {
		other, err := s.service.Issue(s.ctx, s.issuer, models.Fields{models.KeyFullName: "Other Person"})
		s.Require().NoError(err)

		current, err := s.service.Get(s.ctx, s.issuer, cred.ID)
		s.Require().NoError(err)
		_, err = s.service.Amend(s.ctx, s.issuer, other.ID, current.Fields)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestSetStatus() {
	cred, err := s.service.Issue(s.ctx, s.issuer, s.fields())
	s.Require().NoError(err)

	updated, err := s.service.SetStatus(s.ctx, s.issuer, cred.ID, models.StatusRevoked)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, updated.Status)
	s.Equal(cred.Fingerprint, updated.Fingerprint)

	events, err := s.auditLog.ListByPrincipal(s.ctx, s.principal)
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(string(audit.EventCredentialStatusChanged), last.Action)
	s.Equal("REVOKED", last.Decision)
	s.Equal(s.issuer.String(), last.ActorID)

	_, err = s.service.SetStatus(s.ctx, s.issuer, id.NewCredentialID(), models.StatusExpired)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListByIssuer() {
	_, err := s.service.Issue(s.ctx, s.issuer, s.fields())
	s.Require().NoError(err)
	_, err = s.service.Issue(s.ctx, id.NewIssuerID(), models.Fields{models.KeyFullName: "Elsewhere"})
	s.Require().NoError(err)

	list, err := s.service.ListByIssuer(s.ctx, s.issuer)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.service.ListByIssuer(s.ctx, id.IssuerID{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestFailureModes() {
	s.Run("audit failure fails the operation", func() {
		ctrl := gomock.NewController(s.T())
		st := mocks.NewMockStore(ctrl)
		auditor := mocks.NewMockAuditPublisher(ctrl)
		svc := New(st, auditor)

		st.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down"))

		_, err := svc.Issue(s.ctx, s.issuer, s.fields())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("store failure is internal", func() {
		ctrl := gomock.NewController(s.T())
		st := mocks.NewMockStore(ctrl)
		svc := New(st, nil)

		st.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

		_, err := svc.Get(s.ctx, s.issuer, id.NewCredentialID())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("record deleted between read and update", func() {
		ctrl := gomock.NewController(s.T())
		st := mocks.NewMockStore(ctrl)
		svc := New(st, nil)

		cred, err := models.NewTrustedCredential(s.issuer, s.fields(), s.now)
		s.Require().NoError(err)
		st.EXPECT().FindByID(gomock.Any(), cred.ID).Return(cred, nil)
		st.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrNotFound)

		_, err = svc.SetStatus(s.ctx, s.issuer, cred.ID, models.StatusExpired)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
