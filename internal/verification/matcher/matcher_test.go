package matcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credmodels "shebacred/internal/credential/models"
	"shebacred/internal/credential/store"
	"shebacred/internal/verification/matcher/mocks"
	"shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/sentinel"
)

//go:generate mockgen -source=matcher.go -destination=mocks/mocks.go -package=mocks Registry

const scenarioText = "Name: Abebe Kebede\nID: ET/24/00001\nProgram: Computer Science"

type MatcherSuite struct {
	suite.Suite
	ctx      context.Context
	registry *store.InMemoryStore
	issuer   id.IssuerID
	docID    id.DocumentID
	now      time.Time
	logger   *slog.Logger
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherSuite))
}

func (s *MatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = store.NewInMemoryStore()
	s.issuer = id.NewIssuerID()
	s.docID = id.NewDocumentID()
	s.now = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MatcherSuite) issue(fields credmodels.Fields) *credmodels.TrustedCredential {
	cred, err := credmodels.NewTrustedCredential(s.issuer, fields, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Save(s.ctx, cred))
	return cred
}

func (s *MatcherSuite) issueWithStatus(fields credmodels.Fields, status credmodels.Status) *credmodels.TrustedCredential {
	cred, err := credmodels.NewTrustedCredential(s.issuer, fields, s.now)
	s.Require().NoError(err)
	cred, err = cred.WithStatus(status, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Save(s.ctx, cred))
	return cred
}

func scenarioFields() credmodels.Fields {
	return credmodels.Fields{
		credmodels.KeyFullName:         "Abebe Kebede",
		credmodels.KeySerialNumber:     "ET/24/00001",
		credmodels.KeyCertificateTitle: "Computer Science",
	}
}

func (s *MatcherSuite) match(m *Matcher, text string) *Result {
	res, err := m.Match(s.ctx, s.docID, text)
	s.Require().NoError(err)
	return res
}

func (s *MatcherSuite) TestNoRecordForIdentifier() {
	res := s.match(New(s.registry, WithLogger(s.logger)), scenarioText)

	s.Equal(models.Unverified(models.ReasonNoRecordForIdentifier), res.Verdict)
	s.Nil(res.Record)
}

func (s *MatcherSuite) TestExactFingerprintReturnsTrustedFields() {
	cred := s.issue(scenarioFields())
	noisy := "  Name:   Abebe    Kebede\r\nID: et/24/00001\n\n\n\nProgram: Computer Science  "

	res := s.match(New(s.registry, WithLogger(s.logger)), noisy)

	s.Equal(models.OutcomeVerified, res.Verdict.Outcome)
	s.Equal(cred.ID, res.Verdict.CredentialID)
	s.Equal(cred.Fields, res.Verdict.TrustedFields)

	res.Verdict.TrustedFields[credmodels.KeyFullName] = "mutated"
	again, err := s.registry.FindByID(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal("Abebe Kebede", again.Fields[credmodels.KeyFullName])
}

func (s *MatcherSuite) TestLongerTrustedNameIsBelowThreshold() {
	fields := scenarioFields()
	fields[credmodels.KeyFullName] = "Abebe Kebede Alemu"
	s.issue(fields)

	res := s.match(New(s.registry, WithLogger(s.logger)), scenarioText)

	s.Equal(models.Unverified(models.ReasonBelowThreshold), res.Verdict)
	s.Equal(80, res.Score)
}

func (s *MatcherSuite) TestMissingFinalLetterSurfacesCandidate() {
	fields := scenarioFields()
	fields[credmodels.KeyFullName] = "Abel Tefer"
	cand := s.issue(fields)
	text := "Name: Abel Tefe\nID: ET/24/00001\nProgram: Computer Science"

	res := s.match(New(s.registry, WithLogger(s.logger)), text)

	s.Equal(models.OutcomeConfirmationRequired, res.Verdict.Outcome)
	s.Equal(cand.ID, res.Verdict.CandidateID)
	s.Equal(95, res.Verdict.Score)
}

func (s *MatcherSuite) TestThresholdIsStrict() {
	fields := scenarioFields()
	fields[credmodels.KeyFullName] = "Abebe Kebede Alemu"
	cand := s.issue(fields)

	s.Run("score of 90 is not enough", func() {
		m := New(s.registry, WithLogger(s.logger), WithScorer(func(_, _ string) int { return 90 }))
		res := s.match(m, scenarioText)
		s.Equal(models.Unverified(models.ReasonBelowThreshold), res.Verdict)
		s.Equal(90, res.Score)
	})
	s.Run("score of 91 surfaces the candidate", func() {
		m := New(s.registry, WithLogger(s.logger), WithScorer(func(_, _ string) int { return 91 }))
		res := s.match(m, scenarioText)
		s.Equal(models.OutcomeConfirmationRequired, res.Verdict.Outcome)
		s.Equal(cand.ID, res.Verdict.CandidateID)
		s.Equal(s.docID, res.Verdict.DocumentID)
		s.Equal(91, res.Verdict.Score)
		s.Equal(cand.Fields, res.Verdict.CandidateFields)
		s.Nil(res.Verdict.TrustedFields)
	})
}

func (s *MatcherSuite) TestCloseNameSurfacesCandidate() {
	fields := scenarioFields()
	fields[credmodels.KeyCertificateTitle] = "Computer Science and Engineering"
	cand := s.issue(fields)

	res := s.match(New(s.registry, WithLogger(s.logger)), scenarioText)

	s.Equal(models.OutcomeConfirmationRequired, res.Verdict.Outcome)
	s.Equal(cand.ID, res.Verdict.CandidateID)
	s.Equal(100, res.Verdict.Score)
}

func (s *MatcherSuite) TestNoIdentifierExtracted() {
	s.issue(scenarioFields())

	res := s.match(New(s.registry, WithLogger(s.logger)), "Name: Abebe Kebede\nProgram: Computer Science")

	s.Equal(models.Unverified(models.ReasonNoIdentifier), res.Verdict)
}

func (s *MatcherSuite) TestInactiveRecords() {
	s.Run("exact match on a revoked record", func() {
		s.SetupTest()
		s.issueWithStatus(scenarioFields(), credmodels.StatusRevoked)
		res := s.match(New(s.registry, WithLogger(s.logger)), scenarioText)
		s.Equal(models.Unverified(models.ReasonRecordInactive), res.Verdict)
	})
	s.Run("candidate on an expired record", func() {
		s.SetupTest()
		fields := scenarioFields()
		fields[credmodels.KeyGrade] = "Distinction"
		s.issueWithStatus(fields, credmodels.StatusExpired)
		res := s.match(New(s.registry, WithLogger(s.logger)), scenarioText)
		s.Equal(models.Unverified(models.ReasonRecordInactive), res.Verdict)
	})
}

func (s *MatcherSuite) TestParseFailureSkipsRegistry() {
	ctrl := gomock.NewController(s.T())
	registry := mocks.NewMockRegistry(ctrl)

	res := s.match(New(registry, WithLogger(s.logger)), "hello")

	s.Equal(models.ParseFailed(), res.Verdict)
	s.Nil(res.Extraction)
}

func (s *MatcherSuite) TestExactMatchWinsOverFallback() {
	ctrl := gomock.NewController(s.T())
	registry := mocks.NewMockRegistry(ctrl)
	cred, err := credmodels.NewTrustedCredential(s.issuer, scenarioFields(), s.now)
	s.Require().NoError(err)

	registry.EXPECT().FindByFingerprint(gomock.Any(), cred.Fingerprint).Return(cred, nil)
	registry.EXPECT().FindByIdentifier(gomock.Any(), gomock.Any()).Times(0)

	res := s.match(New(registry, WithLogger(s.logger)), scenarioText)

	s.Equal(models.OutcomeVerified, res.Verdict.Outcome)
}

func (s *MatcherSuite) TestIdentifierLookupIsNormalized() {
	ctrl := gomock.NewController(s.T())
	registry := mocks.NewMockRegistry(ctrl)

	registry.EXPECT().FindByFingerprint(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	registry.EXPECT().FindByIdentifier(gomock.Any(), "ET/24/00001").Return(nil, sentinel.ErrNotFound)

	res := s.match(New(registry, WithLogger(s.logger)), "Name: Abebe Kebede\nID: et/24/00001\nProgram: Computer Science")

	s.Equal(models.Unverified(models.ReasonNoRecordForIdentifier), res.Verdict)
}

func (s *MatcherSuite) TestRegistryFailureIsAnError() {
	ctrl := gomock.NewController(s.T())
	registry := mocks.NewMockRegistry(ctrl)
	registry.EXPECT().FindByFingerprint(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	res, err := New(registry, WithLogger(s.logger)).Match(s.ctx, s.docID, scenarioText)

	s.Nil(res)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
