package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store  *InMemoryStore
	issuer id.IssuerID
	now    time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.issuer = id.NewIssuerID()
	s.now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newCredential(name, serial string, issuedAt time.Time) *models.TrustedCredential {
	cred, err := models.NewTrustedCredential(s.issuer, models.Fields{
		models.KeyFullName:     name,
		models.KeySerialNumber: serial,
	}, issuedAt)
	s.Require().NoError(err)
	return cred
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	cred := s.newCredential("Abebe Kebede", "ET/24/00001", s.now)
	s.Require().NoError(s.store.Save(ctx, cred))

	s.Run("by id", func() {
		got, err := s.store.FindByID(ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal(cred.Fingerprint, got.Fingerprint)
	})

	s.Run("by fingerprint", func() {
		got, err := s.store.FindByFingerprint(ctx, cred.Fingerprint)
		s.Require().NoError(err)
		s.Equal(cred.ID, got.ID)
	})

	s.Run("by identifier is case insensitive", func() {
		got, err := s.store.FindByIdentifier(ctx, " et/24/00001")
		s.Require().NoError(err)
		s.Equal(cred.ID, got.ID)
	})

	s.Run("missing", func() {
		_, err := s.store.FindByFingerprint(ctx, "0000")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByIdentifier(ctx, "")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByID(ctx, id.NewCredentialID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		got, err := s.store.FindByID(ctx, cred.ID)
		s.Require().NoError(err)
		got.Fields[models.KeyFullName] = "mutated"

		again, err := s.store.FindByID(ctx, cred.ID)
		s.Require().NoError(err)
		s.Equal("Abebe Kebede", again.Fields[models.KeyFullName])
	})
}

func (s *InMemoryStoreSuite) TestDuplicateFingerprintConflicts() {
	ctx := context.Background()
	first := s.newCredential("Abebe Kebede", "ET/24/00001", s.now)
	second := s.newCredential("Abebe Kebede", "ET/24/00001", s.now.Add(time.Hour))

	s.Require().NoError(s.store.Save(ctx, first))
	s.ErrorIs(s.store.Save(ctx, second), sentinel.ErrConflict)
	s.ErrorIs(s.store.Save(ctx, first), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestIdentifierPrefersNewest() {
	ctx := context.Background()
	older := s.newCredential("Abebe Kebede", "ET/24/00001", s.now)
	newer := s.newCredential("Abebe K. Alemu", "ET/24/00001", s.now.Add(24*time.Hour))
	s.Require().NoError(s.store.Save(ctx, older))
	s.Require().NoError(s.store.Save(ctx, newer))

	got, err := s.store.FindByIdentifier(ctx, "ET/24/00001")
	s.Require().NoError(err)
	s.Equal(newer.ID, got.ID)
}

func (s *InMemoryStoreSuite) TestUpdateReindexesFingerprint() {
	ctx := context.Background()
	cred := s.newCredential("Abebe Kebede", "ET/24/00001", s.now)
	s.Require().NoError(s.store.Save(ctx, cred))

	amended, err := cred.WithFields(models.Fields{
		models.KeyFullName:     "Abebe Kebede Alemu",
		models.KeySerialNumber: "ET/24/00001",
	}, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Update(ctx, amended))

	_, err = s.store.FindByFingerprint(ctx, cred.Fingerprint)
	s.ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.store.FindByFingerprint(ctx, amended.Fingerprint)
	s.Require().NoError(err)
	s.Equal(cred.ID, got.ID)

	s.Run("collision with another record", func() {
		other := s.newCredential("Other Person", "ET/24/00002", s.now)
		s.Require().NoError(s.store.Save(ctx, other))

		clash, err := other.WithFields(amended.Fields, s.now)
		s.Require().NoError(err)
		s.ErrorIs(s.store.Update(ctx, clash), sentinel.ErrConflict)
	})

	s.Run("unknown record", func() {
		ghost := s.newCredential("Ghost Person", "X-1", s.now)
		s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUpdateReindexesIdentifier() {
	ctx := context.Background()
	cred := s.newCredential("Abebe Kebede", "ET/24/00001", s.now)
	sibling := s.newCredential("Abebe K. Alemu", "ET/24/00001", s.now.Add(-time.Hour))
	s.Require().NoError(s.store.Save(ctx, cred))
	s.Require().NoError(s.store.Save(ctx, sibling))

	moved, err := cred.WithFields(models.Fields{
		models.KeyFullName:     "Abebe Kebede",
		models.KeySerialNumber: "ET/24/00009",
	}, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Update(ctx, moved))

	got, err := s.store.FindByIdentifier(ctx, "ET/24/00001")
	s.Require().NoError(err)
	s.Equal(sibling.ID, got.ID, "old identifier falls back to the remaining record")

	got, err = s.store.FindByIdentifier(ctx, "et/24/00009")
	s.Require().NoError(err)
	s.Equal(cred.ID, got.ID)

	revoked, err := sibling.WithStatus(models.StatusRevoked, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Update(ctx, revoked))

	got, err = s.store.FindByIdentifier(ctx, "ET/24/00001")
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, got.Status, "status changes keep the identifier indexed once")
	s.Len(s.store.byIdentifier["ET/24/00001"], 1)
}

func (s *InMemoryStoreSuite) TestListByIssuer() {
	ctx := context.Background()
	second := s.newCredential("Second Person", "B-2", s.now.Add(time.Minute))
	first := s.newCredential("First Person", "A-1", s.now)
	s.Require().NoError(s.store.Save(ctx, second))
	s.Require().NoError(s.store.Save(ctx, first))

	foreign, err := models.NewTrustedCredential(id.NewIssuerID(), models.Fields{models.KeyFullName: "Foreign"}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(ctx, foreign))

	list, err := s.store.ListByIssuer(ctx, s.issuer)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)
}

func (s *InMemoryStoreSuite) TestConcurrentSaves() {
	ctx := context.Background()
	creds := make([]*models.TrustedCredential, 20)
	for i := range creds {
		creds[i] = s.newCredential("Same Person", "SAME-1", s.now)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(creds))
	for _, cred := range creds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Save(ctx, cred)
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			s.ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, ok, "only one of identical records may be stored")
}
