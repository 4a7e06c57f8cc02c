package store

import (
	"context"
	"sort"
	"sync"

	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/sentinel"
)

// InMemoryStore keeps trusted credentials in process memory, indexed by
// fingerprint and identifier. Returned records are copies.
type InMemoryStore struct {
	mu            sync.RWMutex
	byID          map[id.CredentialID]*models.TrustedCredential
	byFingerprint map[string]id.CredentialID
	byIdentifier  map[string][]id.CredentialID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:          make(map[id.CredentialID]*models.TrustedCredential),
		byFingerprint: make(map[string]id.CredentialID),
		byIdentifier:  make(map[string][]id.CredentialID),
	}
}

// Save inserts a new record. Duplicate IDs or fingerprints return ErrConflict.
func (s *InMemoryStore) Save(_ context.Context, cred *models.TrustedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[cred.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byFingerprint[cred.Fingerprint]; ok {
		return sentinel.ErrConflict
	}
	s.byID[cred.ID] = clone(cred)
	s.byFingerprint[cred.Fingerprint] = cred.ID
	s.index(cred)
	return nil
}

// Update replaces an existing record, re-indexing its fingerprint and
// identifier.
func (s *InMemoryStore) Update(_ context.Context, cred *models.TrustedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[cred.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, ok := s.byFingerprint[cred.Fingerprint]; ok && owner != cred.ID {
		return sentinel.ErrConflict
	}
	delete(s.byFingerprint, existing.Fingerprint)
	s.unindex(existing)
	s.byID[cred.ID] = clone(cred)
	s.byFingerprint[cred.Fingerprint] = cred.ID
	s.index(cred)
	return nil
}

func (s *InMemoryStore) index(cred *models.TrustedCredential) {
	if cred.Identifier == "" {
		return
	}
	s.byIdentifier[cred.Identifier] = append(s.byIdentifier[cred.Identifier], cred.ID)
}

func (s *InMemoryStore) unindex(cred *models.TrustedCredential) {
	ids := s.byIdentifier[cred.Identifier]
	for i, credID := range ids {
		if credID == cred.ID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byIdentifier, cred.Identifier)
		return
	}
	s.byIdentifier[cred.Identifier] = ids
}

func (s *InMemoryStore) FindByID(_ context.Context, credID id.CredentialID) (*models.TrustedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(cred), nil
}

func (s *InMemoryStore) FindByFingerprint(_ context.Context, fingerprint string) (*models.TrustedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credID, ok := s.byFingerprint[fingerprint]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[credID]), nil
}

// FindByIdentifier returns the most recently issued record carrying the
// normalized identifier.
func (s *InMemoryStore) FindByIdentifier(_ context.Context, identifier string) (*models.TrustedCredential, error) {
	identifier = models.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.TrustedCredential
	for _, credID := range s.byIdentifier[identifier] {
		cred := s.byID[credID]
		if best == nil || newer(cred, best) {
			best = cred
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(best), nil
}

// ListByIssuer returns an issuer's records, oldest first.
func (s *InMemoryStore) ListByIssuer(_ context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error) {
	s.mu.RLock()
	out := make([]*models.TrustedCredential, 0)
	for _, cred := range s.byID {
		if cred.IssuerID == issuer {
			out = append(out, clone(cred))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

func newer(a, b *models.TrustedCredential) bool {
	if !a.IssuedAt.Equal(b.IssuedAt) {
		return a.IssuedAt.After(b.IssuedAt)
	}
	return a.ID.String() > b.ID.String()
}

func clone(cred *models.TrustedCredential) *models.TrustedCredential {
	out := *cred
	out.Fields = cred.Fields.Clone()
	return &out
}
