package store

import (
	"context"
	"sync"

	"shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/sentinel"
)

// InMemoryStore keeps documents in process memory. It has no row locks:
// pair it with tx.ShardedRunner keyed by document ID to serialize
// read-modify-write sequences.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]*models.Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// FindByIDForUpdate is FindByID; isolation comes from the caller's runner.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	return s.FindByID(ctx, docID)
}

func (s *InMemoryStore) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}
