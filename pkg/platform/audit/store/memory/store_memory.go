package memory

import (
	"context"
	"sort"
	"sync"

	id "shebacred/pkg/domain"
	audit "shebacred/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.PrincipalID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.PrincipalID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.PrincipalID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PrincipalID] = append(s.events[event.PrincipalID], event)
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principal id.PrincipalID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[principal]...), nil
}

// ListRecent returns the most recent N events across all principals, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
