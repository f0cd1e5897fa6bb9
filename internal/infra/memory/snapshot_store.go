package memory

import (
	"context"
	"sync"

	"quizplay/internal/domain"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
// It holds a single identity and is lost when the process exits.
type SnapshotStore struct {
	mu       sync.RWMutex
	identity *domain.Identity
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Read(_ context.Context) (domain.Identity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, false, nil
	}
	return *s.identity, true, nil
}

func (s *SnapshotStore) Write(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &identity
	return nil
}

func (s *SnapshotStore) Erase(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	return nil
}
