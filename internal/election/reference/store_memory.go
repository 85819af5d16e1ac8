package reference

import (
	"context"
	"fmt"
	"sync"

	"electa/internal/election/models"
	"electa/pkg/platform/sentinel"
)

// InMemoryStore keeps the reference in process. Single replica only.
type InMemoryStore struct {
	mu  sync.Mutex
	ref models.Reference
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{ref: models.NullReference()}
}

func (s *InMemoryStore) Get(_ context.Context) (models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref, nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, expected int64, next models.Reference) (models.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref.Version != expected {
		return models.Reference{}, fmt.Errorf("reference version %d, expected %d: %w", s.ref.Version, expected, sentinel.ErrConflict)
	}
	next.Version = expected + 1
	s.ref = next
	return next, nil
}
