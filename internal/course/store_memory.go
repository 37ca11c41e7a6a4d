package course

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	courses map[string]Course
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory course store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[string]Course)}
}

func (s *MemoryStore) Create(_ context.Context, c Course) (Course, error) {
	if err := c.Validate(); err != nil {
		return Course{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	s.courses[c.ID] = c
	return c, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) PromoteLevel(_ context.Context, id string, to Level) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Level >= to {
		return false, nil
	}
	c.Level = to
	s.courses[id] = c
	return true, nil
}
