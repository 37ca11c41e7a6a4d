// Package insight tags uploaded documents with generated topics, keywords,
// level and summary, merged into the document's description.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown document.
var ErrNotFound = errors.New("document not found")

// Document is the part of an uploaded document the annotator reads and writes.
type Document struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	FilePath    string    `json:"file_path,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists documents. Uploads create them; the annotator only
// rewrites descriptions.
type Store interface {
	Create(ctx context.Context, d Document) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	SetDescription(ctx context.Context, id, description string) error
}

func validate(d Document) error {
	switch {
	case strings.TrimSpace(d.UserID) == "":
		return fmt.Errorf("user_id is required")
	case strings.TrimSpace(d.Title) == "":
		return fmt.Errorf("title is required")
	}
	return nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Create(_ context.Context, d Document) (Document, error) {
	if err := validate(d); err != nil {
		return Document{}, err
	}
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.docs[d.ID] = d
	s.mu.Unlock()
	return d, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) SetDescription(_ context.Context, id, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.Description = description
	s.docs[id] = d
	return nil
}
