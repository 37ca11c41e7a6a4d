// Package progress tracks per-user activity completion within a course plan.
package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/p-n-ai/pai-planner/internal/plan"
)

// Key identifies one progress record. At most one record exists per key.
type Key struct {
	UserID     string `json:"user_id"`
	CourseID   string `json:"course_id"`
	Week       int    `json:"week_number"`
	ActivityID string `json:"activity_id"`
}

func (k Key) validate() error {
	switch {
	case k.UserID == "":
		return plan.Invalid("user_id", "is required")
	case k.CourseID == "":
		return plan.Invalid("course_id", "is required")
	case k.Week < 1:
		return plan.Invalid("week_number", "must be at least 1, got %d", k.Week)
	case k.ActivityID == "":
		return plan.Invalid("activity_id", "is required")
	}
	return nil
}

// Record is the persisted completion state for a key.
type Record struct {
	Key
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Store persists progress records.
type Store interface {
	// Toggle creates the record as completed or flips an existing one, atomically.
	Toggle(ctx context.Context, key Key) (Record, error)
	Get(ctx context.Context, key Key) (Record, bool, error)
	// ListWeek returns a user's records for one course week ordered by activity ID.
	ListWeek(ctx context.Context, userID, courseID string, week int) ([]Record, error)
}

// MemoryStore is an in-memory Store for tests and database-less runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record), now: time.Now}
}

func (s *MemoryStore) Toggle(_ context.Context, key Key) (Record, error) {
	if err := key.validate(); err != nil {
		return Record{}, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = Record{Key: key}
	}
	rec.Completed = !rec.Completed
	if rec.Completed {
		rec.CompletedAt = &now
	} else {
		rec.CompletedAt = nil
	}
	rec.UpdatedAt = now
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *MemoryStore) ListWeek(_ context.Context, userID, courseID string, week int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Record{}
	for k, rec := range s.records {
		if k.UserID == userID && k.CourseID == courseID && k.Week == week {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityID < out[j].ActivityID })
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
