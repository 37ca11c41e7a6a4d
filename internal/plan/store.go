package plan

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Store persists weekly plans keyed by (course, week). Writing a week that
// already exists replaces it.
type Store interface {
	GetWeek(ctx context.Context, courseID string, week int) (WeeklyPlan, error)
	// ListWeeks returns the course's weeks ordered by week number.
	ListWeeks(ctx context.Context, courseID string) ([]WeeklyPlan, error)
	UpsertWeek(ctx context.Context, courseID string, week int, p WeeklyPlan) error
	// TrimWeeks deletes weeks numbered above keep.
	TrimWeeks(ctx context.Context, courseID string, keep int) error
}

func validateKey(courseID string, week int) error {
	if courseID == "" {
		return Invalid("course_id", "is required")
	}
	if week < 1 {
		return Invalid("week_number", "must be at least 1, got %d", week)
	}
	return nil
}

// Clone returns a deep copy of p.
func (p WeeklyPlan) Clone() WeeklyPlan {
	out := p
	out.Topics = make([]Topic, len(p.Topics))
	for i, t := range p.Topics {
		t.Resources = slices.Clone(t.Resources)
		t.TestQuestions = slices.Clone(t.TestQuestions)
		out.Topics[i] = t
	}
	out.DailyActivities = make([]DailyActivity, len(p.DailyActivities))
	for i, d := range p.DailyActivities {
		d.Activities = slices.Clone(d.Activities)
		out.DailyActivities[i] = d
	}
	out.Tips = slices.Clone(p.Tips)
	return out
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	plans map[string]map[int]WeeklyPlan
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string]map[int]WeeklyPlan)}
}

func (s *MemoryStore) GetWeek(_ context.Context, courseID string, week int) (WeeklyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[courseID][week]
	if !ok {
		return WeeklyPlan{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListWeeks(_ context.Context, courseID string) ([]WeeklyPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weeks := make([]WeeklyPlan, 0, len(s.plans[courseID]))
	for _, p := range s.plans[courseID] {
		weeks = append(weeks, p.Clone())
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekNumber < weeks[j].WeekNumber })
	return weeks, nil
}

func (s *MemoryStore) UpsertWeek(_ context.Context, courseID string, week int, p WeeklyPlan) error {
	if err := validateKey(courseID, week); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byWeek, ok := s.plans[courseID]
	if !ok {
		byWeek = make(map[int]WeeklyPlan)
		s.plans[courseID] = byWeek
	}

	now := time.Now().UTC()
	p = p.Clone()
	p.CourseID = courseID
	p.WeekNumber = week
	p.CreatedAt = now
	if prev, ok := byWeek[week]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	p.UpdatedAt = now
	byWeek[week] = p
	return nil
}

func (s *MemoryStore) TrimWeeks(_ context.Context, courseID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for week := range s.plans[courseID] {
		if week > keep {
			delete(s.plans[courseID], week)
		}
	}
	return nil
}
