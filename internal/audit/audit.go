// Package audit records domain events: syntheses, toggles, assessments and annotations.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Event types.
const (
	PlanSynthesized   = "plan_synthesized"
	ActivityToggled   = "activity_toggled"
	AssessmentScored  = "assessment_scored"
	LevelPromoted     = "level_promoted"
	DocumentAnnotated = "document_annotated"
)

// Event is one row of the events table.
type Event struct {
	UserID    string
	CourseID  string
	Type      string
	Data      map[string]any
	CreatedAt time.Time
}

// Logger records events.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Nop ignores all events.
type Nop struct{}

func (Nop) Log(context.Context, Event) error { return nil }

// Memory stores events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{events: []Event{}}
}

func (l *Memory) Log(_ context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

func (l *Memory) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// OfType returns the recorded events with the given type.
func (l *Memory) OfType(eventType string) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Postgres inserts events into the events table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (l *Postgres) Log(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO events (user_id, course_id, event_type, data, created_at)
		 VALUES (NULLIF($1, ''), NULLIF($2, '')::uuid, $3, $4::jsonb, $5)`,
		event.UserID,
		event.CourseID,
		event.Type,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"course_id", event.CourseID,
		"user_id", event.UserID,
	)
	return nil
}

// Record logs event and downgrades a failure to a warning. Audit writes never
// fail the operation that produced them.
func Record(ctx context.Context, l Logger, event Event) {
	if l == nil {
		return
	}
	if err := l.Log(ctx, event); err != nil {
		slog.Warn("audit event dropped", "type", event.Type, "course_id", event.CourseID, "error", err)
	}
}
