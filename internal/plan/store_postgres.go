package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store over the course_plans table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a plan store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const selectPlan = `SELECT course_id::text, week_number, topics, daily_activities, study_hours, tips, source, created_at, updated_at
	FROM course_plans`

func (s *PostgresStore) GetWeek(ctx context.Context, courseID string, week int) (WeeklyPlan, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return WeeklyPlan{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPlan(s.pool.QueryRow(ctx,
		selectPlan+` WHERE course_id = $1::uuid AND week_number = $2`,
		courseID, week,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return WeeklyPlan{}, ErrNotFound
	}
	if err != nil {
		return WeeklyPlan{}, fmt.Errorf("get plan week %d: %w", week, err)
	}
	return p, nil
}

func (s *PostgresStore) ListWeeks(ctx context.Context, courseID string) ([]WeeklyPlan, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return []WeeklyPlan{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectPlan+` WHERE course_id = $1::uuid ORDER BY week_number ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	weeks := []WeeklyPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		weeks = append(weeks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return weeks, nil
}

func (s *PostgresStore) UpsertWeek(ctx context.Context, courseID string, week int, p WeeklyPlan) error {
	if err := validateKey(courseID, week); err != nil {
		return err
	}
	if _, err := uuid.Parse(courseID); err != nil {
		return Invalid("course_id", "%q is not a UUID", courseID)
	}

	topics, err := json.Marshal(orEmpty(p.Topics))
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	daily, err := json.Marshal(orEmpty(p.DailyActivities))
	if err != nil {
		return fmt.Errorf("marshal daily activities: %w", err)
	}
	tips, err := json.Marshal(orEmpty(p.Tips))
	if err != nil {
		return fmt.Errorf("marshal tips: %w", err)
	}
	source := p.Source
	if source == "" {
		source = SourceGenerated
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO course_plans (course_id, week_number, topics, daily_activities, study_hours, tips, source)
		 VALUES ($1::uuid, $2, $3::jsonb, $4::jsonb, $5, $6::jsonb, $7)
		 ON CONFLICT (course_id, week_number) DO UPDATE SET
		   topics = EXCLUDED.topics,
		   daily_activities = EXCLUDED.daily_activities,
		   study_hours = EXCLUDED.study_hours,
		   tips = EXCLUDED.tips,
		   source = EXCLUDED.source,
		   updated_at = NOW()`,
		courseID, week, string(topics), string(daily), p.StudyHours, string(tips), string(source),
	)
	if err != nil {
		return fmt.Errorf("upsert plan week %d: %w", week, err)
	}
	return nil
}

func (s *PostgresStore) TrimWeeks(ctx context.Context, courseID string, keep int) error {
	if _, err := uuid.Parse(courseID); err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM course_plans WHERE course_id = $1::uuid AND week_number > $2`,
		courseID, keep,
	); err != nil {
		return fmt.Errorf("trim plan weeks: %w", err)
	}
	return nil
}

func scanPlan(row pgx.Row) (WeeklyPlan, error) {
	var p WeeklyPlan
	var topics, daily, tips []byte
	var source string
	if err := row.Scan(&p.CourseID, &p.WeekNumber, &topics, &daily, &p.StudyHours, &tips, &source, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return WeeklyPlan{}, err
	}
	p.Source = Source(source)
	if err := json.Unmarshal(topics, &p.Topics); err != nil {
		return WeeklyPlan{}, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal(daily, &p.DailyActivities); err != nil {
		return WeeklyPlan{}, fmt.Errorf("decode daily activities: %w", err)
	}
	if err := json.Unmarshal(tips, &p.Tips); err != nil {
		return WeeklyPlan{}, fmt.Errorf("decode tips: %w", err)
	}
	return p, nil
}
