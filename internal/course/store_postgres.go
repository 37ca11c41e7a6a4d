package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a course store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, c Course) (Course, error) {
	if err := c.Validate(); err != nil {
		return Course{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO courses (user_id, title, subject, target_grade, current_level, exam_date, study_hours_per_day)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id::text, created_at`,
		c.UserID, c.Title, c.Subject, c.TargetGrade, c.Level.String(), c.ExamDate, c.StudyHoursPerDay,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Course{}, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Course{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Course
	var level string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, user_id, title, subject, target_grade, current_level, exam_date, study_hours_per_day, created_at
		 FROM courses WHERE id = $1::uuid`,
		id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Subject, &c.TargetGrade, &level, &c.ExamDate, &c.StudyHoursPerDay, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	if c.Level, err = ParseLevel(level); err != nil {
		return Course{}, fmt.Errorf("get course %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) PromoteLevel(ctx context.Context, id string, to Level) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// Rank check lives in the WHERE clause: the level never moves down.
	tag, err := s.pool.Exec(ctx,
		`UPDATE courses SET current_level = $2
		 WHERE id = $1::uuid
		   AND (CASE current_level WHEN 'beginner' THEN 0 WHEN 'intermediate' THEN 1 ELSE 2 END) < $3`,
		id, to.String(), int(to),
	)
	if err != nil {
		return false, fmt.Errorf("promote course level: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
