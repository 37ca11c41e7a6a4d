package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-planner/internal/plan"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps progress in the progress_records table. The
// unique_progress constraint guarantees one row per key under concurrent toggles.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const toggleSQL = `INSERT INTO progress_records (user_id, course_id, week_number, activity_id, completed, completed_at)
	VALUES ($1, $2::uuid, $3, $4, TRUE, NOW())
	ON CONFLICT ON CONSTRAINT unique_progress DO UPDATE SET
		completed    = NOT progress_records.completed,
		completed_at = CASE WHEN progress_records.completed THEN NULL ELSE NOW() END,
		updated_at   = NOW()
	RETURNING completed, completed_at, updated_at`

func (s *PostgresStore) Toggle(ctx context.Context, key Key) (Record, error) {
	if err := key.validate(); err != nil {
		return Record{}, err
	}
	if _, err := uuid.Parse(key.CourseID); err != nil {
		return Record{}, plan.Invalid("course_id", "%q is not a valid id", key.CourseID)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := Record{Key: key}
	err := s.pool.QueryRow(ctx, toggleSQL, key.UserID, key.CourseID, key.Week, key.ActivityID).
		Scan(&rec.Completed, &rec.CompletedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("toggle progress: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	if _, err := uuid.Parse(key.CourseID); err != nil {
		return Record{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := Record{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT completed, completed_at, updated_at FROM progress_records
		 WHERE user_id = $1 AND course_id = $2::uuid AND week_number = $3 AND activity_id = $4`,
		key.UserID, key.CourseID, key.Week, key.ActivityID,
	).Scan(&rec.Completed, &rec.CompletedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get progress: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) ListWeek(ctx context.Context, userID, courseID string, week int) ([]Record, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return []Record{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT activity_id, completed, completed_at, updated_at FROM progress_records
		 WHERE user_id = $1 AND course_id = $2::uuid AND week_number = $3
		 ORDER BY activity_id`,
		userID, courseID, week,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec := Record{Key: Key{UserID: userID, CourseID: courseID, Week: week}}
		if err := rows.Scan(&rec.ActivityID, &rec.Completed, &rec.CompletedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
