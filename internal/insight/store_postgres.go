package insight

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

// PostgresStore reads and writes the documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, d Document) (Document, error) {
	if err := validate(d); err != nil {
		return Document{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (user_id, title, subject, file_path, description)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 RETURNING id::text, created_at`,
		d.UserID, d.Title, d.Subject, d.FilePath, d.Description,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		d    Document
		desc *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, user_id, title, subject, file_path, description, created_at
		 FROM documents WHERE id = $1::uuid`, id,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Subject, &d.FilePath, &desc, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	if desc != nil {
		d.Description = *desc
	}
	return d, nil
}

func (s *PostgresStore) SetDescription(ctx context.Context, id, description string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE documents SET description = $2 WHERE id = $1::uuid`, id, description)
	if err != nil {
		return fmt.Errorf("update document description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
