package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS assessments (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		session_id  TEXT NOT NULL DEFAULT '',
		request     JSONB NOT NULL,
		label       TEXT NOT NULL DEFAULT '',
		probability DOUBLE PRECISION,
		error       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments (created_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL assessment repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the assessments table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create assessments schema: %w", err)
	}
	return nil
}

// Save inserts an assessment, ignoring duplicates.
func (r *PostgresRepository) Save(ctx context.Context, a *Assessment) error {
	request, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, source, session_id, request, label, probability, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		a.ID,
		a.Source,
		a.SessionID,
		request,
		a.Label,
		a.Probability,
		a.Error,
		a.CreatedAt,
	)
	return err
}

// Get retrieves an assessment by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Assessment, error) {
	query := `
		SELECT id, source, session_id, request, label, probability, error, created_at
		FROM assessments
		WHERE id = $1
	`

	a, err := scanAssessment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// Recent returns the newest assessments first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*Assessment, error) {
	query := `
		SELECT id, source, session_id, request, label, probability, error, created_at
		FROM assessments
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBefore removes assessments created before cutoff.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row(s).
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a       Assessment
		request []byte
	)
	err := row.Scan(
		&a.ID,
		&a.Source,
		&a.SessionID,
		&request,
		&a.Label,
		&a.Probability,
		&a.Error,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(request, &a.Request); err != nil {
		return nil, fmt.Errorf("decode stored request: %w", err)
	}
	return &a, nil
}
