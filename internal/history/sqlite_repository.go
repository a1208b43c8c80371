package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (creating if needed) a SQLite database file. Use
// ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteRepository is a SQLite implementation of Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates the schema if needed and returns a repository.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db}
	if err := r.initDB(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) initDB(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assessments (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			request TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			probability REAL,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create assessments table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at)`)
	if err != nil {
		return fmt.Errorf("create assessments index: %w", err)
	}
	return nil
}

// Save inserts an assessment, ignoring duplicates.
func (r *SQLiteRepository) Save(ctx context.Context, a *Assessment) error {
	request, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var probability sql.NullFloat64
	if a.Probability != nil {
		probability = sql.NullFloat64{Float64: *a.Probability, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO assessments
		(id, source, session_id, request, label, probability, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Source,
		a.SessionID,
		string(request),
		a.Label,
		probability,
		a.Error,
		a.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	return err
}

// Get retrieves an assessment by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Assessment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source, session_id, request, label, probability, error, created_at
		FROM assessments WHERE id = ?`, id)

	a, err := scanSQLiteAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// Recent returns the newest assessments first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]*Assessment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source, session_id, request, label, probability, error, created_at
		FROM assessments ORDER BY created_at DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanSQLiteAssessment(rows)
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
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE created_at < ?`,
		cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSQLiteAssessment(row rowScanner) (*Assessment, error) {
	var (
		a           Assessment
		request     string
		probability sql.NullFloat64
		createdAt   string
	)
	err := row.Scan(
		&a.ID,
		&a.Source,
		&a.SessionID,
		&request,
		&a.Label,
		&probability,
		&a.Error,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(request), &a.Request); err != nil {
		return nil, fmt.Errorf("decode stored request: %w", err)
	}
	if probability.Valid {
		p := probability.Float64
		a.Probability = &p
	}
	if a.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}
