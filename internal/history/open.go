package history

import (
	"context"
	"fmt"

	"github.com/ksipredictor/ksipredictor/internal/database"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures a repository backend.
type StoreConfig struct {
	Backend    string
	SQLitePath string
	Database   database.Config
}

// Store is an opened repository with its connection lifecycle.
type Store struct {
	Repository Repository
	Backend    string

	ping  func(ctx context.Context) error
	close func()
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return &Store{Repository: NewInMemoryRepository(), Backend: BackendMemory}, nil

	case BackendSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo, err := NewSQLiteRepository(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Repository: repo,
			Backend:    BackendSQLite,
			ping:       db.PingContext,
			close:      func() { _ = db.Close() },
		}, nil

	case BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		repo := NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Repository: repo,
			Backend:    BackendPostgres,
			ping:       pool.Ping,
			close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

// Ping checks the backend connection. The memory backend always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
