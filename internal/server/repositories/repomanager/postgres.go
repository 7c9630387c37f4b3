// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/migrations"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/audit"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/ephemeral"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/idempotency"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/queue"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/scheduled"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Queue returns a queue.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Queue(db dbx.DBTX) queue.Repository {
	return queue.NewPostgresRepository(db)
}

// Ephemeral returns an ephemeral.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Ephemeral(db dbx.DBTX) ephemeral.Repository {
	return ephemeral.NewPostgresRepository(db)
}

// Scheduled returns a scheduled.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Scheduled(db dbx.DBTX) scheduled.Repository {
	return scheduled.NewPostgresRepository(db)
}

// Profiles returns a profiles.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Profiles(db dbx.DBTX) profiles.Repository {
	return profiles.NewPostgresRepository(db)
}

// Idempotency returns an idempotency.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Idempotency(db dbx.DBTX) idempotency.Repository {
	return idempotency.NewPostgresRepository(db)
}

// Audit returns an audit.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
