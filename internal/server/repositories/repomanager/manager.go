package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/audit"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/ephemeral"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/idempotency"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/queue"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/scheduled"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Queue(db dbx.DBTX) queue.Repository
	Ephemeral(db dbx.DBTX) ephemeral.Repository
	Scheduled(db dbx.DBTX) scheduled.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Idempotency(db dbx.DBTX) idempotency.Repository
	Audit(db dbx.DBTX) audit.Repository
}
