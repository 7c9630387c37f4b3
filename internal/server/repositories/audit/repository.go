// Package audit persists the append-only lifecycle audit trail.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	// ListOlderThan returns up to limit entries created before cutoff,
	// oldest first.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditEntry, error)
	Delete(ctx context.Context, id string) error
}
