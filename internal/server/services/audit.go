package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Audited entity kinds.
const (
	EntityLearnerProfile   = "learner_profile"
	EntityScheduledSession = "scheduled_session"
	EntityEphemeralSession = "ephemeral_session"
)

// Audited actions.
const (
	ActionCreditDebit         = "credit_debit"
	ActionBook                = "book"
	ActionTransition          = "transition"
	ActionAdminComplete       = "admin_complete"
	ActionMatch               = "match"
	ActionLeave               = "leave"
	ActionStale               = "stale"
	ActionPromote             = "promote"
	ActionPartnerDisconnected = "partner_disconnected"
)

// Auditor appends lifecycle audit entries. Entries are never read back by
// the coordinator.
type Auditor struct {
	repomanager repomanager.RepositoryManager
	clock       clock.Clock
}

func NewAuditor(m repomanager.RepositoryManager, clk clock.Clock) *Auditor {
	return &Auditor{repomanager: m, clock: clk}
}

// Append writes e through db, filling in ID and CreatedAt. Passing the
// business transaction makes the entry commit with the change it describes.
func (a *Auditor) Append(ctx context.Context, db dbx.DBTX, e models.AuditEntry) error {
	e.ID = uuid.NewString()
	e.CreatedAt = a.clock.Now()

	if err := a.repomanager.Audit(db).Append(ctx, &e); err != nil {
		return fmt.Errorf("audit %s %s: %w", e.Entity, e.Action, err)
	}
	return nil
}
