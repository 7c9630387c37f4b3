package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tandem/internal/server/rtc"
)

// Decision is the outcome of reconciling a stored session against the RTC
// provider.
type Decision int

const (
	// DecisionResume trusts the stored session.
	DecisionResume Decision = iota
	// DecisionStale ends the stored session; the caller starts fresh.
	DecisionStale
	// DecisionUnknown leaves the session untouched; the caller retries later.
	DecisionUnknown
)

func (d Decision) String() string {
	switch d {
	case DecisionResume:
		return "resume"
	case DecisionStale:
		return "stale"
	case DecisionUnknown:
		return "unknown"
	}
	return "invalid"
}

// ReconcilePolicy bounds how long a session may disagree with the provider.
type ReconcilePolicy struct {
	// GraceWindow absorbs provider propagation delay after room creation.
	GraceWindow time.Duration
	// StaleHorizon is the age after which an under-occupied session is ended.
	StaleHorizon time.Duration
	// CallTimeout bounds every provider call.
	CallTimeout time.Duration
}

// Classify is the decision table. occupancy is ignored when callFailed.
func Classify(age time.Duration, occupancy int, callFailed bool, p ReconcilePolicy) Decision {
	if age < p.GraceWindow {
		return DecisionResume
	}
	if callFailed {
		if age >= p.StaleHorizon {
			return DecisionStale
		}
		return DecisionUnknown
	}
	switch {
	case occupancy >= 2:
		return DecisionResume
	case occupancy == 1 && age < p.StaleHorizon:
		return DecisionResume
	}
	return DecisionStale
}

// Reconciler resolves disagreement between stored ephemeral sessions and
// the provider's live occupancy.
type Reconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    rtc.Provider
	auditor     *Auditor
	clock       clock.Clock
	policy      ReconcilePolicy
	log         logging.Logger
}

func NewReconciler(db *sql.DB, m repomanager.RepositoryManager, provider rtc.Provider, auditor *Auditor, clk clock.Clock, p ReconcilePolicy, log logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repomanager: m,
		provider:    provider,
		auditor:     auditor,
		clock:       clk,
		policy:      p,
		log:         log.With("module", "reconciler"),
	}
}

// Reconcile decides what to do with s and applies the decision: a stale
// session is ended, a fully occupied waiting session is promoted to live.
// Store writes are conditional, so concurrent reconciliations converge.
func (r *Reconciler) Reconcile(ctx context.Context, s *models.EphemeralSession) (Decision, error) {
	occupants, callErr := r.occupants(ctx, s.RoomName)
	age := s.Age(r.clock.Now())
	decision := Classify(age, len(occupants), callErr != nil, r.policy)

	r.log.Debug(ctx, "reconciled session",
		"session_id", s.ID, "age", age.String(), "occupancy", len(occupants), "call_error", callErr, "decision", decision.String())

	switch decision {
	case DecisionStale:
		if err := r.end(ctx, s); err != nil {
			return DecisionUnknown, err
		}
	case DecisionResume:
		if len(occupants) >= 2 && s.Status == models.EphemeralWaiting {
			if err := r.promote(ctx, s); err != nil {
				return DecisionUnknown, err
			}
		}
	}

	return decision, nil
}

func (r *Reconciler) occupants(ctx context.Context, room string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
	defer cancel()
	return r.provider.ListOccupants(ctx, room)
}

func (r *Reconciler) end(ctx context.Context, s *models.EphemeralSession) error {
	now := r.clock.Now()
	ended, err := r.repomanager.Ephemeral(r.db).MarkEnded(ctx, s.ID, now)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}

	prev := s.Status
	s.Status = models.EphemeralEnded
	s.EndedAt = &now

	if err := r.auditor.Append(ctx, r.db, models.AuditEntry{
		ActorID:  "system",
		Entity:   EntityEphemeralSession,
		EntityID: s.ID,
		Action:   ActionStale,
		Before:   string(prev),
		After:    string(models.EphemeralEnded),
		Reason:   "rtc occupancy disagrees with stored session",
	}); err != nil {
		r.log.Warn(ctx, "audit append failed", "session_id", s.ID, "error", err)
	}

	dctx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
	defer cancel()
	if err := r.provider.DeleteRoom(dctx, s.RoomName); err != nil {
		r.log.Debug(ctx, "stale room teardown failed", "room", s.RoomName, "error", err)
	}
	return nil
}

func (r *Reconciler) promote(ctx context.Context, s *models.EphemeralSession) error {
	promoted, err := r.repomanager.Ephemeral(r.db).MarkLive(ctx, s.ID)
	if err != nil {
		return err
	}
	if promoted {
		s.Status = models.EphemeralLive
		if err := r.auditor.Append(ctx, r.db, models.AuditEntry{
			ActorID:  "system",
			Entity:   EntityEphemeralSession,
			EntityID: s.ID,
			Action:   ActionPromote,
			Before:   string(models.EphemeralWaiting),
			After:    string(models.EphemeralLive),
			Reason:   "both participants connected",
		}); err != nil {
			r.log.Warn(ctx, "audit append failed", "session_id", s.ID, "error", err)
		}
	}
	return nil
}
