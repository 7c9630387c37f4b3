package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TransitionPolicy holds the time guards of the booking state machine.
type TransitionPolicy struct {
	// LiveWindowSlack widens [start, end] on both sides for SCHEDULED -> LIVE.
	LiveWindowSlack time.Duration
	// CancelCutoff is how long before start a non-admin may still cancel.
	CancelCutoff time.Duration
}

var transitions = map[models.SessionStatus]map[models.SessionStatus]bool{
	models.StatusScheduled: {
		models.StatusLive:      true,
		models.StatusCancelled: true,
		models.StatusCompleted: true,
	},
	models.StatusLive: {
		models.StatusCompleted: true,
		models.StatusNoShow:    true,
	},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to models.SessionStatus) bool {
	return transitions[from][to]
}

// CheckGuard evaluates the guard of an allowed transition for s at now.
func CheckGuard(s *models.ScheduledSession, actor models.Actor, to models.SessionStatus, now time.Time, p TransitionPolicy) error {
	switch {
	case s.Status == models.StatusScheduled && to == models.StatusLive:
		opens := s.StartTime.Add(-p.LiveWindowSlack)
		closes := s.EndTime.Add(p.LiveWindowSlack)
		if now.Before(opens) || now.After(closes) {
			return fmt.Errorf("live window is [%s, %s]: %w",
				opens.Format(time.RFC3339), closes.Format(time.RFC3339), common.ErrSessionNotJoinable)
		}
	case s.Status == models.StatusScheduled && to == models.StatusCancelled:
		if actor.IsAdmin() {
			return nil
		}
		if now.After(s.StartTime.Add(-p.CancelCutoff)) {
			return fmt.Errorf("cancellation closes %s before start: %w", p.CancelCutoff, common.ErrSessionCancelTooLate)
		}
	case s.Status == models.StatusScheduled && to == models.StatusCompleted:
		if !actor.IsAdmin() {
			return common.ErrAdminRequired
		}
	}
	return nil
}

// SessionStateMachine applies validated transitions to scheduled sessions
// with optimistic concurrency on the expected prior status.
type SessionStateMachine struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	auditor     *Auditor
	clock       clock.Clock
	policy      TransitionPolicy
}

func NewSessionStateMachine(db *sql.DB, m repomanager.RepositoryManager, auditor *Auditor, clk clock.Clock, p TransitionPolicy) *SessionStateMachine {
	return &SessionStateMachine{db: db, repomanager: m, auditor: auditor, clock: clk, policy: p}
}

// Transition moves the session from expected to to. The store is only
// written when the stored status still equals expected.
func (m *SessionStateMachine) Transition(ctx context.Context, actor models.Actor, sessionID string, expected, to models.SessionStatus, reason string) (*models.ScheduledSession, error) {
	if sessionID == "" || !expected.Valid() || !to.Valid() {
		return nil, fmt.Errorf("session id and known statuses required: %w", common.ErrValidation)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("session id %q: %w", sessionID, common.ErrValidation)
	}
	if !CanTransition(expected, to) {
		return nil, fmt.Errorf("%s -> %s: %w", expected, to, common.ErrInvalidTransition)
	}

	var result *models.ScheduledSession
	err := dbx.WithTx(ctx, m.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.Scheduled(tx)

		s, err := repo.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !s.IsParticipant(actor.UserID) {
			return common.ErrorForbidden
		}
		if s.Status != expected {
			return unexpectedStatus(expected, s.Status)
		}

		now := m.clock.Now()
		if err := CheckGuard(s, actor, to, now, m.policy); err != nil {
			return err
		}

		ok, err := repo.UpdateStatus(ctx, s.ID, expected, to, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := repo.GetByID(ctx, s.ID)
			if err != nil {
				return err
			}
			return unexpectedStatus(expected, current.Status)
		}

		action := ActionTransition
		if expected == models.StatusScheduled && to == models.StatusCompleted {
			action = ActionAdminComplete
		}
		if err := m.auditor.Append(ctx, tx, models.AuditEntry{
			ActorID:  actor.UserID,
			Entity:   EntityScheduledSession,
			EntityID: s.ID,
			Action:   action,
			Before:   string(expected),
			After:    string(to),
			Reason:   reason,
		}); err != nil {
			return err
		}

		s.Status = to
		s.UpdatedAt = now
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// StatusChangeError reports the status actually found when a transition's
// expectation no longer held.
type StatusChangeError struct {
	Expected models.SessionStatus
	Current  models.SessionStatus
}

func (e *StatusChangeError) Error() string {
	return fmt.Sprintf("expected %s, found %s: %s", e.Expected, e.Current, common.ErrUnexpectedStatusChange)
}

func (e *StatusChangeError) Unwrap() error { return common.ErrUnexpectedStatusChange }

func unexpectedStatus(expected, current models.SessionStatus) error {
	return &StatusChangeError{Expected: expected, Current: current}
}

// CurrentStatus extracts the status found by a failed transition, if any.
func CurrentStatus(err error) (models.SessionStatus, bool) {
	var sc *StatusChangeError
	if errors.As(err, &sc) {
		return sc.Current, true
	}
	return "", false
}
