package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/logging"
	sc "github.com/dmitrijs2005/tandem/internal/server/config"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tandem/internal/server/rtc"
	"github.com/google/uuid"
)

// partnerLeftPayload is broadcast to the room when a participant leaves.
var partnerLeftPayload = []byte(`{"type":"partner_left"}`)

const maxGoalLength = 64

// errReplay aborts a booking transaction whose idempotency key is owned by
// an earlier request.
var errReplay = errors.New("idempotency key already claimed")

// JoinResult answers an ad-hoc join call.
type JoinResult struct {
	Matched    bool
	Waiting    bool
	SessionID  string
	Room       string
	Credential string
	Partner    string
}

// LeaveResult answers a leave call.
type LeaveResult struct {
	OK bool
}

// PartnerStatus answers a partner-disconnect check.
type PartnerStatus struct {
	SessionID   string
	Status      models.EphemeralStatus
	PartnerLeft bool
}

// BookRequest is a booking request after transport decoding.
type BookRequest struct {
	StartTime      time.Time
	EndTime        time.Time
	TutorID        *string
	IdempotencyKey string
}

// BookedSession is the stored and returned view of a booking.
type BookedSession struct {
	ID        string               `json:"id"`
	StartTime time.Time            `json:"startTime"`
	EndTime   time.Time            `json:"endTime"`
	Status    models.SessionStatus `json:"status"`
	Tutor     *string              `json:"tutor,omitempty"`
}

// BookResult is the booking response. Body is the exact JSON stored for
// idempotent replay.
type BookResult struct {
	Session  BookedSession
	Body     []byte
	Replayed bool
}

// TransitionRequest asks the state machine for one transition.
type TransitionRequest struct {
	SessionID  string
	FromStatus models.SessionStatus
	ToStatus   models.SessionStatus
	Reason     string
}

// LifecycleService is the single entry point for client operations. It
// orchestrates matchmaking, reconciliation, booking and transitions.
type LifecycleService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	provider     rtc.Provider
	ledger       *IdempotencyLedger
	credits      *CreditChecker
	stateMachine *SessionStateMachine
	matchmaker   *Matchmaker
	reconciler   *Reconciler
	auditor      *Auditor
	clock        clock.Clock
	policy       ReconcilePolicy
	log          logging.Logger
}

// NewLifecycleService wires the coordinator components from configuration.
func NewLifecycleService(db *sql.DB, m repomanager.RepositoryManager, provider rtc.Provider, cfg *sc.Config, clk clock.Clock, log logging.Logger) *LifecycleService {
	auditor := NewAuditor(m, clk)
	policy := ReconcilePolicy{
		GraceWindow:  cfg.GraceWindow,
		StaleHorizon: cfg.StaleHorizon,
		CallTimeout:  cfg.RTCCallTimeout,
	}

	return &LifecycleService{
		db:          db,
		repomanager: m,
		provider:    provider,
		ledger:      NewIdempotencyLedger(m, clk),
		credits:     NewCreditChecker(m, cfg.SessionCreditCost),
		stateMachine: NewSessionStateMachine(db, m, auditor, clk, TransitionPolicy{
			LiveWindowSlack: cfg.LiveWindowSlack,
			CancelCutoff:    cfg.CancelCutoff,
		}),
		matchmaker: NewMatchmaker(db, m, auditor, clk, log),
		reconciler: NewReconciler(db, m, provider, auditor, clk, policy, log),
		auditor:    auditor,
		clock:      clk,
		policy:     policy,
		log:        log.With("module", "lifecycle"),
	}
}

// Join pairs the actor for an ad-hoc session, resuming an existing one when
// the RTC provider still agrees it is alive.
func (s *LifecycleService) Join(ctx context.Context, actor models.Actor, goal string, score int) (*JoinResult, error) {
	if len(goal) > maxGoalLength || score < 0 {
		return nil, fmt.Errorf("goal at most %d bytes and non-negative score: %w", maxGoalLength, common.ErrValidation)
	}

	existing, err := s.repomanager.Ephemeral(s.db).FindActiveByActor(ctx, actor.UserID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	if existing != nil {
		decision, err := s.reconciler.Reconcile(ctx, existing)
		if err != nil {
			return nil, err
		}
		switch decision {
		case DecisionResume:
			return s.admit(ctx, actor, existing)
		case DecisionUnknown:
			return &JoinResult{Waiting: true, SessionID: existing.ID}, nil
		}
	}

	out, err := s.matchmaker.JoinQueue(ctx, actor.UserID, goal, score)
	if err != nil {
		return nil, err
	}
	if !out.Matched {
		return &JoinResult{Waiting: true}, nil
	}

	return s.admit(ctx, actor, out.Session)
}

// admit makes sure the session's room exists and issues the actor's credential.
func (s *LifecycleService) admit(ctx context.Context, actor models.Actor, session *models.EphemeralSession) (*JoinResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	defer cancel()

	if err := s.provider.CreateRoom(cctx, session.RoomName); err != nil {
		s.log.Warn(ctx, "room creation failed, issuing credential anyway",
			"session_id", session.ID, "room", session.RoomName, "error", err)
	}

	credential, err := s.provider.IssueToken(session.RoomName, actor.UserID, rtc.RoleSpeaker)
	if err != nil {
		return nil, fmt.Errorf("issue rtc credential: %w", err)
	}

	return &JoinResult{
		Matched:    true,
		SessionID:  session.ID,
		Room:       session.RoomName,
		Credential: credential,
		Partner:    session.Partner(actor.UserID),
	}, nil
}

// CancelQueue withdraws the actor from the waiting pool. Cancelling when not
// queued is not an error.
func (s *LifecycleService) CancelQueue(ctx context.Context, actor models.Actor) (bool, error) {
	return s.matchmaker.LeaveQueue(ctx, actor.UserID)
}

func (s *LifecycleService) participantSession(ctx context.Context, actor models.Actor, sessionID string) (*models.EphemeralSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required: %w", common.ErrValidation)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("session id %q: %w", sessionID, common.ErrValidation)
	}

	session, err := s.repomanager.Ephemeral(s.db).GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(actor.UserID) {
		return nil, common.ErrorForbidden
	}
	return session, nil
}

// Leave notifies the partner, tears the room down and ends the session.
// Notification and teardown are best effort; only the store write can fail.
func (s *LifecycleService) Leave(ctx context.Context, actor models.Actor, sessionID string) (*LeaveResult, error) {
	session, err := s.participantSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.EphemeralEnded {
		return &LeaveResult{OK: true}, nil
	}

	bctx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	if err := s.provider.Broadcast(bctx, session.RoomName, actor.UserID, partnerLeftPayload); err != nil {
		s.log.Warn(ctx, "partner notification failed", "session_id", session.ID, "error", err)
	}
	cancel()

	dctx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	if err := s.provider.DeleteRoom(dctx, session.RoomName); err != nil {
		s.log.Warn(ctx, "room teardown failed", "session_id", session.ID, "room", session.RoomName, "error", err)
	}
	cancel()

	if err := s.endSession(ctx, actor, session, ActionLeave, "participant left"); err != nil {
		return nil, err
	}

	return &LeaveResult{OK: true}, nil
}

func (s *LifecycleService) endSession(ctx context.Context, actor models.Actor, session *models.EphemeralSession, action, reason string) error {
	return dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		ended, err := s.repomanager.Ephemeral(tx).MarkEnded(ctx, session.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ended {
			return nil
		}
		return s.auditor.Append(ctx, tx, models.AuditEntry{
			ActorID:  actor.UserID,
			Entity:   EntityEphemeralSession,
			EntityID: session.ID,
			Action:   action,
			Before:   string(session.Status),
			After:    string(models.EphemeralEnded),
			Reason:   reason,
		})
	})
}

// CheckPartner detects a partner who dropped out of a live session and ends
// the session when they did. Provider failures never end a session here.
func (s *LifecycleService) CheckPartner(ctx context.Context, actor models.Actor, sessionID string) (*PartnerStatus, error) {
	session, err := s.participantSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	status := &PartnerStatus{SessionID: session.ID, Status: session.Status}
	if session.Status == models.EphemeralEnded {
		status.PartnerLeft = true
		return status, nil
	}
	if session.Status != models.EphemeralLive || session.Age(s.clock.Now()) < s.policy.GraceWindow {
		return status, nil
	}

	lctx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	occupants, err := s.provider.ListOccupants(lctx, session.RoomName)
	cancel()
	if err != nil {
		s.log.Debug(ctx, "occupancy unavailable", "session_id", session.ID, "error", err)
		return status, nil
	}

	partner := session.Partner(actor.UserID)
	for _, id := range occupants {
		if id == partner {
			return status, nil
		}
	}

	if err := s.endSession(ctx, actor, session, ActionPartnerDisconnected, partner+" left the room"); err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, s.policy.CallTimeout)
	defer cancel()
	if err := s.provider.DeleteRoom(dctx, session.RoomName); err != nil {
		s.log.Debug(ctx, "room teardown failed", "room", session.RoomName, "error", err)
	}

	status.Status = models.EphemeralEnded
	status.PartnerLeft = true
	return status, nil
}

type bookFingerprint struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	TutorID   *string   `json:"tutorId,omitempty"`
}

// Book creates a SCHEDULED session and debits its cost in one transaction.
// With an idempotency key, a retried request replays the first response.
func (s *LifecycleService) Book(ctx context.Context, actor models.Actor, req BookRequest) (*BookResult, error) {
	if err := s.validateBooking(req); err != nil {
		return nil, err
	}

	fingerprint, err := json.Marshal(bookFingerprint{
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		TutorID:   req.TutorID,
	})
	if err != nil {
		return nil, err
	}

	key := models.IdempotencyKey{Token: req.IdempotencyKey, Operation: OperationBook, ActorID: actor.UserID}
	keyed := req.IdempotencyKey != ""

	if keyed {
		rec, err := s.ledger.Check(ctx, s.db, key, fingerprint)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return replay(rec)
		}
	}

	var result *BookResult
	err = dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		if keyed {
			claimed, err := s.ledger.Claim(ctx, tx, key, fingerprint)
			if err != nil {
				return err
			}
			if !claimed {
				return errReplay
			}
		}

		interval := models.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
		reservation, err := s.credits.Reserve(ctx, tx, actor.UserID, interval, req.TutorID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		session := &models.ScheduledSession{
			ID:               uuid.NewString(),
			LearnerProfileID: reservation.Learner.ID,
			LearnerUserID:    actor.UserID,
			TutorProfileID:   req.TutorID,
			StartTime:        interval.Start,
			EndTime:          interval.End,
			Status:           models.StatusScheduled,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repomanager.Scheduled(tx).Create(ctx, session); err != nil {
			return err
		}

		if err := s.auditor.Append(ctx, tx, models.AuditEntry{
			ActorID:  actor.UserID,
			Entity:   EntityLearnerProfile,
			EntityID: reservation.Learner.ID,
			Action:   ActionCreditDebit,
			Before:   strconv.Itoa(reservation.BalanceBefore),
			After:    strconv.Itoa(reservation.BalanceAfter),
			Reason:   "booking " + session.ID,
		}); err != nil {
			return err
		}
		if err := s.auditor.Append(ctx, tx, models.AuditEntry{
			ActorID:  actor.UserID,
			Entity:   EntityScheduledSession,
			EntityID: session.ID,
			Action:   ActionBook,
			After:    string(models.StatusScheduled),
			Reason:   "booked " + interval.Start.Format(time.RFC3339),
		}); err != nil {
			return err
		}

		booked := BookedSession{
			ID:        session.ID,
			StartTime: session.StartTime,
			EndTime:   session.EndTime,
			Status:    session.Status,
			Tutor:     session.TutorProfileID,
		}
		body, err := json.Marshal(booked)
		if err != nil {
			return err
		}

		if keyed {
			if err := s.ledger.Record(ctx, tx, key, fingerprint, body, http.StatusCreated); err != nil {
				return err
			}
		}

		result = &BookResult{Session: booked, Body: body}
		return nil
	})

	if errors.Is(err, errReplay) {
		rec, cerr := s.ledger.Check(ctx, s.db, key, fingerprint)
		if cerr != nil {
			return nil, cerr
		}
		if rec == nil {
			return nil, fmt.Errorf("claimed idempotency key has no response: %w", common.ErrorInternal)
		}
		return replay(rec)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "session booked",
		"session_id", result.Session.ID, "actor_id", actor.UserID, "start", result.Session.StartTime)
	return result, nil
}

func (s *LifecycleService) validateBooking(req BookRequest) error {
	switch {
	case req.StartTime.IsZero() || req.EndTime.IsZero():
		return fmt.Errorf("start and end time required: %w", common.ErrValidation)
	case !req.EndTime.After(req.StartTime):
		return fmt.Errorf("end time must be after start time: %w", common.ErrValidation)
	case req.StartTime.Before(s.clock.Now()):
		return fmt.Errorf("start time is in the past: %w", common.ErrValidation)
	case req.TutorID != nil && *req.TutorID == "":
		return fmt.Errorf("tutor id must not be empty: %w", common.ErrValidation)
	case req.TutorID != nil && uuid.Validate(*req.TutorID) != nil:
		return fmt.Errorf("tutor id %q: %w", *req.TutorID, common.ErrValidation)
	case len(req.IdempotencyKey) > 255:
		return fmt.Errorf("idempotency key too long: %w", common.ErrValidation)
	}
	return nil
}

func replay(rec *models.IdempotencyRecord) (*BookResult, error) {
	var booked BookedSession
	if err := json.Unmarshal(rec.ResponseBody, &booked); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &BookResult{Session: booked, Body: rec.ResponseBody, Replayed: true}, nil
}

// Transition runs one state-machine transition on a booked session.
func (s *LifecycleService) Transition(ctx context.Context, actor models.Actor, req TransitionRequest) (*models.ScheduledSession, error) {
	session, err := s.stateMachine.Transition(ctx, actor, req.SessionID, req.FromStatus, req.ToStatus, req.Reason)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "session transitioned",
		"session_id", session.ID, "actor_id", actor.UserID, "from", req.FromStatus, "to", req.ToStatus)
	return session, nil
}
