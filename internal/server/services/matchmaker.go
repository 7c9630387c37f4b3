package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// JoinOutcome is the result of one pairing attempt.
type JoinOutcome struct {
	Matched bool
	Session *models.EphemeralSession
	Partner string
}

// Matchmaker pairs waiting actors first-in first-out. All coordination
// happens in the store; the type holds no pairing state.
type Matchmaker struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	auditor     *Auditor
	clock       clock.Clock
	log         logging.Logger
}

func NewMatchmaker(db *sql.DB, m repomanager.RepositoryManager, auditor *Auditor, clk clock.Clock, log logging.Logger) *Matchmaker {
	return &Matchmaker{db: db, repomanager: m, auditor: auditor, clock: clk, log: log.With("module", "matchmaker")}
}

// RoomName derives the immutable room identifier for a new pairing.
func RoomName(actorA, actorB string, unixNano int64) string {
	if actorB < actorA {
		actorA, actorB = actorB, actorA
	}
	return fmt.Sprintf("tandem-%s-%s-%d", actorA, actorB, unixNano)
}

// JoinQueue enqueues actorID and pairs it with the oldest other waiting
// actor, if any. Repeated calls refresh the caller's entry.
func (m *Matchmaker) JoinQueue(ctx context.Context, actorID, goal string, score int) (*JoinOutcome, error) {
	out, err := m.joinOnce(ctx, actorID, goal, score)
	if err != nil && dbx.IsRetryable(err) {
		m.log.Warn(ctx, "pairing transaction aborted, retrying", "actor_id", actorID, "error", err)
		out, err = m.joinOnce(ctx, actorID, goal, score)
	}
	return out, err
}

func (m *Matchmaker) joinOnce(ctx context.Context, actorID, goal string, score int) (*JoinOutcome, error) {
	var out *JoinOutcome

	err := dbx.WithTx(ctx, m.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		queue := m.repomanager.Queue(tx)
		sessions := m.repomanager.Ephemeral(tx)
		now := m.clock.Now()

		if err := queue.Upsert(ctx, &models.QueueEntry{ActorID: actorID, Goal: goal, Score: score, JoinedAt: now}); err != nil {
			return err
		}

		// The upsert waits on any pairing that holds our row, so this read
		// sees a session committed by that pairing.
		active, err := sessions.FindActiveByActor(ctx, actorID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		if active != nil {
			for _, id := range []string{actorID, active.Partner(actorID)} {
				if _, err := queue.Delete(ctx, id); err != nil {
					return err
				}
			}
			out = &JoinOutcome{Matched: true, Session: active, Partner: active.Partner(actorID)}
			return nil
		}

		candidate, err := queue.LockOldestOther(ctx, actorID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				out = &JoinOutcome{}
				return nil
			}
			return err
		}

		session, err := sessions.FindWaitingByPair(ctx, candidate.ActorID, actorID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if session == nil {
			fresh := &models.EphemeralSession{
				ID:        uuid.NewString(),
				ActorAID:  candidate.ActorID,
				ActorBID:  actorID,
				RoomName:  RoomName(candidate.ActorID, actorID, now.UnixNano()),
				Goal:      candidate.Goal,
				Status:    models.EphemeralWaiting,
				StartedAt: now,
			}

			created, err := sessions.CreateIfAbsent(ctx, fresh)
			if err != nil {
				return err
			}
			if created {
				session = fresh
				if err := m.auditor.Append(ctx, tx, models.AuditEntry{
					ActorID:  actorID,
					Entity:   EntityEphemeralSession,
					EntityID: fresh.ID,
					Action:   ActionMatch,
					After:    string(models.EphemeralWaiting),
					Reason:   "paired with " + candidate.ActorID,
				}); err != nil {
					return err
				}
			} else {
				// a concurrent pairing of the same two actors won the insert
				session, err = sessions.FindWaitingByPair(ctx, candidate.ActorID, actorID)
				if err != nil {
					return err
				}
			}
		}

		for _, id := range []string{actorID, candidate.ActorID} {
			if _, err := queue.Delete(ctx, id); err != nil {
				return err
			}
		}

		out = &JoinOutcome{Matched: true, Session: session, Partner: session.Partner(actorID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Matched {
		m.log.Info(ctx, "actors paired",
			"session_id", out.Session.ID, "room", out.Session.RoomName, "actor_id", actorID, "partner_id", out.Partner)
	}
	return out, nil
}

// LeaveQueue removes the actor's waiting entry. It reports whether one existed.
func (m *Matchmaker) LeaveQueue(ctx context.Context, actorID string) (bool, error) {
	return m.repomanager.Queue(m.db).Delete(ctx, actorID)
}
