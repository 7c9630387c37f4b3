package ephemeral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, actor_a_id, actor_b_id, room_name, goal, status, started_at, ended_at`

func scanSession(row *sql.Row) (*models.EphemeralSession, error) {
	s := &models.EphemeralSession{}
	var endedAt sql.NullTime

	err := row.Scan(&s.ID, &s.ActorAID, &s.ActorBID, &s.RoomName, &s.Goal, &s.Status, &s.StartedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.EphemeralSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ephemeral_sessions
		 WHERE id = $1
		 `
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindActiveByActor(ctx context.Context, actorID string) (*models.EphemeralSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ephemeral_sessions
		 WHERE (actor_a_id = $1 OR actor_b_id = $1) AND status IN ('waiting', 'live')
		 ORDER BY started_at DESC
		 LIMIT 1
		 `
	return scanSession(r.db.QueryRowContext(ctx, query, actorID))
}

func (r *PostgresRepository) FindWaitingByPair(ctx context.Context, actorA, actorB string) (*models.EphemeralSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM ephemeral_sessions
		 WHERE LEAST(actor_a_id, actor_b_id) = LEAST($1::text, $2::text)
		   AND GREATEST(actor_a_id, actor_b_id) = GREATEST($1::text, $2::text)
		   AND status = 'waiting'
		 `
	return scanSession(r.db.QueryRowContext(ctx, query, actorA, actorB))
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, s *models.EphemeralSession) (bool, error) {
	query :=
		`INSERT INTO ephemeral_sessions (id, actor_a_id, actor_b_id, room_name, goal, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (LEAST(actor_a_id, actor_b_id), GREATEST(actor_a_id, actor_b_id)) WHERE status = 'waiting'
		 DO NOTHING
		 RETURNING id
		 `

	var id string
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.ActorAID, s.ActorBID, s.RoomName, s.Goal, s.Status, s.StartedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) MarkLive(ctx context.Context, id string) (bool, error) {
	query :=
		`UPDATE ephemeral_sessions SET status = 'live'
		 WHERE id = $1 AND status = 'waiting'
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) MarkEnded(ctx context.Context, id string, at time.Time) (bool, error) {
	query :=
		`UPDATE ephemeral_sessions SET status = 'ended', ended_at = $2
		 WHERE id = $1 AND status <> 'ended'
		 `
	return r.exec(ctx, query, id, at)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
