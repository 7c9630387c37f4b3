package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Upsert(ctx context.Context, entry *models.QueueEntry) error {
	query :=
		`INSERT INTO queue_entries (actor_id, goal, score, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (actor_id) DO UPDATE
		 SET goal = EXCLUDED.goal, score = EXCLUDED.score, joined_at = EXCLUDED.joined_at
		 `

	_, err := r.db.ExecContext(ctx, query, entry.ActorID, entry.Goal, entry.Score, entry.JoinedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) LockOldestOther(ctx context.Context, actorID string) (*models.QueueEntry, error) {
	query :=
		`SELECT q.actor_id, q.goal, q.score, q.joined_at FROM queue_entries q
		 WHERE q.actor_id <> $1
		   AND NOT EXISTS (
		     SELECT 1 FROM ephemeral_sessions s
		     WHERE s.status <> 'ended' AND (s.actor_a_id = q.actor_id OR s.actor_b_id = q.actor_id)
		   )
		 ORDER BY q.joined_at ASC, q.actor_id ASC
		 LIMIT 1
		 FOR UPDATE OF q SKIP LOCKED
		 `

	e := &models.QueueEntry{}
	err := r.db.QueryRowContext(ctx, query, actorID).Scan(&e.ActorID, &e.Goal, &e.Score, &e.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return e, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, actorID string) (bool, error) {
	query := `DELETE FROM queue_entries WHERE actor_id = $1`

	res, err := r.db.ExecContext(ctx, query, actorID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n > 0, nil
}
