package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query :=
		`INSERT INTO audit_entries (id, actor_id, entity, entity_id, action, before_value, after_value, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 `

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ActorID, e.Entity, e.EntityID, e.Action, e.Before, e.After, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditEntry, error) {
	query :=
		`SELECT id, actor_id, entity, entity_id, action, before_value, after_value, reason, created_at
		 FROM audit_entries
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		err := rows.Scan(&e.ID, &e.ActorID, &e.Entity, &e.EntityID, &e.Action, &e.Before, &e.After, &e.Reason, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
