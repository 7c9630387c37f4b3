package idempotency

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

func (r *PostgresRepository) Get(ctx context.Context, key models.IdempotencyKey) (*models.IdempotencyRecord, error) {
	query :=
		`SELECT request_hash, response_body, status_code, created_at FROM idempotency_records
		 WHERE token = $1 AND operation = $2 AND actor_id = $3
		 `

	rec := &models.IdempotencyRecord{Key: key}
	err := r.db.QueryRowContext(ctx, query, key.Token, key.Operation, key.ActorID).
		Scan(&rec.RequestHash, &rec.ResponseBody, &rec.StatusCode, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Claim(ctx context.Context, key models.IdempotencyKey, requestHash []byte, at time.Time) (bool, error) {
	query :=
		`INSERT INTO idempotency_records (token, operation, actor_id, request_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (token, operation, actor_id) DO NOTHING
		 RETURNING token
		 `

	var token string
	err := r.db.QueryRowContext(ctx, query, key.Token, key.Operation, key.ActorID, requestHash, at).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return true, nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec *models.IdempotencyRecord) (bool, error) {
	query :=
		`INSERT INTO idempotency_records (token, operation, actor_id, request_hash, response_body, status_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (token, operation, actor_id) DO UPDATE
		 SET response_body = EXCLUDED.response_body, status_code = EXCLUDED.status_code
		 WHERE idempotency_records.response_body IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query,
		rec.Key.Token, rec.Key.Operation, rec.Key.ActorID,
		rec.RequestHash, rec.ResponseBody, rec.StatusCode, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n > 0, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM idempotency_records WHERE created_at < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
