// Package idempotency persists stored outcomes of mutating requests.
package idempotency

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, key models.IdempotencyKey) (*models.IdempotencyRecord, error)
	// Claim inserts a response-less record. It reports false when a record
	// for the key already exists; a concurrent claimer blocks until the
	// owning transaction ends.
	Claim(ctx context.Context, key models.IdempotencyKey, requestHash []byte, at time.Time) (bool, error)
	// Save stores the response for the key. A response already stored is
	// never overwritten; saved is false in that case.
	Save(ctx context.Context, rec *models.IdempotencyRecord) (saved bool, err error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
