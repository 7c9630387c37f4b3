package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"golang.org/x/crypto/blake2b"
)

// Operation names used as the second part of an idempotency key.
const (
	OperationBook = "book"
)

// Fingerprint is the request hash stored next to an idempotency record.
func Fingerprint(requestBody []byte) []byte {
	sum := blake2b.Sum256(requestBody)
	return sum[:]
}

// IdempotencyLedger stores the outcome of mutating requests so a retried
// request replays the stored response instead of re-running side effects.
type IdempotencyLedger struct {
	repomanager repomanager.RepositoryManager
	clock       clock.Clock
}

func NewIdempotencyLedger(m repomanager.RepositoryManager, clk clock.Clock) *IdempotencyLedger {
	return &IdempotencyLedger{repomanager: m, clock: clk}
}

// Check returns the completed record for key, or nil when the request has
// not been executed yet. A record whose request body differs fails with
// common.ErrIdempotencyKeyReused.
func (l *IdempotencyLedger) Check(ctx context.Context, db dbx.DBTX, key models.IdempotencyKey, requestBody []byte) (*models.IdempotencyRecord, error) {
	rec, err := l.repomanager.Idempotency(db).Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	if !bytes.Equal(rec.RequestHash, Fingerprint(requestBody)) {
		return nil, common.ErrIdempotencyKeyReused
	}
	if rec.ResponseBody == nil {
		return nil, nil
	}

	return rec, nil
}

// Claim reserves key inside tx. It returns false when another request
// already owns the key; the caller must then roll back and replay.
func (l *IdempotencyLedger) Claim(ctx context.Context, tx dbx.DBTX, key models.IdempotencyKey, requestBody []byte) (bool, error) {
	ok, err := l.repomanager.Idempotency(tx).Claim(ctx, key, Fingerprint(requestBody), l.clock.Now())
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Record stores the response for key inside the transaction that produced
// it. A record that already exists is left untouched and is not an error.
func (l *IdempotencyLedger) Record(ctx context.Context, tx dbx.DBTX, key models.IdempotencyKey, requestBody, responseBody []byte, statusCode int) error {
	if responseBody == nil {
		responseBody = []byte{}
	}

	_, err := l.repomanager.Idempotency(tx).Save(ctx, &models.IdempotencyRecord{
		Key:          key,
		RequestHash:  Fingerprint(requestBody),
		ResponseBody: responseBody,
		StatusCode:   statusCode,
		CreatedAt:    l.clock.Now(),
	})
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("idempotency record: %w", err)
	}

	return nil
}
