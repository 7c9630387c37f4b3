// Package queue persists the matchmaking waiting pool.
package queue

import (
	"context"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	// Upsert inserts the actor's entry or refreshes goal, score and joined_at
	// when one already exists.
	Upsert(ctx context.Context, entry *models.QueueEntry) error
	// LockOldestOther returns the longest-waiting entry that does not belong
	// to actorID, skipping rows locked by concurrent pairings and entries whose
	// owner already has a waiting or live session.
	LockOldestOther(ctx context.Context, actorID string) (*models.QueueEntry, error)
	Delete(ctx context.Context, actorID string) (bool, error)
}
