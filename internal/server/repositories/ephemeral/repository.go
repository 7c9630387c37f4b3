// Package ephemeral persists ad-hoc pairings between two actors.
package ephemeral

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.EphemeralSession, error)
	// FindActiveByActor returns the actor's most recent waiting or live session.
	FindActiveByActor(ctx context.Context, actorID string) (*models.EphemeralSession, error)
	// FindWaitingByPair returns the waiting session between the two actors
	// in either order.
	FindWaitingByPair(ctx context.Context, actorA, actorB string) (*models.EphemeralSession, error)
	// CreateIfAbsent inserts s unless a waiting session for the same pair
	// already exists. It reports whether s was inserted.
	CreateIfAbsent(ctx context.Context, s *models.EphemeralSession) (bool, error)
	MarkLive(ctx context.Context, id string) (bool, error)
	MarkEnded(ctx context.Context, id string, at time.Time) (bool, error)
}
