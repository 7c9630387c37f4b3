// Package scheduled persists credit-backed bookings.
package scheduled

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.ScheduledSession) error
	GetByID(ctx context.Context, id string) (*models.ScheduledSession, error)
	// HasTutorConflict reports whether the tutor holds a SCHEDULED or LIVE
	// booking overlapping the half-open interval.
	HasTutorConflict(ctx context.Context, tutorProfileID string, in models.Interval) (bool, error)
	// UpdateStatus moves the session to `to` only while it is still in
	// `expected`. It reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, expected, to models.SessionStatus, at time.Time) (bool, error)
}
