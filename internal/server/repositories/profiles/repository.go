// Package profiles persists learner credit balances and tutor profiles.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/tandem/internal/server/models"
)

type Repository interface {
	CreateLearner(ctx context.Context, p *models.LearnerProfile) error
	CreateTutor(ctx context.Context, p *models.TutorProfile) error
	GetLearnerByUserID(ctx context.Context, userID string) (*models.LearnerProfile, error)
	// LockLearnerByUserID reads the learner row with FOR UPDATE.
	LockLearnerByUserID(ctx context.Context, userID string) (*models.LearnerProfile, error)
	// LockTutor reads the tutor row with FOR UPDATE so bookings against one
	// tutor serialize on it.
	LockTutor(ctx context.Context, tutorProfileID string) (*models.TutorProfile, error)
	// Debit subtracts amount only when the balance covers it. ok is false
	// when it did not, and the balance is left unchanged.
	Debit(ctx context.Context, learnerProfileID string, amount int) (balance int, ok bool, err error)
}
