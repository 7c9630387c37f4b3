package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
)

// Reservation is what a successful credit/conflict check locked and charged.
type Reservation struct {
	Learner       *models.LearnerProfile
	Tutor         *models.TutorProfile
	BalanceBefore int
	BalanceAfter  int
}

// CreditChecker validates and charges a booking. It must run inside the
// booking transaction: every step either succeeds or the caller rolls back.
type CreditChecker struct {
	repomanager repomanager.RepositoryManager
	cost        int
}

func NewCreditChecker(m repomanager.RepositoryManager, cost int) *CreditChecker {
	return &CreditChecker{repomanager: m, cost: cost}
}

// Reserve locks the learner (and tutor, when named), rejects overlapping
// tutor bookings and debits the session cost.
func (c *CreditChecker) Reserve(ctx context.Context, tx dbx.DBTX, learnerUserID string, in models.Interval, tutorProfileID *string) (*Reservation, error) {
	profiles := c.repomanager.Profiles(tx)

	learner, err := profiles.LockLearnerByUserID(ctx, learnerUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("learner profile for %s: %w", learnerUserID, common.ErrorNotFound)
		}
		return nil, err
	}

	r := &Reservation{Learner: learner, BalanceBefore: learner.Credits}

	if tutorProfileID != nil {
		tutor, err := profiles.LockTutor(ctx, *tutorProfileID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fmt.Errorf("tutor %s: %w", *tutorProfileID, common.ErrTutorUnavailable)
			}
			return nil, err
		}
		if !tutor.Active {
			return nil, fmt.Errorf("tutor %s inactive: %w", tutor.ID, common.ErrTutorUnavailable)
		}
		r.Tutor = tutor

		conflict, err := c.repomanager.Scheduled(tx).HasTutorConflict(ctx, tutor.ID, in)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, common.ErrTimeSlotConflict
		}
	}

	balance, ok, err := profiles.Debit(ctx, learner.ID, c.cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("balance %d, cost %d: %w", learner.Credits, c.cost, common.ErrInsufficientCredit)
	}
	r.BalanceAfter = balance

	return r, nil
}
