package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProfiles(s *memStore, credits int) {
	s.learners["lp-alice"] = &models.LearnerProfile{ID: "lp-alice", UserID: "alice", Credits: credits}
	s.tutors[bobTutorID] = &models.TutorProfile{ID: bobTutorID, UserID: "bob", DisplayName: "Bob", Active: true}
	s.tutors["tp-idle"] = &models.TutorProfile{ID: "tp-idle", UserID: "idle", Active: false}
}

func strptr(s string) *string { return &s }

func TestCreditChecker_Reserve(t *testing.T) {
	slot := models.Interval{Start: t0.Add(48 * time.Hour), End: t0.Add(49 * time.Hour)}

	tests := []struct {
		name    string
		credits int
		user    string
		tutor   *string
		booked  []*models.ScheduledSession
		wantErr error
	}{
		{name: "no tutor", credits: 1, user: "alice"},
		{name: "with tutor", credits: 1, user: "alice", tutor: strptr(bobTutorID)},
		{name: "missing learner", credits: 1, user: "ghost", wantErr: common.ErrorNotFound},
		{name: "missing tutor", credits: 1, user: "alice", tutor: strptr("tp-none"), wantErr: common.ErrTutorUnavailable},
		{name: "inactive tutor", credits: 1, user: "alice", tutor: strptr("tp-idle"), wantErr: common.ErrTutorUnavailable},
		{name: "insufficient", credits: 0, user: "alice", tutor: strptr(bobTutorID), wantErr: common.ErrInsufficientCredit},
		{
			name: "overlapping tutor booking", credits: 1, user: "alice", tutor: strptr(bobTutorID),
			booked: []*models.ScheduledSession{{ID: "x", TutorProfileID: strptr(bobTutorID),
				StartTime: slot.Start.Add(30 * time.Minute), EndTime: slot.End.Add(30 * time.Minute), Status: models.StatusLive}},
			wantErr: common.ErrTimeSlotConflict,
		},
		{
			name: "back to back is free", credits: 1, user: "alice", tutor: strptr(bobTutorID),
			booked: []*models.ScheduledSession{{ID: "x", TutorProfileID: strptr(bobTutorID),
				StartTime: slot.End, EndTime: slot.End.Add(time.Hour), Status: models.StatusScheduled}},
		},
		{
			name: "cancelled never blocks", credits: 1, user: "alice", tutor: strptr(bobTutorID),
			booked: []*models.ScheduledSession{{ID: "x", TutorProfileID: strptr(bobTutorID),
				StartTime: slot.Start, EndTime: slot.End, Status: models.StatusCancelled}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			seedProfiles(store, tt.credits)
			for _, b := range tt.booked {
				store.scheduled[b.ID] = b
			}
			c := NewCreditChecker(&fakeRepoManager{store}, 1)

			r, err := c.Reserve(context.Background(), nil, tt.user, slot, tt.tutor)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.credits, store.learners["lp-alice"].Credits, "balance must be untouched")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.credits, r.BalanceBefore)
			assert.Equal(t, tt.credits-1, r.BalanceAfter)
			assert.Equal(t, tt.credits-1, store.learners["lp-alice"].Credits)
		})
	}
}
