package models

import "time"

// SessionStatus is the state of a booked session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "SCHEDULED"
	StatusLive      SessionStatus = "LIVE"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusCancelled SessionStatus = "CANCELLED"
	StatusNoShow    SessionStatus = "NO_SHOW"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
// Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ScheduledSession is a durable, credit-backed booking.
type ScheduledSession struct {
	ID               string
	LearnerProfileID string
	LearnerUserID    string
	TutorProfileID   *string
	TutorUserID      *string
	StartTime        time.Time
	EndTime          time.Time
	Status           SessionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *ScheduledSession) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

// IsParticipant reports whether userID is the learner or the assigned tutor.
func (s *ScheduledSession) IsParticipant(userID string) bool {
	if s.LearnerUserID == userID {
		return true
	}
	return s.TutorUserID != nil && *s.TutorUserID == userID
}
