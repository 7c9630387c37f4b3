package models

import "time"

// EphemeralStatus is the lifecycle state of an ad-hoc pairing.
// Ended is permanent.
type EphemeralStatus string

const (
	EphemeralWaiting EphemeralStatus = "waiting"
	EphemeralLive    EphemeralStatus = "live"
	EphemeralEnded   EphemeralStatus = "ended"
)

// QueueEntry is a waiting-pool row. At most one per actor.
type QueueEntry struct {
	ActorID  string
	Goal     string
	Score    int
	JoinedAt time.Time
}

// EphemeralSession is a transient, RTC-backed pairing between two actors.
type EphemeralSession struct {
	ID        string
	ActorAID  string
	ActorBID  string
	RoomName  string
	Goal      string
	Status    EphemeralStatus
	StartedAt time.Time
	EndedAt   *time.Time
}

// HasParticipant reports whether actorID is one of the two paired actors.
func (s *EphemeralSession) HasParticipant(actorID string) bool {
	return s.ActorAID == actorID || s.ActorBID == actorID
}

// Partner returns the other participant's id, or "" if actorID is not in the session.
func (s *EphemeralSession) Partner(actorID string) string {
	switch actorID {
	case s.ActorAID:
		return s.ActorBID
	case s.ActorBID:
		return s.ActorAID
	}
	return ""
}

// Age is the time elapsed since the pairing was created.
func (s *EphemeralSession) Age(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

func (s *EphemeralSession) IsActive() bool {
	return s.Status == EphemeralWaiting || s.Status == EphemeralLive
}
