// Package api defines the wire messages and the gRPC service description of
// the Tandem coordinator. Messages travel as JSON through the codec
// registered under the "json" content subtype.
package api

import (
	"encoding/json"
	"time"
)

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// JoinRequest enters the ad-hoc matchmaking pool, or polls it.
type JoinRequest struct {
	Goal  string `json:"goal"`
	Score int    `json:"score"`
}

type JoinResponse struct {
	Matched    bool   `json:"matched"`
	Waiting    bool   `json:"waiting,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Room       string `json:"room,omitempty"`
	Credential string `json:"credential,omitempty"`
	Partner    string `json:"partner,omitempty"`
}

type CancelQueueRequest struct{}

type CancelQueueResponse struct {
	Removed bool `json:"removed"`
}

type LeaveRequest struct {
	SessionID string `json:"sessionId"`
}

type LeaveResponse struct {
	OK bool `json:"ok"`
}

type CheckPartnerRequest struct {
	SessionID string `json:"sessionId"`
}

type CheckPartnerResponse struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	PartnerLeft bool   `json:"partnerLeft"`
}

type BookRequest struct {
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	TutorID        *string   `json:"tutorId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// BookResponse carries the stored session body verbatim, so a replayed
// booking is byte-identical to the first response.
type BookResponse struct {
	Session json.RawMessage `json:"session"`
}

// BookedSession is the decoded form of BookResponse.Session.
type BookedSession struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
	Tutor     *string   `json:"tutor,omitempty"`
}

// Decode unmarshals the session body.
func (r *BookResponse) Decode() (*BookedSession, error) {
	var s BookedSession
	if err := json.Unmarshal(r.Session, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type TransitionRequest struct {
	SessionID  string `json:"sessionId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Reason     string `json:"reason"`
}

type SessionStatusView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type TransitionResponse struct {
	Session SessionStatusView `json:"session"`
}
