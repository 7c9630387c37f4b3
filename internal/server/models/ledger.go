package models

import "time"

// LearnerProfile owns the prepaid credit balance. Credits never go negative.
type LearnerProfile struct {
	ID      string
	UserID  string
	Credits int
}

// TutorProfile is a bookable counterpart.
type TutorProfile struct {
	ID          string
	UserID      string
	DisplayName string
	Active      bool
}

// IdempotencyKey identifies one logical mutating request.
type IdempotencyKey struct {
	Token     string
	Operation string
	ActorID   string
}

// IdempotencyRecord is the stored outcome of a request. ResponseBody is nil
// while the owning transaction has not filled it in.
type IdempotencyRecord struct {
	Key          IdempotencyKey
	RequestHash  []byte
	ResponseBody []byte
	StatusCode   int
	CreatedAt    time.Time
}

// AuditEntry is an append-only record of a lifecycle transition.
type AuditEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action"`
	Before    string    `json:"before,omitempty"`
	After     string    `json:"after,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
