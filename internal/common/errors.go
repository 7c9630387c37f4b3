// Package common defines shared constants and sentinel errors used across
// client and server layers of Tandem. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors, rejected before any transaction begins.
	ErrValidation           = errors.New("validation failed")
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request")

	// Booking business rules.
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrTutorUnavailable   = errors.New("tutor unavailable")
	ErrTimeSlotConflict   = errors.New("time slot conflict")

	// State machine errors.
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrSessionCancelTooLate   = errors.New("session cancel too late")
	ErrSessionNotJoinable     = errors.New("session outside live window")
	ErrAdminRequired          = errors.New("admin actor required")
	ErrUnexpectedStatusChange = errors.New("unexpected status change")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Reason codes are stable identifiers surfaced to clients next to the
// human-readable message.
const (
	ReasonValidation             = "VALIDATION_FAILED"
	ReasonIdempotencyKeyReused   = "IDEMPOTENCY_KEY_REUSED"
	ReasonInsufficientCredit     = "INSUFFICIENT_CREDIT"
	ReasonTutorUnavailable       = "TUTOR_UNAVAILABLE"
	ReasonTimeSlotConflict       = "TIME_SLOT_CONFLICT"
	ReasonInvalidTransition      = "INVALID_TRANSITION"
	ReasonSessionCancelTooLate   = "SESSION_CANCEL_TOO_LATE"
	ReasonSessionNotJoinable     = "SESSION_NOT_JOINABLE"
	ReasonAdminRequired          = "ADMIN_REQUIRED"
	ReasonUnexpectedStatusChange = "UNEXPECTED_STATUS_CHANGE"
	ReasonNotFound               = "NOT_FOUND"
	ReasonForbidden              = "FORBIDDEN"
	ReasonUnauthenticated        = "UNAUTHENTICATED"
	ReasonInternal               = "INTERNAL"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrValidation, ReasonValidation},
	{ErrIdempotencyKeyReused, ReasonIdempotencyKeyReused},
	{ErrInsufficientCredit, ReasonInsufficientCredit},
	{ErrTutorUnavailable, ReasonTutorUnavailable},
	{ErrTimeSlotConflict, ReasonTimeSlotConflict},
	{ErrInvalidTransition, ReasonInvalidTransition},
	{ErrSessionCancelTooLate, ReasonSessionCancelTooLate},
	{ErrSessionNotJoinable, ReasonSessionNotJoinable},
	{ErrAdminRequired, ReasonAdminRequired},
	{ErrUnexpectedStatusChange, ReasonUnexpectedStatusChange},
	{ErrorNotFound, ReasonNotFound},
	{ErrorForbidden, ReasonForbidden},
	{ErrorUnauthorized, ReasonUnauthenticated},
	{ErrInvalidToken, ReasonUnauthenticated},
	{ErrTokenExpired, ReasonUnauthenticated},
}

// Reason returns the stable reason code for err, or ReasonInternal when err
// does not wrap any known sentinel.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}
