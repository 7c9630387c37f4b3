package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// ReasonError is a failure the server classified with a stable reason code.
type ReasonError struct {
	Reason  string
	Message string
	// CurrentStatus is set when a transition lost a race to another writer.
	CurrentStatus string
}

func (e *ReasonError) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s: %s (current status %s)", e.Reason, e.Message, e.CurrentStatus)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Reason returns the reason code carried by err, or "".
func Reason(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
