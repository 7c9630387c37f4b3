// Package rtc abstracts the external real-time-communication provider that
// hosts the voice rooms for ad-hoc sessions.
package rtc

import (
	"context"
	"errors"
)

// ErrRoomNotFound is returned when the provider has no room under the name.
var ErrRoomNotFound = errors.New("rtc room not found")

// Role scopes what a credential holder may do inside a room.
type Role string

const (
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

// Provider is the minimal capability set the coordinator consumes.
type Provider interface {
	// CreateRoom is idempotent on name.
	CreateRoom(ctx context.Context, name string) error
	// IssueToken returns a short-lived credential scoped to one room and identity.
	IssueToken(room, identity string, role Role) (string, error)
	ListOccupants(ctx context.Context, room string) ([]string, error)
	DeleteRoom(ctx context.Context, room string) error
	Broadcast(ctx context.Context, room, sender string, payload []byte) error
}
