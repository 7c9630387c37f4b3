package client

import (
	"context"

	"github.com/dmitrijs2005/tandem/internal/api"
)

// BookResult is a booking answer. Body is the session JSON exactly as the
// server stored it.
type BookResult struct {
	Session  *api.BookedSession
	Body     []byte
	Replayed bool
}

type Client interface {
	Ping(ctx context.Context) error
	Join(ctx context.Context, goal string, score int) (*api.JoinResponse, error)
	CancelQueue(ctx context.Context) (bool, error)
	Leave(ctx context.Context, sessionID string) error
	CheckPartner(ctx context.Context, sessionID string) (*api.CheckPartnerResponse, error)
	Book(ctx context.Context, req *api.BookRequest) (*BookResult, error)
	Transition(ctx context.Context, req *api.TransitionRequest) (*api.SessionStatusView, error)
	Close() error
}
