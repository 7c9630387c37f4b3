package grpc

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) actor(ctx context.Context) (models.Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return models.Actor{}, status.Error(codes.Unauthenticated, "missing actor")
	}
	return a, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) Join(ctx context.Context, req *api.JoinRequest) (*api.JoinResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.lifecycle.Join(ctx, actor, req.Goal, req.Score)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodJoin, err)
	}

	return &api.JoinResponse{
		Matched:    res.Matched,
		Waiting:    res.Waiting,
		SessionID:  res.SessionID,
		Room:       res.Room,
		Credential: res.Credential,
		Partner:    res.Partner,
	}, nil
}

func (s *GRPCServer) CancelQueue(ctx context.Context, req *api.CancelQueueRequest) (*api.CancelQueueResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	removed, err := s.lifecycle.CancelQueue(ctx, actor)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodCancelQueue, err)
	}

	return &api.CancelQueueResponse{Removed: removed}, nil
}

func (s *GRPCServer) Leave(ctx context.Context, req *api.LeaveRequest) (*api.LeaveResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.lifecycle.Leave(ctx, actor, req.SessionID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodLeave, err)
	}

	s.logger.Info(ctx, "Left session", "session_id", req.SessionID, "actor_id", actor.UserID)
	return &api.LeaveResponse{OK: res.OK}, nil
}

func (s *GRPCServer) CheckPartner(ctx context.Context, req *api.CheckPartnerRequest) (*api.CheckPartnerResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.lifecycle.CheckPartner(ctx, actor, req.SessionID)
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodCheckPartner, err)
	}

	return &api.CheckPartnerResponse{
		SessionID:   res.SessionID,
		Status:      string(res.Status),
		PartnerLeft: res.PartnerLeft,
	}, nil
}

func (s *GRPCServer) Book(ctx context.Context, req *api.BookRequest) (*api.BookResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.lifecycle.Book(ctx, actor, services.BookRequest{
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		TutorID:        req.TutorID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodBook, err)
	}

	if err := grpc.SetHeader(ctx, metadata.Pairs(api.ReplayHeader, strconv.FormatBool(res.Replayed))); err != nil {
		s.logger.Debug(ctx, "set replay header", "error", err)
	}

	return &api.BookResponse{Session: res.Body}, nil
}

func (s *GRPCServer) Transition(ctx context.Context, req *api.TransitionRequest) (*api.TransitionResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	session, err := s.lifecycle.Transition(ctx, actor, services.TransitionRequest{
		SessionID:  req.SessionID,
		FromStatus: models.SessionStatus(req.FromStatus),
		ToStatus:   models.SessionStatus(req.ToStatus),
		Reason:     req.Reason,
	})
	if err != nil {
		return nil, s.toStatus(ctx, api.MethodTransition, err)
	}

	return &api.TransitionResponse{
		Session: api.SessionStatusView{ID: session.ID, Status: string(session.Status)},
	}, nil
}
