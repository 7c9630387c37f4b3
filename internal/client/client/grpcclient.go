package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      api.TandemClient
	accessToken string
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewTandemClientService(endpointURL, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewTandemClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx, &api.PingRequest{})
	return s.mapError(err)
}

func (s *GRPCClient) Join(ctx context.Context, goal string, score int) (*api.JoinResponse, error) {
	resp, err := s.client.Join(ctx, &api.JoinRequest{Goal: goal, Score: score})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) CancelQueue(ctx context.Context) (bool, error) {
	resp, err := s.client.CancelQueue(ctx, &api.CancelQueueRequest{})
	if err != nil {
		return false, s.mapError(err)
	}
	return resp.Removed, nil
}

func (s *GRPCClient) Leave(ctx context.Context, sessionID string) error {
	_, err := s.client.Leave(ctx, &api.LeaveRequest{SessionID: sessionID})
	return s.mapError(err)
}

func (s *GRPCClient) CheckPartner(ctx context.Context, sessionID string) (*api.CheckPartnerResponse, error) {
	resp, err := s.client.CheckPartner(ctx, &api.CheckPartnerRequest{SessionID: sessionID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Book(ctx context.Context, req *api.BookRequest) (*BookResult, error) {
	var header metadata.MD
	resp, err := s.client.Book(ctx, req, grpc.Header(&header))
	if err != nil {
		return nil, s.mapError(err)
	}

	session, err := resp.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode booked session: %w", err)
	}

	replayed := false
	if v := header.Get(api.ReplayHeader); len(v) > 0 {
		replayed = v[0] == "true"
	}
	return &BookResult{Session: session, Body: resp.Session, Replayed: replayed}, nil
}

func (s *GRPCClient) Transition(ctx context.Context, req *api.TransitionRequest) (*api.SessionStatusView, error) {
	resp, err := s.client.Transition(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Session, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)

	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == common.ErrorDomain {
			return &ReasonError{Reason: info.Reason, Message: st.Message(), CurrentStatus: info.Metadata["currentStatus"]}
		}
	}

	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
