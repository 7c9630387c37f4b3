package client

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

/*************
 * Fake api client
 *************/

type fakeAPI struct {
	lastJoinReq  *api.JoinRequest
	lastBookReq  *api.BookRequest
	lastTransReq *api.TransitionRequest

	joinResp *api.JoinResponse
	bookResp *api.BookResponse
	replay   bool
	err      error
}

func (f *fakeAPI) Ping(ctx context.Context, in *api.PingRequest, opts ...grpc.CallOption) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, f.err
}
func (f *fakeAPI) Join(ctx context.Context, in *api.JoinRequest, opts ...grpc.CallOption) (*api.JoinResponse, error) {
	f.lastJoinReq = in
	return f.joinResp, f.err
}
func (f *fakeAPI) CancelQueue(ctx context.Context, in *api.CancelQueueRequest, opts ...grpc.CallOption) (*api.CancelQueueResponse, error) {
	return &api.CancelQueueResponse{Removed: true}, f.err
}
func (f *fakeAPI) Leave(ctx context.Context, in *api.LeaveRequest, opts ...grpc.CallOption) (*api.LeaveResponse, error) {
	return &api.LeaveResponse{OK: true}, f.err
}
func (f *fakeAPI) CheckPartner(ctx context.Context, in *api.CheckPartnerRequest, opts ...grpc.CallOption) (*api.CheckPartnerResponse, error) {
	return &api.CheckPartnerResponse{SessionID: in.SessionID, Status: "live"}, f.err
}
func (f *fakeAPI) Book(ctx context.Context, in *api.BookRequest, opts ...grpc.CallOption) (*api.BookResponse, error) {
	f.lastBookReq = in
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range opts {
		if h, ok := o.(grpc.HeaderCallOption); ok && f.replay {
			*h.HeaderAddr = metadata.Pairs(api.ReplayHeader, "true")
		}
	}
	return f.bookResp, nil
}
func (f *fakeAPI) Transition(ctx context.Context, in *api.TransitionRequest, opts ...grpc.CallOption) (*api.TransitionResponse, error) {
	f.lastTransReq = in
	if f.err != nil {
		return nil, f.err
	}
	return &api.TransitionResponse{Session: api.SessionStatusView{ID: in.SessionID, Status: in.ToStatus}}, nil
}

func newTestClient(f *fakeAPI) *GRPCClient {
	return &GRPCClient{client: f}
}

func reasonStatus(t *testing.T, code codes.Code, reason string, md map[string]string) error {
	t.Helper()
	st, err := status.New(code, "msg").WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: common.ErrorDomain, Metadata: md})
	require.NoError(t, err)
	return st.Err()
}

func TestWithAccessToken_ReplacesExisting(t *testing.T) {
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "old")
	ctx = withAccessToken(ctx, "new")

	md, _ := metadata.FromOutgoingContext(ctx)
	assert.Equal(t, []string{"new"}, md.Get(common.AccessTokenHeaderName))
}

func TestAccessTokenInterceptor_InjectsToken(t *testing.T) {
	c := &GRPCClient{accessToken: "tok"}
	var got []string
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get(common.AccessTokenHeaderName)
		return nil
	}
	require.NoError(t, c.accessTokenInterceptor(context.Background(), api.MethodJoin, nil, nil, nil, invoker))
	assert.Equal(t, []string{"tok"}, got)
}

func TestJoin_PassesRequest(t *testing.T) {
	f := &fakeAPI{joinResp: &api.JoinResponse{Waiting: true}}
	resp, err := newTestClient(f).Join(context.Background(), "travel", 3)
	require.NoError(t, err)
	assert.True(t, resp.Waiting)
	assert.Equal(t, &api.JoinRequest{Goal: "travel", Score: 3}, f.lastJoinReq)
}

func TestBook_DecodesAndDetectsReplay(t *testing.T) {
	body := []byte(`{"id":"s-1","startTime":"2026-05-06T09:00:00Z","endTime":"2026-05-06T10:00:00Z","status":"SCHEDULED"}`)
	f := &fakeAPI{bookResp: &api.BookResponse{Session: body}, replay: true}

	res, err := newTestClient(f).Book(context.Background(), &api.BookRequest{IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.Session.ID)
	assert.Equal(t, body, res.Body)
	assert.True(t, res.Replayed)
}

func TestMapError(t *testing.T) {
	c := newTestClient(&fakeAPI{})

	err := c.mapError(reasonStatus(t, codes.Aborted, common.ReasonUnexpectedStatusChange, map[string]string{"currentStatus": "CANCELLED"}))
	var re *ReasonError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, common.ReasonUnexpectedStatusChange, re.Reason)
	assert.Equal(t, "CANCELLED", re.CurrentStatus)
	assert.Contains(t, err.Error(), "current status CANCELLED")

	assert.ErrorIs(t, c.mapError(status.Error(codes.Unavailable, "down")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "slow")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.Unauthenticated, "missing token")), ErrUnauthorized)
	assert.Nil(t, c.mapError(nil))
}

func TestTransition_MapsError(t *testing.T) {
	f := &fakeAPI{err: reasonStatus(t, codes.FailedPrecondition, common.ReasonInvalidTransition, nil)}
	_, err := newTestClient(f).Transition(context.Background(), &api.TransitionRequest{SessionID: "s-1"})
	assert.Equal(t, common.ReasonInvalidTransition, Reason(err))
}
