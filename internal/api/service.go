package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "tandem.v1.Tandem"

// Full method names, as seen by interceptors.
const (
	MethodPing         = "/" + ServiceName + "/Ping"
	MethodJoin         = "/" + ServiceName + "/Join"
	MethodCancelQueue  = "/" + ServiceName + "/CancelQueue"
	MethodLeave        = "/" + ServiceName + "/Leave"
	MethodCheckPartner = "/" + ServiceName + "/CheckPartner"
	MethodBook         = "/" + ServiceName + "/Book"
	MethodTransition   = "/" + ServiceName + "/Transition"
)

// ReplayHeader is set to "true" in response headers when a booking was
// answered from the idempotency ledger.
const ReplayHeader = "idempotent-replay"

// TandemServer is the server API for the tandem.v1.Tandem service.
type TandemServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Join(context.Context, *JoinRequest) (*JoinResponse, error)
	CancelQueue(context.Context, *CancelQueueRequest) (*CancelQueueResponse, error)
	Leave(context.Context, *LeaveRequest) (*LeaveResponse, error)
	CheckPartner(context.Context, *CheckPartnerRequest) (*CheckPartnerResponse, error)
	Book(context.Context, *BookRequest) (*BookResponse, error)
	Transition(context.Context, *TransitionRequest) (*TransitionResponse, error)
}

// UnimplementedTandemServer can be embedded to have forward compatible
// implementations.
type UnimplementedTandemServer struct{}

func (UnimplementedTandemServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedTandemServer) Join(context.Context, *JoinRequest) (*JoinResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Join not implemented")
}
func (UnimplementedTandemServer) CancelQueue(context.Context, *CancelQueueRequest) (*CancelQueueResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelQueue not implemented")
}
func (UnimplementedTandemServer) Leave(context.Context, *LeaveRequest) (*LeaveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Leave not implemented")
}
func (UnimplementedTandemServer) CheckPartner(context.Context, *CheckPartnerRequest) (*CheckPartnerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckPartner not implemented")
}
func (UnimplementedTandemServer) Book(context.Context, *BookRequest) (*BookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Book not implemented")
}
func (UnimplementedTandemServer) Transition(context.Context, *TransitionRequest) (*TransitionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transition not implemented")
}

func RegisterTandemServer(s grpc.ServiceRegistrar, srv TandemServer) {
	s.RegisterService(&Tandem_ServiceDesc, srv)
}

// unaryHandler adapts one typed method to the grpc.MethodDesc handler shape.
func unaryHandler[Req any, Resp any](fullMethod string, call func(TandemServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TandemServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TandemServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Tandem_ServiceDesc is the grpc.ServiceDesc for the tandem.v1.Tandem service.
var Tandem_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TandemServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, TandemServer.Ping)},
		{MethodName: "Join", Handler: unaryHandler(MethodJoin, TandemServer.Join)},
		{MethodName: "CancelQueue", Handler: unaryHandler(MethodCancelQueue, TandemServer.CancelQueue)},
		{MethodName: "Leave", Handler: unaryHandler(MethodLeave, TandemServer.Leave)},
		{MethodName: "CheckPartner", Handler: unaryHandler(MethodCheckPartner, TandemServer.CheckPartner)},
		{MethodName: "Book", Handler: unaryHandler(MethodBook, TandemServer.Book)},
		{MethodName: "Transition", Handler: unaryHandler(MethodTransition, TandemServer.Transition)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tandem/v1/tandem.json",
}

// TandemClient is the client API for the tandem.v1.Tandem service.
type TandemClient interface {
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error)
	CancelQueue(ctx context.Context, in *CancelQueueRequest, opts ...grpc.CallOption) (*CancelQueueResponse, error)
	Leave(ctx context.Context, in *LeaveRequest, opts ...grpc.CallOption) (*LeaveResponse, error)
	CheckPartner(ctx context.Context, in *CheckPartnerRequest, opts ...grpc.CallOption) (*CheckPartnerResponse, error)
	Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error)
	Transition(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*TransitionResponse, error)
}

type tandemClient struct {
	cc grpc.ClientConnInterface
}

// NewTandemClient returns a client that always sends the JSON content
// subtype.
func NewTandemClient(cc grpc.ClientConnInterface) TandemClient {
	return &tandemClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tandemClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *tandemClient) Join(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	return invoke[JoinResponse](ctx, c.cc, MethodJoin, in, opts)
}

func (c *tandemClient) CancelQueue(ctx context.Context, in *CancelQueueRequest, opts ...grpc.CallOption) (*CancelQueueResponse, error) {
	return invoke[CancelQueueResponse](ctx, c.cc, MethodCancelQueue, in, opts)
}

func (c *tandemClient) Leave(ctx context.Context, in *LeaveRequest, opts ...grpc.CallOption) (*LeaveResponse, error) {
	return invoke[LeaveResponse](ctx, c.cc, MethodLeave, in, opts)
}

func (c *tandemClient) CheckPartner(ctx context.Context, in *CheckPartnerRequest, opts ...grpc.CallOption) (*CheckPartnerResponse, error) {
	return invoke[CheckPartnerResponse](ctx, c.cc, MethodCheckPartner, in, opts)
}

func (c *tandemClient) Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error) {
	return invoke[BookResponse](ctx, c.cc, MethodBook, in, opts)
}

func (c *tandemClient) Transition(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*TransitionResponse, error) {
	return invoke[TransitionResponse](ctx, c.cc, MethodTransition, in, opts)
}
