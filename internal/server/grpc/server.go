package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/services"
	"google.golang.org/grpc"
)

// Lifecycle is the coordinator surface the gRPC handlers delegate to.
type Lifecycle interface {
	Join(ctx context.Context, actor models.Actor, goal string, score int) (*services.JoinResult, error)
	CancelQueue(ctx context.Context, actor models.Actor) (bool, error)
	Leave(ctx context.Context, actor models.Actor, sessionID string) (*services.LeaveResult, error)
	CheckPartner(ctx context.Context, actor models.Actor, sessionID string) (*services.PartnerStatus, error)
	Book(ctx context.Context, actor models.Actor, req services.BookRequest) (*services.BookResult, error)
	Transition(ctx context.Context, actor models.Actor, req services.TransitionRequest) (*models.ScheduledSession, error)
}

type GRPCServer struct {
	api.UnimplementedTandemServer
	address   string
	lifecycle Lifecycle
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, lc Lifecycle, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		lifecycle: lc,
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds the gRPC server with interceptors and the service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.accessTokenInterceptor))
	api.RegisterTandemServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
