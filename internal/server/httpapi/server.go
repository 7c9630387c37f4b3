// Package httpapi serves the HTTP side port: a health probe and the
// WebSocket push variant of the join poll.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/services"
)

// Joiner is the slice of the coordinator the match stream drives.
type Joiner interface {
	Join(ctx context.Context, actor models.Actor, goal string, score int) (*services.JoinResult, error)
	CancelQueue(ctx context.Context, actor models.Actor) (bool, error)
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	address      string
	joiner       Joiner
	db           Pinger
	logger       logging.Logger
	jwtSecret    []byte
	pollInterval time.Duration
}

func NewHTTPServer(address string, l logging.Logger, j Joiner, db Pinger, secretKey string, pollInterval time.Duration) *HTTPServer {
	return &HTTPServer{
		address:      address,
		joiner:       j,
		db:           db,
		logger:       l.With("module", "http_server"),
		jwtSecret:    []byte(secretKey),
		pollInterval: pollInterval,
	}
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/match/stream", s.handleMatchStream)
	return mux
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn(ctx, "health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
