// Package server initializes and runs the Tandem coordinator: it opens the
// database, applies migrations, wires the lifecycle service and serves the
// gRPC API, the HTTP side port and the retention worker until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/config"
	"github.com/dmitrijs2005/tandem/internal/server/httpapi"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tandem/internal/server/rtc"
	"github.com/dmitrijs2005/tandem/internal/server/services"

	gs "github.com/dmitrijs2005/tandem/internal/server/grpc"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	lifecycle *services.LifecycleService
	retention *services.RetentionService
}

// newProvider picks the LiveKit adapter when a host is configured and the
// in-process provider otherwise.
func newProvider(c *config.Config) rtc.Provider {
	if c.RTCHost == "" {
		return rtc.NewMemoryProvider()
	}
	return rtc.NewLiveKitProvider(c.RTCHost, c.RTCAPIKey, c.RTCAPISecret, c.RTCTokenTTL)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := &repomanager.PostgresRepositoryManager{}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	provider := newProvider(c)
	if c.RTCHost == "" {
		logger.Warn(ctx, "no RTC host configured, using in-process rooms")
	}

	clk := clock.Real()
	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		lifecycle: services.NewLifecycleService(db, rm, provider, c, clk, logger),
		retention: services.NewRetentionService(db, rm, c, clk, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.lifecycle, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.lifecycle, app.db,
		app.config.SecretKey, app.config.StreamPollInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.retention.Run(ctx, app.config.RetentionInterval)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
