// Package node wires the reference store/wallet node together and runs its
// HTTP and gRPC servers until the context is cancelled.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/logging"
	"github.com/firecat-notes/firecat/internal/node/db"
	"github.com/firecat-notes/firecat/internal/node/grpcapi"
	"github.com/firecat-notes/firecat/internal/node/httpapi"
	"github.com/firecat-notes/firecat/internal/node/records"
	"github.com/firecat-notes/firecat/internal/node/storage"
	"github.com/firecat-notes/firecat/internal/node/storage/s3store"
	"github.com/firecat-notes/firecat/internal/node/wallet"
)

const readHeaderTimeout = 10 * time.Second

type App struct {
	config  *config.NodeConfig
	logger  logging.Logger
	repos   *db.RepositoryManager
	handler http.Handler
	grpc    *grpc.Server
}

// NewApp opens the database, selects the record backend and builds the
// HTTP handler and the gRPC server over the same services.
func NewApp(ctx context.Context, cfg *config.NodeConfig, logger logging.Logger) (*App, error) {
	repos, err := db.NewRepositoryManager(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	backend, err := openBackend(ctx, cfg, repos)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	rs := records.NewService(backend, logger.With("module", "records"))
	ws := wallet.NewService(repos.Users(), rs, cfg.Wallet, logger.With("module", "wallet"))
	api := httpapi.NewServer(rs, ws, logger, httpapi.Options{
		RPS:          cfg.Rate.RPS,
		Burst:        cfg.Rate.Burst,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	rpc := grpcapi.NewServer(rs, ws, logger, grpcapi.Options{
		RPS:          cfg.Rate.RPS,
		Burst:        cfg.Rate.Burst,
		MaxRecvBytes: int(cfg.MaxBodyBytes),
	})

	return &App{
		config:  cfg,
		logger:  logger,
		repos:   repos,
		handler: api.Routes(),
		grpc:    rpc.NewGRPCServer(),
	}, nil
}

func openBackend(ctx context.Context, cfg *config.NodeConfig, repos *db.RepositoryManager) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		st, err := s3store.New(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		return st, nil
	default:
		return repos.Records(), nil
	}
}

// Handler is the node's full HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) Close() error {
	app.grpc.Stop()
	return app.repos.Close()
}

// Run serves HTTP on Addr, and gRPC on GRPCAddr when set, until ctx is done
// or either server fails.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.Addr)
	if err != nil {
		return err
	}
	if app.config.GRPCAddr == "" {
		return app.Serve(ctx, ln)
	}

	gln, err := net.Listen("tcp", app.config.GRPCAddr)
	if err != nil {
		_ = ln.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Serve(gctx, ln) })
	g.Go(func() error { return app.ServeGRPC(gctx, gln) })
	return g.Wait()
}

// ServeGRPC serves the gRPC API on ln and stops gracefully when ctx is done.
func (app *App) ServeGRPC(ctx context.Context, ln net.Listener) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		app.logger.Info(context.Background(), "Stopping gRPC server...")
		app.grpc.GracefulStop()
	}()

	app.logger.Info(ctx, "Starting gRPC server", "address", ln.Addr().String())

	if err := app.grpc.Serve(ln); err != nil {
		return err
	}
	<-stopped
	return nil
}

func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var (
		wg          sync.WaitGroup
		shutdownErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		app.logger.Info(context.Background(), "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		shutdownErr = srv.Shutdown(sctx)
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", ln.Addr().String(), "storage", app.config.Storage.Backend)

	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	wg.Wait()
	return shutdownErr
}
