// Command reflekt-server starts the Reflekt journal gRPC server.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/reflekt/internal/config"
	"github.com/and161185/reflekt/internal/limiter"
	"github.com/and161185/reflekt/internal/migrate"
	"github.com/and161185/reflekt/internal/repository/postgres"
	grpcserver "github.com/and161185/reflekt/internal/server/grpc"
	"github.com/and161185/reflekt/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

// main loads configuration, runs migrations, and serves the Journal API.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("timezone", cfg.Location.String()),
	)

	var serverOpts []grpc.ServerOption
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled; bearer tokens travel in clear text")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	entryRepo := postgres.NewEntryRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.LimiterWindow, cfg.LimiterMaxFails, cfg.LimiterBlockFor)

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTKey), cfg.AccessTTL, lim)
	entrySvc := service.NewEntryService(entryRepo, cfg.SidebarLimit, cfg.MaxImport)
	archiveSvc := service.NewArchiveService(entryRepo, cfg.PageSize)

	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
		grpcserver.AuthUnary([]byte(cfg.JWTKey), grpcserver.PublicMethods, grpcserver.ReasonMethods),
	))
	s := grpc.NewServer(serverOpts...)

	app := grpcserver.New(authSvc, entrySvc, archiveSvc, []byte(cfg.JWTKey), cfg.Location, logger)
	grpcserver.RegisterJournalServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
