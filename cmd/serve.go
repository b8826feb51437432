package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"jobmate/proposal-service/internal/api"
	"jobmate/proposal-service/internal/config"
	"jobmate/proposal-service/internal/db"
	"jobmate/proposal-service/internal/grpcserver"
)

var serveSkipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers and the automation scheduler",
	Long: `Applies pending migrations, resumes automation for every user whose policy
enables auto search, and serves the control plane over HTTP and gRPC until
SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "Do not apply migrations at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ── Dependencies ────────────────────────────────────────────────────────
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if !serveSkipMigrate {
		if err := db.Migrate(ctx, a.pool); err != nil {
			return err
		}
		v, _ := db.MigrationVersion(ctx, a.pool)
		logger.Info("migrations applied", "version", v)
	}

	n, err := a.orch.Resume(ctx)
	if err != nil {
		logger.Warn("resume automation failed", "err", err)
	}
	logger.Info("automation resumed", "users", n)

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.NewHandler(a.orch, a.store, logger, version).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // POST /automation/run waits for a full cycle
	}

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	hs := grpcserver.Register(gs, grpcserver.NewServer(a.orch))

	errc := make(chan error, 2)
	go func() {
		logger.Info("http listening", "version", version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc listening", "port", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errc:
		logger.Error("server failed", "err", serveErr)
	}

	logger.Info("shutting down")
	hs.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	gs.GracefulStop()
	if err := a.orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("automation shutdown", "err", err)
	}
	logger.Info("stopped")
	return serveErr
}
