package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-sync/internal/worker/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync worker with its admin HTTP and gRPC endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	// 1. Wire the process
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 2. Admin surfaces
	httpSrv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           handler.NewSyncHandler(a.worker, a.outbox, a.logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	port := a.cfg.Server.GRPCPort
	if !strings.Contains(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	handler.RegisterSyncAdminServer(grpcServer, handler.NewSyncAdminHandler(a.worker, a.outbox, a.logger))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	// 3. Worker
	if err := a.worker.Start(ctx); err != nil {
		lis.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Starting admin HTTP server", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("Starting gRPC server", zap.String("port", port))
		return grpcServer.Serve(lis)
	})

	// 4. Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down...")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.worker.Stop(shutdownCtx); err != nil {
			a.logger.Warn("Sync cycle interrupted by shutdown", zap.Error(err))
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Admin HTTP server shutdown failed", zap.Error(err))
		}
		grpcServer.GracefulStop()
		a.logger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}
