package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Tributary-ai-services/leakwatch/middleware"
	"github.com/Tributary-ai-services/leakwatch/pkg/config"
	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
	"github.com/Tributary-ai-services/leakwatch/pkg/rpc"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC scan service with metrics and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// serve runs the gRPC and HTTP listeners until ctx ends.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.HTTP.Port))
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("http listen: %w", err)
	}

	grpcSrv, healthSrv := newGRPCServer(cfg, rt, logger)
	httpSrv := &http.Server{
		Handler:      newHTTPHandler(cfg.Server.HTTP, healthSrv, logger),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	logger.Info("leakwatch serving",
		"version", Version,
		"grpc", grpcLis.Addr().String(),
		"http", httpLis.Addr().String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})

	return g.Wait()
}

func newGRPCServer(cfg *config.Config, rt *runtime, logger *slog.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(middleware.UnaryServerInterceptor(logger, middleware.DefaultGRPCConfig())),
	}
	if cfg.Server.GRPC.MaxRecvMsgSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.Server.GRPC.MaxRecvMsgSize))
	}

	srv := grpc.NewServer(opts...)

	var svcOpts []rpc.ServiceOption
	svcOpts = append(svcOpts, rpc.WithServiceLogger(logger))
	if cfg.Scanning.MaxContentSize > 0 {
		svcOpts = append(svcOpts, rpc.WithMaxTextBytes(cfg.Scanning.MaxContentSize))
	}
	rpc.RegisterScanServer(srv, rpc.NewService(rt.scanner, rt.scorer, svcOpts...))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(rpc.ScanServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return srv, healthSrv
}

// newHTTPHandler serves metrics and a health endpoint mirroring the gRPC
// health status.
func newHTTPHandler(c config.HTTPServerConfig, healthSrv *health.Server, logger *slog.Logger) http.Handler {
	metricsPath := c.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	healthPath := c.HealthPath
	if healthPath == "" {
		healthPath = "/healthz"
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		resp, err := healthSrv.Check(r.Context(), &healthpb.HealthCheckRequest{Service: rpc.ScanServiceName})
		w.Header().Set("Content-Type", "application/json")
		if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return middleware.HTTPMiddleware(logger, &middleware.HTTPConfig{
		RequestIDHeader: middleware.DefaultHTTPConfig().RequestIDHeader,
		ExemptPaths:     []string{metricsPath, healthPath},
	})(mux)
}
