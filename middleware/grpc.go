package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
)

// GRPCConfig configures the gRPC interceptor
type GRPCConfig struct {
	// Metadata key carrying the caller's request ID
	RequestIDMetadata string `json:"request_id_metadata"`

	// Methods served without request logs
	ExemptMethods []string `json:"exempt_methods"`
}

// DefaultGRPCConfig returns default gRPC middleware configuration
func DefaultGRPCConfig() *GRPCConfig {
	return &GRPCConfig{
		RequestIDMetadata: "x-request-id",
		ExemptMethods: []string{
			"/grpc.health.v1.Health/Check",
			"/grpc.health.v1.Health/Watch",
		},
	}
}

// UnaryServerInterceptor returns a gRPC unary interceptor adding request
// IDs, panic recovery, request logging and metrics.
func UnaryServerInterceptor(logger *slog.Logger, config *GRPCConfig) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultGRPCConfig()
	}
	exempt := make(map[string]bool, len(config.ExemptMethods))
	for _, m := range config.ExemptMethods {
		exempt[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(config.RequestIDMetadata); len(vals) > 0 {
				requestID = vals[0]
			}
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(config.RequestIDMetadata, requestID))

		defer func() {
			if p := recover(); p != nil {
				logger.Error("panic serving rpc",
					"request_id", requestID,
					"method", info.FullMethod,
					"panic", p,
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			elapsed := time.Since(start)
			metrics.RecordRequest("grpc", info.FullMethod, code.String(), elapsed)
			if exempt[info.FullMethod] {
				return
			}
			level := slog.LevelInfo
			if code != codes.OK {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "grpc request",
				"request_id", requestID,
				"method", info.FullMethod,
				"code", code.String(),
				"duration", elapsed,
			)
		}()

		return handler(ctx, req)
	}
}
