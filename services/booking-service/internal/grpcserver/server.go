// Package grpcserver exposes the standard gRPC health service for the
// booking service. Its serving status follows the readiness checks.
package grpcserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "slotbook.booking.v1.BookingService"

func New(logger *slog.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLoggingInterceptor(logger),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}

// Refresh runs the checks once and publishes the result. It reports whether
// every check passed.
func Refresh(ctx context.Context, hs *health.Server, checks ...runtime.ReadyCheck) bool {
	status := healthpb.HealthCheckResponse_SERVING
	failures := runtime.RunChecks(ctx, 2*time.Second, checks...)
	if len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return len(failures) == 0
}

// Watch refreshes the health status every interval until ctx ends, then
// marks the server as shutting down.
func Watch(ctx context.Context, hs *health.Server, every time.Duration, logger *slog.Logger, checks ...runtime.ReadyCheck) {
	if every <= 0 {
		every = 5 * time.Second
	}
	healthy := Refresh(ctx, hs, checks...)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			now := Refresh(ctx, hs, checks...)
			if now != healthy {
				logger.Info("grpc health changed", "serving", now)
				healthy = now
			}
		}
	}
}
