package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/grpcserver"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// runHealthcheck implements `booking-service healthcheck`, the container
// health probe. It exits non-zero unless the local instance is serving.
func runHealthcheck() int {
	port, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.Millis("HEALTHCHECK_TIMEOUT_MS", 3*time.Second))
	defer cancel()
	ctx = grpcx.WithRequestID(ctx, grpcx.NewRequestID())

	if err := checkHealth(ctx, "127.0.0.1:"+port); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		return 1
	}
	return 0
}

func checkHealth(ctx context.Context, addr string) error {
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}
