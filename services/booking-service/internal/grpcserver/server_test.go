package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthFollowsChecks(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv, hs := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	conn, err := grpcx.Dial(lis.Addr().String(), grpcx.DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before the first refresh, got %s", got)
	}

	dbDown := errors.New("db down")
	failing := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error { return dbDown }}
	if Refresh(ctx, hs, failing) {
		t.Fatal("refresh should report failure")
	}
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", got)
	}

	ok := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	if !Refresh(ctx, hs, ok) {
		t.Fatal("refresh should succeed")
	}
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", got)
	}
}
