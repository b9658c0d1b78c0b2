package grpcx

import (
	"context"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// RequestIDMetadataKey carries the request id over gRPC metadata; keys are lowercase there.
const RequestIDMetadataKey = "x-request-id"

// The gRPC side shares the HTTP context slot so ids survive HTTP -> gRPC hops
// and log lines look the same on both transports.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return httpx.ContextWithRequestID(ctx, id)
}

func NewRequestID() string {
	return httpx.NewRequestID()
}
