package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/exam-grader/internal/common"
)

// RequestIDHeader carries the caller's request id, echoed back in the response header.
const RequestIDHeader = "x-request-id"

// UnaryLogging tags each call with a request id and logs its outcome.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{"req_id", id, "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "error", err)...)
		} else {
			logger.Debug("grpc.request", attrs...)
		}
		return resp, err
	}
}
