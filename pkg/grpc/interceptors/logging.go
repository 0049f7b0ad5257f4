package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs one line per unary call. Health checks are
// polled constantly, so successful ones are not logged.
func LoggingUnaryInterceptor(log Logger) grpc.UnaryServerInterceptor {
	log = orNop(log)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, log, info.FullMethod, "unary", err, time.Since(start))
		return resp, err
	}
}

// LoggingStreamInterceptor logs one line when a stream ends.
func LoggingStreamInterceptor(log Logger) grpc.StreamServerInterceptor {
	log = orNop(log)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), log, info.FullMethod, "stream", err, time.Since(start))
		return err
	}
}

func logCall(ctx context.Context, log Logger, method, kind string, err error, elapsed time.Duration) {
	code := status.Code(err)
	if code == codes.OK && isHealthMethod(method) {
		return
	}
	args := []any{
		"method", method,
		"kind", kind,
		"code", code.String(),
		"duration", elapsed,
		"request_id", RequestIDFromContext(ctx),
	}
	switch code {
	case codes.OK, codes.Canceled:
		log.InfoContext(ctx, "gRPC call", args...)
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		log.ErrorContext(ctx, "gRPC call failed", append(args, "error", err)...)
	default:
		log.WarnContext(ctx, "gRPC call rejected", append(args, "error", err)...)
	}
}

func isHealthMethod(method string) bool {
	service, _ := splitMethod(method)
	return service == "grpc.health.v1.Health"
}
