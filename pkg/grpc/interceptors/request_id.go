package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDKey is the metadata key carrying the request id. It matches the
// HTTP X-Request-ID header once lower-cased.
const RequestIDKey = "x-request-id"

type requestIDContextKey struct{}

// RequestIDFromContext returns the request id set by the interceptor, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// RequestIDUnaryInterceptor propagates the caller's request id or generates
// one, and echoes it in the response header.
func RequestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := extractOrGenerateRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, id))
		return handler(context.WithValue(ctx, requestIDContextKey{}, id), req)
	}
}

// RequestIDStreamInterceptor does the same for streams.
func RequestIDStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		id := extractOrGenerateRequestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(RequestIDKey, id))
		ctx := context.WithValue(ss.Context(), requestIDContextKey{}, id)
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func extractOrGenerateRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDKey); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.New().String()
}

// wrappedStream overrides the stream context.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
