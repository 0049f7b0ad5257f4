// Package interceptors provides the gRPC server interceptor chain: panic
// recovery, request ids, structured logging, Prometheus metrics and
// OpenTelemetry tracing.
package interceptors

import "context"

// Logger is the logging surface the interceptors need. pkg/logger satisfies it.
type Logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoContext(context.Context, string, ...any)  {}
func (NopLogger) WarnContext(context.Context, string, ...any)  {}
func (NopLogger) ErrorContext(context.Context, string, ...any) {}

func orNop(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}
