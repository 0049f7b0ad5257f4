package interceptors

import (
	"google.golang.org/grpc"
)

// ChainBuilder assembles interceptors in call order.
type ChainBuilder struct {
	unary  []grpc.UnaryServerInterceptor
	stream []grpc.StreamServerInterceptor
}

// NewChainBuilder creates an empty chain.
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{}
}

// WithRecovery adds panic recovery. It should be first.
func (b *ChainBuilder) WithRecovery(log Logger) *ChainBuilder {
	b.unary = append(b.unary, RecoveryUnaryInterceptor(log))
	b.stream = append(b.stream, RecoveryStreamInterceptor(log))
	return b
}

// WithRequestID adds request id propagation.
func (b *ChainBuilder) WithRequestID() *ChainBuilder {
	b.unary = append(b.unary, RequestIDUnaryInterceptor())
	b.stream = append(b.stream, RequestIDStreamInterceptor())
	return b
}

// WithTracing adds server spans.
func (b *ChainBuilder) WithTracing() *ChainBuilder {
	b.unary = append(b.unary, TracingUnaryInterceptor())
	b.stream = append(b.stream, TracingStreamInterceptor())
	return b
}

// WithLogging adds call logging.
func (b *ChainBuilder) WithLogging(log Logger) *ChainBuilder {
	b.unary = append(b.unary, LoggingUnaryInterceptor(log))
	b.stream = append(b.stream, LoggingStreamInterceptor(log))
	return b
}

// WithMetrics adds call metrics. A nil recorder is skipped.
func (b *ChainBuilder) WithMetrics(rec Recorder) *ChainBuilder {
	if rec == nil {
		return b
	}
	b.unary = append(b.unary, MetricsUnaryInterceptor(rec))
	b.stream = append(b.stream, MetricsStreamInterceptor(rec))
	return b
}

// Len returns the number of unary interceptors in the chain.
func (b *ChainBuilder) Len() int {
	return len(b.unary)
}

// Build returns the chain as server options.
func (b *ChainBuilder) Build() []grpc.ServerOption {
	var opts []grpc.ServerOption
	if len(b.unary) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(b.unary...))
	}
	if len(b.stream) > 0 {
		opts = append(opts, grpc.ChainStreamInterceptor(b.stream...))
	}
	return opts
}

// DefaultChain is the server chain: recovery, request id, tracing, logging,
// metrics. The request id is in place before the span starts, and logs carry
// the span's trace id.
func DefaultChain(log Logger, rec Recorder, tracing bool) *ChainBuilder {
	b := NewChainBuilder().WithRecovery(log).WithRequestID()
	if tracing {
		b.WithTracing()
	}
	return b.WithLogging(log).WithMetrics(rec)
}
