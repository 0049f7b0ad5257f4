package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initGRPCMetrics initializes gRPC server metrics. Durations share the HTTP
// buckets.
func (m *Manager) initGRPCMetrics(cfg Config) {
	m.grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls",
		},
		[]string{"method", "code"},
	)

	m.grpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   cfg.HTTPDurationBuckets,
		},
		[]string{"method"},
	)

	m.grpcInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_requests_in_flight",
			Help:      "Current number of gRPC calls being served",
		},
		[]string{"method"},
	)

	m.grpcStreamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_stream_messages_total",
			Help:      "Total number of gRPC stream messages by direction",
		},
		[]string{"method", "direction"},
	)

	m.registry.MustRegister(m.grpcRequests)
	m.registry.MustRegister(m.grpcDuration)
	m.registry.MustRegister(m.grpcInFlight)
	m.registry.MustRegister(m.grpcStreamMessages)
}

// RecordGRPCRequest records a finished gRPC call.
func (m *Manager) RecordGRPCRequest(ctx context.Context, method, code string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.grpcRequests.WithLabelValues(method, code).Inc()

	observer := m.grpcDuration.WithLabelValues(method)
	if labels, ok := traceExemplarLabels(ctx); ok {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(duration.Seconds(), labels)
			return
		}
	}
	observer.Observe(duration.Seconds())
}

// RecordGRPCStreamMessages adds count messages received or sent on a stream.
func (m *Manager) RecordGRPCStreamMessages(method, direction string, count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.grpcStreamMessages.WithLabelValues(method, direction).Add(float64(count))
}

// IncGRPCInFlight marks a gRPC call as started.
func (m *Manager) IncGRPCInFlight(method string) {
	if !m.enabled {
		return
	}
	m.grpcInFlight.WithLabelValues(method).Inc()
}

// DecGRPCInFlight marks a gRPC call as finished.
func (m *Manager) DecGRPCInFlight(method string) {
	if !m.enabled {
		return
	}
	m.grpcInFlight.WithLabelValues(method).Dec()
}
