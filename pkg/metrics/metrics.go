// Package metrics provides Prometheus metrics instrumentation for the Sallie
// companion service.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sallie"

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Memory metrics
	memoryStored        *prometheus.CounterVec
	memoryRetrievals    *prometheus.CounterVec
	memoryRetrievalSize *prometheus.HistogramVec
	memoryRetrievalTime *prometheus.HistogramVec
	memoryPartition     *prometheus.GaugeVec
	consolidations      *prometheus.CounterVec
	consolidationItems  *prometheus.CounterVec
	consolidationTime   *prometheus.HistogramVec

	// Emotion and personality metrics
	emotionUpdates   *prometheus.CounterVec
	emotionIntensity *prometheus.HistogramVec
	traitValue       *prometheus.GaugeVec

	// Storage metrics
	storageErrors *prometheus.CounterVec

	// Event bus metrics
	eventsPublished  *prometheus.CounterVec
	eventRetries     prometheus.Counter
	eventBusDegraded prometheus.Gauge

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge

	// gRPC metrics
	grpcRequests       *prometheus.CounterVec
	grpcDuration       *prometheus.HistogramVec
	grpcInFlight       *prometheus.GaugeVec
	grpcStreamMessages *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	// Histogram bucket configurations
	RetrievalDurationBuckets     []float64
	ConsolidationDurationBuckets []float64
	HTTPDurationBuckets          []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                      true,
		Port:                         9091,
		Path:                         "/metrics",
		RetrievalDurationBuckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		ConsolidationDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		HTTPDurationBuckets:          []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initMemoryMetrics(cfg)
	m.initEmotionMetrics(cfg)
	m.initStorageMetrics(cfg)
	m.initEventBusMetrics(cfg)
	m.initHTTPMetrics(cfg)
	m.initGRPCMetrics(cfg)

	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer starts the metrics HTTP server on the configured port.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
