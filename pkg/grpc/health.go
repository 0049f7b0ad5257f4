package grpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ReadinessFunc reports whether the companion can serve requests.
type ReadinessFunc func() bool

// HealthServer drives the standard gRPC health service from a readiness check.
type HealthServer struct {
	server    *health.Server
	readiness ReadinessFunc

	mu      sync.Mutex
	serving bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHealthServer creates a health server. A nil readiness always reports serving.
func NewHealthServer(readiness ReadinessFunc) *HealthServer {
	if readiness == nil {
		readiness = func() bool { return true }
	}
	h := &HealthServer{
		server:    health.NewServer(),
		readiness: readiness,
	}
	h.server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return h
}

// Update re-evaluates readiness and publishes the result. It returns the new
// serving state.
func (h *HealthServer) Update() bool {
	serving := h.readiness()

	h.mu.Lock()
	defer h.mu.Unlock()
	if serving == h.serving {
		return serving
	}
	h.serving = serving
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	return serving
}

// Run re-evaluates readiness every interval until Stop is called.
func (h *HealthServer) Run(interval time.Duration) {
	h.Update()
	if interval <= 0 {
		return
	}

	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Update()
			}
		}
	}()
}

// Stop ends the readiness loop and marks every service NOT_SERVING so
// watchers see the shutdown before connections close.
func (h *HealthServer) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.serving = false
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	h.server.Shutdown()
}

// GetServer returns the underlying health server for registration.
func (h *HealthServer) GetServer() *health.Server {
	return h.server
}
