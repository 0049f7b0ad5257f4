package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initStorageMetrics initializes persistence metrics.
func (m *Manager) initStorageMetrics(cfg Config) {
	m.storageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total number of persistence failures by component and operation",
		},
		[]string{"component", "operation"},
	)

	m.registry.MustRegister(m.storageErrors)
}

// RecordStorageError records a failed persistence operation.
func (m *Manager) RecordStorageError(component, operation string) {
	if !m.enabled {
		return
	}
	m.storageErrors.WithLabelValues(component, operation).Inc()
}
