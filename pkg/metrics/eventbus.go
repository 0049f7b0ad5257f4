package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initEventBusMetrics initializes event publishing metrics.
func (m *Manager) initEventBusMetrics(cfg Config) {
	m.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of published events by type and status",
		},
		[]string{"event_type", "status"},
	)

	m.eventRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_retries_total",
			Help:      "Total number of event publish retries",
		},
	)

	m.eventBusDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eventbus_degraded",
			Help:      "Whether event publishing is degraded (1) or healthy (0)",
		},
	)

	m.registry.MustRegister(m.eventsPublished)
	m.registry.MustRegister(m.eventRetries)
	m.registry.MustRegister(m.eventBusDegraded)
}

// RecordEventPublish records the outcome of publishing an event.
func (m *Manager) RecordEventPublish(eventType, status string) {
	if !m.enabled {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, status).Inc()
}

// RecordEventRetry records a publish retry.
func (m *Manager) RecordEventRetry() {
	if !m.enabled {
		return
	}
	m.eventRetries.Inc()
}

// SetEventBusDegraded sets the degraded-mode gauge.
func (m *Manager) SetEventBusDegraded(active bool) {
	if !m.enabled {
		return
	}
	if active {
		m.eventBusDegraded.Set(1)
		return
	}
	m.eventBusDegraded.Set(0)
}
