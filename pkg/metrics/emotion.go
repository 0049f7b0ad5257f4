package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// initEmotionMetrics initializes emotion and personality metrics.
func (m *Manager) initEmotionMetrics(cfg Config) {
	m.emotionUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_updates_total",
			Help:      "Total number of emotional state updates by primary label",
		},
		[]string{"label"},
	)

	m.emotionIntensity = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emotion_intensity",
			Help:      "Intensity of applied emotional states",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"label"},
	)

	m.traitValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "personality_trait_value",
			Help:      "Current value of each personality trait",
		},
		[]string{"trait"},
	)

	m.registry.MustRegister(m.emotionUpdates)
	m.registry.MustRegister(m.emotionIntensity)
	m.registry.MustRegister(m.traitValue)
}

// RecordEmotionUpdate records an applied emotional state.
func (m *Manager) RecordEmotionUpdate(label string, intensity float64) {
	if !m.enabled {
		return
	}
	m.emotionUpdates.WithLabelValues(label).Inc()
	m.emotionIntensity.WithLabelValues(label).Observe(intensity)
}

// SetTraitValue sets the current value of a trait.
func (m *Manager) SetTraitValue(name string, value float64) {
	if !m.enabled {
		return
	}
	m.traitValue.WithLabelValues(name).Set(value)
}
