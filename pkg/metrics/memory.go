package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initMemoryMetrics initializes memory store metrics.
func (m *Manager) initMemoryMetrics(cfg Config) {
	m.memoryStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_stored_total",
			Help:      "Total number of memory items stored by kind",
		},
		[]string{"kind"},
	)

	m.memoryRetrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_retrievals_total",
			Help:      "Total number of relevance retrievals",
		},
		[]string{},
	)

	m.memoryRetrievalSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_retrieval_results",
			Help:      "Number of items returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{},
	)

	m.memoryRetrievalTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_retrieval_duration_seconds",
			Help:      "Relevance retrieval duration in seconds",
			Buckets:   cfg.RetrievalDurationBuckets,
		},
		[]string{},
	)

	m.memoryPartition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_partition_items",
			Help:      "Current number of items per memory partition",
		},
		[]string{"partition"},
	)

	m.consolidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_consolidations_total",
			Help:      "Total number of consolidation passes",
		},
		[]string{},
	)

	m.consolidationItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_consolidated_items_total",
			Help:      "Items affected by consolidation by action",
		},
		[]string{"action"},
	)

	m.consolidationTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_consolidation_duration_seconds",
			Help:      "Consolidation pass duration in seconds",
			Buckets:   cfg.ConsolidationDurationBuckets,
		},
		[]string{},
	)

	m.registry.MustRegister(m.memoryStored)
	m.registry.MustRegister(m.memoryRetrievals)
	m.registry.MustRegister(m.memoryRetrievalSize)
	m.registry.MustRegister(m.memoryRetrievalTime)
	m.registry.MustRegister(m.memoryPartition)
	m.registry.MustRegister(m.consolidations)
	m.registry.MustRegister(m.consolidationItems)
	m.registry.MustRegister(m.consolidationTime)
}

// RecordMemoryStored records a stored memory item.
func (m *Manager) RecordMemoryStored(kind string) {
	if !m.enabled {
		return
	}
	m.memoryStored.WithLabelValues(kind).Inc()
}

// RecordMemoryRetrieval records a retrieval and its result count.
func (m *Manager) RecordMemoryRetrieval(results int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.memoryRetrievals.WithLabelValues().Inc()
	m.memoryRetrievalSize.WithLabelValues().Observe(float64(results))
	m.memoryRetrievalTime.WithLabelValues().Observe(duration.Seconds())
}

// RecordConsolidation records a consolidation pass.
func (m *Manager) RecordConsolidation(promoted, evicted, decayed int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.consolidations.WithLabelValues().Inc()
	m.consolidationItems.WithLabelValues("promoted").Add(float64(promoted))
	m.consolidationItems.WithLabelValues("evicted").Add(float64(evicted))
	m.consolidationItems.WithLabelValues("decayed").Add(float64(decayed))
	m.consolidationTime.WithLabelValues().Observe(duration.Seconds())
}

// SetMemoryPartitionSize sets the item count of a partition.
func (m *Manager) SetMemoryPartitionSize(partition string, size int) {
	if !m.enabled {
		return
	}
	m.memoryPartition.WithLabelValues(partition).Set(float64(size))
}
