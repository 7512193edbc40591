package migration

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	migrations *prometheus.CounterVec
	duration   prometheus.Histogram
	version    prometheus.Gauge
}

func newMetrics() *metrics {
	const namespace = "scorestore"

	return &metrics{
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Number of schema versions applied, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Time taken to apply a single schema version.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_version",
			Help:      "Schema version of the store as last observed by the migrator.",
		}),
	}
}

// PrometheusCollectors returns the migration metrics for registration.
func (m *Migrator) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.metrics.migrations,
		m.metrics.duration,
		m.metrics.version,
	}
}
