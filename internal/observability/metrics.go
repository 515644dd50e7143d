package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for ShuttleLens.
type Metrics struct {
	// --- Query API ---
	QueryRequests *prometheus.CounterVec   // by operation
	QueryErrors   *prometheus.CounterVec   // by operation, reason
	QueryDuration *prometheus.HistogramVec // by operation
	BatchSize     prometheus.Histogram

	// --- Ingestion ---
	IngestApplied  *prometheus.CounterVec // by event type
	IngestRejected *prometheus.CounterVec // by reason
	IngestLag      prometheus.Histogram

	// --- Registry ---
	MarketsRegistered prometheus.Gauge
}

// NewMetrics registers all metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttlelens_query_requests_total",
			Help: "Position queries served, by operation.",
		}, []string{"operation"}),
		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttlelens_query_errors_total",
			Help: "Position queries failed, by operation and reason.",
		}, []string{"operation", "reason"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shuttlelens_query_duration_seconds",
			Help:    "End-to-end position query latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuttlelens_batch_queries",
			Help:    "Number of position queries per batch request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		IngestApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttlelens_ingest_events_applied_total",
			Help: "Vault-sync events applied to the state store, by type.",
		}, []string{"type"}),
		IngestRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttlelens_ingest_events_rejected_total",
			Help: "Vault-sync events dropped, by reason (parse, apply).",
		}, []string{"reason"}),
		IngestLag: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuttlelens_ingest_lag_seconds",
			Help:    "Delay between event publish and store apply.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		MarketsRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shuttlelens_markets_registered",
			Help: "Markets currently known to the registry.",
		}),
	}
}
