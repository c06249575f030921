// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline.
// The progress counters are advisory: they observe the run, they are not
// part of the correctness contract.
type Metrics struct {
	// Fetch metrics
	PointsFetched  *prometheus.CounterVec
	RequestRetries prometheus.Counter
	FetchDuration  prometheus.Histogram

	// Write-path metrics
	ObservationsInserted prometheus.Counter
	AssetsSkipped        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_market_lab"
	}

	return &Metrics{
		PointsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "points_fetched_total",
			Help:      "Observation candidates fetched per asset",
		}, []string{"asset"}),
		RequestRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "request_retries_total",
			Help:      "Provider request retries (transient errors)",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_duration_seconds",
			Help:      "End-to-end chart fetch duration per asset, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ObservationsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "observations_inserted_total",
			Help:      "Rows actually inserted (duplicates absorbed are excluded)",
		}),
		AssetsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "assets_skipped_total",
			Help:      "Assets abandoned after exhausted retries",
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
