// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Fetch metrics
	PagesFetched  *prometheus.CounterVec
	FetchRetries  prometheus.Counter
	FetchFailures *prometheus.CounterVec
	FetchLatency  prometheus.Histogram

	// Pipeline metrics
	RecordsAccepted   *prometheus.CounterVec
	DuplicatesDropped *prometheus.CounterVec
	ChainsIndexed     prometheus.Counter
	ChainsTruncated   prometheus.Counter

	// Export metrics
	ExportsWritten prometheus.Counter
	ExportErrors   prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry. Call once per process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "referral_indexer"
	}

	return &Metrics{
		PagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Total number of page requests that returned a result",
		}, []string{"chain"}),
		FetchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of page fetch retry attempts",
		}),
		FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Total number of rounds abandoned after exhausting retries",
		}, []string{"chain"}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "latency_seconds",
			Help:      "Page fetch round-trip latency",
			Buckets:   prometheus.DefBuckets,
		}),
		RecordsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "records_accepted_total",
			Help:      "Total number of fee records folded into aggregates",
		}, []string{"chain"}),
		DuplicatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of records discarded by the dedup window",
		}, []string{"chain"}),
		ChainsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "chains_indexed_total",
			Help:      "Total number of chain runs that reached the terminal state",
		}),
		ChainsTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "chains_truncated_total",
			Help:      "Total number of chain runs ended by retry exhaustion",
		}),
		ExportsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "writes_total",
			Help:      "Total number of aggregate exports written",
		}),
		ExportErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "errors_total",
			Help:      "Total number of failed aggregate exports",
		}),
	}
}

// Handler returns an HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
