// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Aggregation metrics
	SnapshotsBuilt     *prometheus.CounterVec
	BoardsBuilt        *prometheus.CounterVec
	BuildDuration      *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	SignaturesScanned  prometheus.Counter
	TransactionsParsed prometheus.Counter

	// Live refresh metrics
	LiveStates       prometheus.Gauge
	LiveRefreshes    *prometheus.CounterVec
	LiveTicksSkipped prometheus.Counter

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_token_atlas"
	}

	return &Metrics{
		SnapshotsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshots_built_total",
			Help:      "Total number of holder snapshots built by status",
		}, []string{"status"}),
		BoardsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "boards_built_total",
			Help:      "Total number of volume boards built by status",
		}, []string{"status"}),
		BuildDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "build_duration_seconds",
			Help:      "Aggregation pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"pipeline"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cache_lookups_total",
			Help:      "Total number of result cache lookups by outcome",
		}, []string{"pipeline", "outcome"}),
		SignaturesScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "signatures_scanned_total",
			Help:      "Total number of distinct signatures covered by scans",
		}),
		TransactionsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "transactions_parsed_total",
			Help:      "Total number of transactions successfully parsed",
		}),

		LiveStates: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "states",
			Help:      "Current number of live refresh state machines",
		}),
		LiveRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "refreshes_total",
			Help:      "Total number of live refreshes by trigger and status",
		}, []string{"trigger", "status"}),
		LiveTicksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "ticks_skipped_total",
			Help:      "Total number of ticks that detected no activity",
		}),

		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of the last successful live refresh",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
