package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global run metrics, registered via promauto so the CLI and server share one
// registry without initialization order concerns.

var (
	// FeaturesRead counts features streamed out of a store, labeled by backend.
	FeaturesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweld_features_read_total",
			Help: "Total number of features read from dataset stores",
		},
		[]string{"backend"},
	)

	// NodesResolved counts nodes that came out of a resolution pass, labeled
	// by how their identifier was settled.
	NodesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweld_nodes_resolved_total",
			Help: "Total number of topology nodes resolved",
		},
		[]string{"outcome"}, // kept, assigned
	)

	// ChunksWritten counts attribute write chunks committed through edit
	// sessions.
	ChunksWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeweld_chunks_written_total",
			Help: "Total number of attribute write chunks committed",
		},
	)

	// WriteConflicts counts rejected attribute writes.
	WriteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeweld_write_conflicts_total",
			Help: "Total number of attribute writes rejected by a store",
		},
	)

	// CacheResults counts result-cache lookups by outcome.
	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweld_cache_results_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss
	)

	// RunDuration measures full pipeline runs, labeled by stage so slow
	// stores are distinguishable from slow resolution.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nodeweld_run_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
			// Buckets from in-memory runs to large remote datasets.
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"stage"}, // read, resolve, write
	)

	// HTTPRequestsTotal counts API requests, labeled by method, path, status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeweld_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)
)
