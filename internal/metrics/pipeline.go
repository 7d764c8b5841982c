package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion and search metrics.
var (
	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome",
		},
		[]string{"container", "status"},
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_items_total",
			Help:      "Items written by ingestion runs",
		},
		[]string{"container"},
	)

	IngestShortfallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_shortfalls_total",
			Help:      "Items left without an embedding because the provider answered short",
		},
		[]string{"container", "field"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"container"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Weighted vector searches by outcome",
		},
		[]string{"container", "status"},
	)

	SearchRowsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rows_dropped_total",
			Help:      "Result rows skipped because they could not be projected",
		},
		[]string{"container"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Weighted vector search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"container"},
	)
)

var pipelineOnce sync.Once

// RegisterPipelineMetrics registers ingestion and search collectors. Safe to call more than once.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			IngestRunsTotal,
			IngestItemsTotal,
			IngestShortfallsTotal,
			IngestDuration,
			SearchRequestsTotal,
			SearchRowsDroppedTotal,
			SearchDuration,
		)
	})
}
