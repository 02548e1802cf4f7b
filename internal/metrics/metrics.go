package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_embedding_requests_total",
			Help: "Embedding generation requests by model and status",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolsearch_embedding_latency_seconds",
			Help:    "Embedding request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Vector store metrics
	VectorOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_vector_ops_total",
			Help: "Vector store operations by kind and status",
		},
		[]string{"operation", "status"},
	)

	VectorOpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolsearch_vector_op_latency_seconds",
			Help:    "Vector store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Search metrics
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_search_requests_total",
			Help: "Tool searches by status",
		},
		[]string{"status"},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "toolsearch_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// Execution metrics
	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolsearch_executions_total",
			Help: "Action executions by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	ExecutionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolsearch_execution_latency_seconds",
			Help:    "Action execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// Registry metrics
	IndexedActions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolsearch_indexed_actions",
			Help: "Actions currently held in the registry",
		},
	)

	IndexedProviders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolsearch_indexed_providers",
			Help: "Providers currently held in the registry",
		},
	)
)

// RecordEmbedding records one embedding call outcome.
func RecordEmbedding(model, status string, seconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if seconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(seconds)
	}
}

// RecordVectorOp records one vector store operation outcome.
func RecordVectorOp(operation, status string, seconds float64) {
	VectorOps.WithLabelValues(operation, status).Inc()
	if seconds > 0 {
		VectorOpLatency.WithLabelValues(operation).Observe(seconds)
	}
}

// RecordSearch records a completed search and its result count.
func RecordSearch(status string, results int) {
	SearchRequests.WithLabelValues(status).Inc()
	if status == "ok" {
		SearchResults.Observe(float64(results))
	}
}

// RecordExecution records one gateway execution outcome.
func RecordExecution(provider string, success bool, seconds float64) {
	status := "ok"
	if !success {
		status = "error"
	}
	Executions.WithLabelValues(provider, status).Inc()
	ExecutionLatency.WithLabelValues(provider).Observe(seconds)
}

// SetRegistrySize updates the registry gauges after an extraction pass.
func SetRegistrySize(actions, providers int) {
	IndexedActions.Set(float64(actions))
	IndexedProviders.Set(float64(providers))
}
