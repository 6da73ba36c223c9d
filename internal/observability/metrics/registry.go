// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Scrape metrics track one run of ScrapePhase across a region (SPEC_FULL.md §5).
var (
	// SourcesScrapedTotal counts sources scraped by result.
	SourcesScrapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_sources_scraped_total",
			Help: "Total number of sources scraped, by result",
		},
		[]string{"kind", "result"}, // kind: web, social; result: success, empty, failure
	)

	// SourceScrapeDuration measures time to scrape one source.
	SourceScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_source_scrape_duration_seconds",
			Help:    "Time taken to scrape one source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"kind"},
	)

	// RunDuration measures the wall time of one full region run.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_run_duration_seconds",
			Help:    "Time taken for one ScrapePhase run over a region",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// Extraction and embedding metrics track the two LLM-backed boundaries
// (SPEC_FULL.md §4.3, §2 TextEmbedder).
var (
	// ExtractionsTotal counts extraction attempts by result.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_extractions_total",
			Help: "Total number of signal extraction attempts",
		},
		[]string{"result"}, // success, failure
	)

	// ExtractionDuration measures time to extract signals from one page.
	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_extraction_duration_seconds",
			Help:    "Time taken to extract signals from one fetched page",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// SignalNodesExtractedTotal counts signal nodes extracted, by type.
	SignalNodesExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_signal_nodes_extracted_total",
			Help: "Total number of signal nodes produced by extraction, by node type",
		},
		[]string{"type"}, // Gathering, Aid, Need, Notice, Tension
	)

	// EmbeddingsTotal counts embedding batch calls by result.
	EmbeddingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_embeddings_total",
			Help: "Total number of embedding batch calls",
		},
		[]string{"result"},
	)

	// EmbeddingBatchSize measures texts-per-call.
	EmbeddingBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_embedding_batch_size",
			Help:    "Number of texts in one embedding batch call",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// Dedup metrics track the DedupLadder's verdicts (SPEC_FULL.md §4.4).
var (
	// DedupVerdictsTotal counts dedup ladder decisions by verdict and layer.
	DedupVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_dedup_verdicts_total",
			Help: "Total number of dedup ladder verdicts, by verdict and deciding layer",
		},
		[]string{"verdict", "layer"}, // verdict: create, refresh, corroborate
	)

	// DedupSimilarityScore observes the cosine similarity at the deciding layer.
	DedupSimilarityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_dedup_similarity_score",
			Help:    "Cosine similarity score observed at the dedup ladder's deciding layer",
			Buckets: []float64{0.5, 0.7, 0.8, 0.85, 0.9, 0.92, 0.95, 0.98, 1.0},
		},
	)
)

// Graph store metrics track writes to the backing graph database (SPEC_FULL.md §4.1).
var (
	// GraphWriteDuration measures the duration of one GraphStore write operation.
	GraphWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_graph_write_duration_seconds",
			Help:    "Duration of a GraphStore write operation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	// GraphWriteErrors counts failed GraphStore operations.
	GraphWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_graph_write_errors_total",
			Help: "Total number of failed GraphStore operations",
		},
		[]string{"operation"},
	)

	// SignalNodesTotal tracks the current count of live signal nodes in the graph.
	SignalNodesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scout_signal_nodes_total",
			Help: "Current count of live signal nodes in the graph, by type",
		},
		[]string{"type"},
	)

	// SourcesTotal tracks the current count of sources known to the graph.
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_sources_total",
			Help: "Current count of sources known to the graph",
		},
	)
)
