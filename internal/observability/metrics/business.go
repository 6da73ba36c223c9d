package metrics

import (
	"time"
)

// RecordSourceScraped records the result of scraping one source.
func RecordSourceScraped(kind string, duration time.Duration, success, empty bool) {
	result := "success"
	switch {
	case !success:
		result = "failure"
	case empty:
		result = "empty"
	}
	SourcesScrapedTotal.WithLabelValues(kind, result).Inc()
	SourceScrapeDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRunDuration records the wall time of one full region run.
func RecordRunDuration(duration time.Duration) {
	RunDuration.Observe(duration.Seconds())
}

// RecordExtraction records the result of one SignalExtractor.Extract call
// and the node types it produced.
func RecordExtraction(success bool, duration time.Duration, nodeTypes []string) {
	status := "success"
	if !success {
		status = "failure"
	}
	ExtractionsTotal.WithLabelValues(status).Inc()
	ExtractionDuration.Observe(duration.Seconds())
	for _, t := range nodeTypes {
		SignalNodesExtractedTotal.WithLabelValues(t).Inc()
	}
}

// RecordEmbeddingBatch records one TextEmbedder.Embed call.
func RecordEmbeddingBatch(success bool, batchSize int) {
	status := "success"
	if !success {
		status = "failure"
	}
	EmbeddingsTotal.WithLabelValues(status).Inc()
	if success {
		EmbeddingBatchSize.Observe(float64(batchSize))
	}
}

// RecordDedupVerdict records one DedupLadder decision.
func RecordDedupVerdict(verdict, layer string, similarity float64) {
	DedupVerdictsTotal.WithLabelValues(verdict, layer).Inc()
	if similarity > 0 {
		DedupSimilarityScore.Observe(similarity)
	}
}

// RecordGraphWrite records the duration and outcome of a GraphStore operation.
func RecordGraphWrite(operation string, duration time.Duration, err error) {
	GraphWriteDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		GraphWriteErrors.WithLabelValues(operation).Inc()
	}
}

// UpdateSignalNodesTotal updates the live signal node gauge for one node type.
func UpdateSignalNodesTotal(nodeType string, count int) {
	SignalNodesTotal.WithLabelValues(nodeType).Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources known to the graph.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request with its metadata.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
