// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count)
//   - Scrape and run metrics (sources scraped, run duration)
//   - Extraction and embedding metrics (the two LLM-backed boundaries)
//   - Dedup ladder verdicts and GraphStore write metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "scout/internal/observability/metrics"
//
//	func scrapeSource(kind string) {
//	    start := time.Now()
//	    // ... scrape source ...
//
//	    metrics.RecordSourceScraped(kind, time.Since(start), true, false)
//	}
package metrics
