package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scout's service level objectives, adapted from the teacher's HTTP-request
// SLO targets to the ingestion-cycle domain: there is no request path here,
// so the targets are about extraction yield and dedup fidelity instead of
// latency percentiles.
const (
	// ExtractionSuccessSLO is the target fraction of fetched URLs that
	// yield a successful SignalExtractor.Extract call (99%).
	ExtractionSuccessSLO = 0.99

	// DedupCorroborationSLO is the target fraction of repeat-title
	// candidates the ladder resolves without falling through to the
	// graph's layer-5 vector search (95%) — a high fallthrough rate
	// means the batch/title layers are no longer catching near-dupes.
	DedupCorroborationSLO = 0.95

	// CycleDurationSLOSeconds is the target wall time for one full
	// region cycle (10 minutes).
	CycleDurationSLOSeconds = 600.0
)

var (
	// SLOExtractionSuccessRate tracks the current extraction success
	// ratio (0-1) over the most recent cycle.
	SLOExtractionSuccessRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_slo_extraction_success_ratio",
			Help: "Current extraction success ratio (0-1) for the last cycle, target: 0.99",
		},
	)

	// SLODedupCorroborationRate tracks the fraction of dedup verdicts
	// resolved at layers 1-4 rather than falling through to layer 5.
	SLODedupCorroborationRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_slo_dedup_early_resolution_ratio",
			Help: "Fraction of dedup verdicts resolved before the graph vector search layer, target: 0.95",
		},
	)

	// SLOCycleDuration tracks the wall time of the most recent region
	// cycle in seconds.
	SLOCycleDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_slo_cycle_duration_seconds",
			Help: "Wall time of the most recent region cycle in seconds, target: 600",
		},
	)
)

// UpdateExtractionSuccessRate records the extraction success ratio observed
// over the cycle that just finished.
func UpdateExtractionSuccessRate(succeeded, attempted int) {
	if attempted == 0 {
		return
	}
	SLOExtractionSuccessRate.Set(float64(succeeded) / float64(attempted))
}

// UpdateDedupCorroborationRate records the fraction of dedup verdicts that
// resolved without reaching the graph vector search layer.
func UpdateDedupCorroborationRate(earlyResolved, total int) {
	if total == 0 {
		return
	}
	SLODedupCorroborationRate.Set(float64(earlyResolved) / float64(total))
}

// UpdateCycleDuration records the wall time of the cycle that just finished.
func UpdateCycleDuration(seconds float64) {
	SLOCycleDuration.Set(seconds)
}
