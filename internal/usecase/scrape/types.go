// Package scrape implements ScrapePhase (SPEC_FULL.md §4.5): one fan-out
// over a cohort of sources, pure up to the point of emitting events — the
// actual graph writes and dedup ladder layers 2-5 belong to the aggregate
// applier that consumes its output.
package scrape

import (
	"time"

	"scout/internal/domain/entity"
	"scout/internal/usecase/extract"
)

// CollectedLink is an outbound link discovered during a page scrape or a
// social mention, queued for the link promoter (SPEC_FULL.md §4.7).
type CollectedLink struct {
	URL          string
	DiscoveredOn string // canonical_key of the source it was found on
}

// ExtractedBatch is the payload of one SignalsExtracted event: everything
// one source's extraction call produced, plus the source it came from.
type ExtractedBatch struct {
	SourceID    string
	SourceURL   string
	ContentHash string
	Result      *extract.ExtractionResult
}

// EventKind discriminates ScrapeOutput's event stream.
type EventKind string

const (
	EventSignalsExtracted   EventKind = "signals_extracted"
	EventFreshnessConfirmed EventKind = "freshness_confirmed"
	EventSourceDiscovered   EventKind = "source_discovered"
)

// Event is one entry in ScrapeOutput.Events, consumed by the aggregate
// applier (SPEC_FULL.md §4.5 step 10).
type Event struct {
	Kind EventKind

	// EventSignalsExtracted
	Batch *ExtractedBatch

	// EventFreshnessConfirmed
	RefreshedURL      string
	RefreshedNodeType entity.NodeType

	// EventSourceDiscovered
	DiscoveredSource *entity.Source
}

// RunContext is the per-run, task-owned mutable accumulator (SPEC_FULL.md
// §5 shared mutable state): owned by the run goroutine, never shared across
// concurrent tasks. Fan-outs collect into per-goroutine results and are
// merged into RunContext serially after each bounded stage completes.
type RunContext struct {
	RunID     string
	Region    string
	StartedAt time.Time

	URLToCanonicalKey map[string]string
	EmbeddingCache    []CachedCandidate

	CollectedLinks      []CollectedLink
	QueryAPIErrors      map[string]error
	SocialPostsSeen     int
	DiscoveryPostsFound int
}

// CachedCandidate is one in-run embedding cache entry for dedup ladder
// layer 4 (SPEC_FULL.md §4.4), populated as ScrapePhase extracts signals.
type CachedCandidate struct {
	ID        string
	SourceURL string
	Type      entity.NodeType
	Embedding []float32
}

// NewRunContext constructs an empty RunContext for one run over region.
func NewRunContext(runID, region string) *RunContext {
	return &RunContext{
		RunID:             runID,
		Region:            region,
		StartedAt:         time.Now(),
		URLToCanonicalKey: make(map[string]string),
		QueryAPIErrors:    make(map[string]error),
	}
}

// ScrapeOutput is ScrapePhase's return value for one RunWeb, RunSocial, or
// DiscoverFromTopics call.
type ScrapeOutput struct {
	Events         []Event
	CollectedLinks []CollectedLink
	QueryAPIErrors map[string]error

	// ImpliedQueries collects the extractor's suggested follow-up queries
	// from batches that produced at least one Tension or Need node
	// (SPEC_FULL.md §4.5), for SourceFinder to weigh on the next cycle.
	ImpliedQueries []string
}

func newScrapeOutput() *ScrapeOutput {
	return &ScrapeOutput{
		QueryAPIErrors: make(map[string]error),
	}
}
