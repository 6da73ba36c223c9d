// Package extract declares the SignalExtractor boundary (SPEC_FULL.md §4.3):
// content + url → typed signal nodes plus the tag/actor/query annotations
// ScrapePhase needs to drive the dedup ladder and link promotion. The LLM
// prompt and model are external-collaborator concerns per SPEC_FULL.md §1;
// this package only fixes the contract.
package extract

import (
	"context"

	"scout/internal/domain/entity"
)

// ResourceRoleTag pairs a node with one proposed Resource link, keyed by the
// extractor's provisional node ID (not yet a stored graph ID).
type ResourceRoleTag struct {
	Slug       string
	Role       entity.ResourceRole
	Confidence float64
	Context    string
}

// ExtractionResult is the full output of one extraction call. Keys in the
// map fields are the provisional node IDs assigned within Nodes (index-based,
// e.g. "n0", "n1", ...), not stored graph IDs.
type ExtractionResult struct {
	Nodes         []*entity.SignalNode
	ResourceTags  map[string][]ResourceRoleTag
	SignalTags    map[string][]string
	AuthorActors  map[string]string
	ImpliedQueries []string
}

// SignalExtractor turns retrieved content into typed signal candidates.
// Extraction is deterministic given identical inputs in the sense that the
// *contract* is reproducible; implementations backed by an LLM are not
// required to be bit-for-bit deterministic (SPEC_FULL.md §4.3).
type SignalExtractor interface {
	Extract(ctx context.Context, content, sourceURL string) (*ExtractionResult, error)
}
