// Package dedup implements the DedupLadder pure decision function
// (SPEC_FULL.md §4.4): given a candidate signal node, decide whether it
// should be created, treated as a refresh of an existing signal, or treated
// as corroboration of an existing signal from a different source.
//
// The ladder itself touches no I/O — callers supply the layer-3 global
// title/type lookup and layer-5 vector search results (pre-fetched by the
// caller from GraphStore); this package only encodes the decision rules and
// the in-memory embedding cache for layer 4.
package dedup

import (
	"math"

	"scout/internal/domain/entity"
	"scout/internal/repository"
)

// EntryThreshold is the minimum cosine similarity for a layer-4/layer-5 hit
// to be considered at all.
const EntryThreshold = 0.85

// CrossSourceThreshold is the minimum similarity for a cross-URL hit to
// count as corroboration rather than a near-miss creating a new signal.
const CrossSourceThreshold = 0.92

// Verdict is the ladder's terminal decision for one candidate.
type Verdict string

const (
	VerdictCreate      Verdict = "create"
	VerdictRefresh     Verdict = "refresh"
	VerdictCorroborate Verdict = "corroborate"
)

// Layer names the deciding rung of the ladder, for observability.
type Layer string

const (
	LayerURLTitle     Layer = "url_title"
	LayerGlobalTitle  Layer = "global_title_type"
	LayerEmbedCache   Layer = "embed_cache"
	LayerVectorIndex  Layer = "vector_index"
	LayerNone         Layer = "none"
)

// Decision is the ladder's full output for one candidate.
type Decision struct {
	Verdict    Verdict
	Layer      Layer
	ExistingID string
	Similarity float64
	// Dropped is true only for the layer-1/layer-2 within-batch/within-URL
	// collisions, which are discarded outright rather than producing a
	// Create/Refresh/Corroborate terminal state.
	Dropped bool
}

// CachedEmbedding is one entry in the in-memory embedding cache populated
// monotonically across a single extraction batch (SPEC_FULL.md §5 Ordering
// guarantees): an earlier candidate in the batch can deduplicate a later one.
type CachedEmbedding struct {
	ID        string
	SourceURL string
	Type      entity.NodeType
	Embedding []float32
}

// Candidate is one node proposed for the ladder, already past layer-1
// (batch-level) collapsing.
type Candidate struct {
	NormalizedTitle string
	Type            entity.NodeType
	SourceURL       string
	Embedding       []float32
}

// Decide runs layers 2 through 6 of the ladder for one candidate.
//
//   - existingTitlesForURL: layer 2, ExistingTitlesForURL(sourceURL) result.
//   - globalMatch: layer 3, the FindByTitlesAndTypes hit for this candidate's
//     (title, type) pair, if any.
//   - cache: layer 4, the run's in-memory embedding cache so far.
//   - vectorMatch: layer 5, the caller's pre-fetched FindDuplicate result.
func Decide(
	c Candidate,
	existingTitlesForURL map[string]bool,
	globalMatch *repository.DuplicateMatch,
	cache []CachedEmbedding,
	vectorMatch *repository.DuplicateMatch,
) Decision {
	// Layer 2: URL-scoped title dedup — drop outright.
	if existingTitlesForURL != nil && existingTitlesForURL[c.NormalizedTitle] {
		return Decision{Dropped: true, Layer: LayerURLTitle}
	}

	// Layer 3: global exact title+type match is unconditional.
	if globalMatch != nil {
		if globalMatch.SourceURL == c.SourceURL {
			return Decision{Verdict: VerdictRefresh, Layer: LayerGlobalTitle, ExistingID: globalMatch.ID, Similarity: 1.0}
		}
		return Decision{Verdict: VerdictCorroborate, Layer: LayerGlobalTitle, ExistingID: globalMatch.ID, Similarity: 1.0}
	}

	// Layer 4: in-memory embedding cache.
	if best, ok := bestCacheMatch(c, cache); ok {
		if d, matched := verdictFromMatch(c.SourceURL, best.SourceURL, best.ID, best.Similarity); matched {
			return Decision{Verdict: d.Verdict, Layer: LayerEmbedCache, ExistingID: d.ExistingID, Similarity: d.Similarity}
		}
	}

	// Layer 5: graph vector index, pre-fetched by the caller.
	if vectorMatch != nil {
		if d, matched := verdictFromMatch(c.SourceURL, vectorMatch.SourceURL, vectorMatch.ID, vectorMatch.Similarity); matched {
			return Decision{Verdict: d.Verdict, Layer: LayerVectorIndex, ExistingID: d.ExistingID, Similarity: d.Similarity}
		}
	}

	// Layer 6: no match.
	return Decision{Verdict: VerdictCreate, Layer: LayerNone}
}

// verdictFromMatch applies the same-url/cross-url/near-miss rule shared by
// layers 4 and 5. matched is false when the hit falls in the near-miss band
// (cross-url, entry-threshold <= sim < cross-source-threshold) — the caller
// falls through to the next layer rather than fabricating corroboration.
func verdictFromMatch(candidateURL, matchURL, matchID string, sim float64) (Decision, bool) {
	if matchURL == candidateURL {
		return Decision{Verdict: VerdictRefresh, ExistingID: matchID, Similarity: sim}, true
	}
	if sim >= CrossSourceThreshold {
		return Decision{Verdict: VerdictCorroborate, ExistingID: matchID, Similarity: sim}, true
	}
	return Decision{}, false
}

// bestCacheMatch scans the run's embedding cache for the highest-similarity
// same-type hit at or above EntryThreshold.
func bestCacheMatch(c Candidate, cache []CachedEmbedding) (CachedEmbedding, bool) {
	var best CachedEmbedding
	bestSim := -1.0
	found := false
	for _, entry := range cache {
		if entry.Type != c.Type {
			continue
		}
		sim := CosineSimilarity(c.Embedding, entry.Embedding)
		if sim < EntryThreshold {
			continue
		}
		if sim > bestSim {
			best, bestSim, found = entry, sim, true
		}
	}
	return best, found
}

// CosineSimilarity computes cosine similarity over two vectors, guarding
// against zero vectors and mismatched lengths (returns 0 in both cases —
// float equality is never used to detect the zero vector, only a direct
// comparison against the literal 0 norm).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
