package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"scout/internal/domain/entity"
	"scout/internal/repository"
	"scout/internal/usecase/embed"
)

// coldStartQueryTemplate is the mechanical fallback's query shape
// (SPEC_FULL.md §4.6): one query per tension, filled with the tension's
// title and the region.
const coldStartQueryTemplate = "%s resources services %s"

// queryDedupThreshold is the layer-2 embedding-similarity cutoff for query
// dedup (SPEC_FULL.md §4.6): below this, a proposed query is considered
// distinct enough from an existing WebQuery source to keep.
const queryDedupThreshold = 0.90

// initialWeights is the discovery-method -> initial Source.Weight table
// (SPEC_FULL.md §4.6).
var initialWeights = map[string]float64{
	string(entity.DiscoveryCurated):         0.5,
	string(entity.DiscoveryHumanSubmission): 0.5,
	"gap_analysis:unmet_tension":            0.4,
	"gap_analysis:other":                    0.3,
	string(entity.DiscoveryLinkedFrom):      0.25,
	string(entity.DiscoverySignalExpansion): 0.2,
	string(entity.DiscoveryHashtag):         0.3,
	string(entity.DiscoveryTensionSeed):     0.3,
	string(entity.DiscoveryActorAccount):    0.2,
}

// InitialWeight looks up the starting Source.Weight for a newly discovered
// source, keyed by discovery method and (for gap_analysis) the gap type that
// produced it.
func InitialWeight(method entity.DiscoveryMethod, gap GapType) float64 {
	key := string(method)
	if method == entity.DiscoveryGapAnalysis {
		if gap == GapUnmetTension {
			key = "gap_analysis:unmet_tension"
		} else {
			key = "gap_analysis:other"
		}
	}
	if w, ok := initialWeights[key]; ok {
		return w
	}
	return 0.2
}

// Finder is SourceFinder (SPEC_FULL.md §4.6): it assembles the graph-derived
// sections of a DiscoveryBriefing, delegates query proposal to a Proposer
// (mechanical fallback on cold start, or when no LLM-backed Proposer is
// configured), and dedups + weights the resulting plan into ready-to-upsert
// Sources.
type Finder struct {
	Graph    repository.GraphStore
	Embedder embed.TextEmbedder // optional; nil disables embedding-layer dedup
	Proposer Proposer           // optional; nil forces the mechanical fallback
	Logger   *slog.Logger
}

// New constructs a Finder from its collaborators.
func New(graph repository.GraphStore, embedder embed.TextEmbedder, proposer Proposer, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{Graph: graph, Embedder: embedder, Proposer: proposer, Logger: logger}
}

// BuildSourcePerformance fills the briefing's past-discovery-performance
// section from GraphStore.GetSourceStats for a list of non-curated sources,
// sorted by the caller into top/bottom-5 (SPEC_FULL.md §4.6).
func (f *Finder) BuildSourcePerformance(ctx context.Context, canonicalKeys []string) ([]SourcePerformance, error) {
	out := make([]SourcePerformance, 0, len(canonicalKeys))
	for _, key := range canonicalKeys {
		stats, err := f.Graph.GetSourceStats(ctx, key)
		if err != nil {
			f.Logger.Warn("get_source_stats failed", slog.String("canonical_key", key), slog.Any("error", err))
			continue
		}
		out = append(out, SourcePerformance{
			CanonicalKey:         stats.CanonicalKey,
			GapContext:           stats.GapContext,
			SignalsProduced:      stats.SignalsProduced,
			SignalsCorroborated:  stats.SignalsCorroborated,
			ConsecutiveEmptyRuns: stats.ConsecutiveEmptyRuns,
		})
	}
	return out, nil
}

// Discover produces a DiscoveryPlan for briefing: the mechanical cold-start
// fallback when the briefing is too thin to brief an LLM usefully, or when no
// Proposer is configured; otherwise it delegates to Proposer and falls back
// to the mechanical path if the proposer errors (SPEC_FULL.md §4.6 "a failed
// or unconfigured proposer degrades to the mechanical fallback, never to no
// discovery at all").
func (f *Finder) Discover(ctx context.Context, briefing DiscoveryBriefing, region string) (DiscoveryPlan, error) {
	if briefing.ColdStart() || f.Proposer == nil {
		return coldStartPlan(briefing, region), nil
	}
	plan, err := f.Proposer.Propose(ctx, briefing)
	if err != nil {
		f.Logger.Warn("proposer failed, using mechanical fallback", slog.Any("error", err))
		return coldStartPlan(briefing, region), nil
	}
	return plan, nil
}

// coldStartPlan emits one query per tension (unmet first), per SPEC_FULL.md
// §4.6's worked cold-start example.
func coldStartPlan(briefing DiscoveryBriefing, region string) DiscoveryPlan {
	plan := DiscoveryPlan{}
	for _, t := range append(append([]TensionSummary{}, briefing.UnmetTensions...), briefing.MetTensions...) {
		plan.Queries = append(plan.Queries, ProposedQuery{
			Text:           fmt.Sprintf(coldStartQueryTemplate, t.Title, region),
			Reasoning:      "cold-start mechanical fallback: one query per known tension",
			GapType:        GapUnmetTension,
			RelatedTension: t.ID,
		})
	}
	return plan
}

// Resolve applies the two-layer dedup to plan's queries against
// briefing.ExistingQueries, then returns the Sources ready for UpsertSource
// for every query that survives (SPEC_FULL.md §4.6 "two-layer query dedup").
// Layer one is substring overlap (cheap, catches near-identical rephrasing);
// layer two is embedding cosine similarity >= queryDedupThreshold, skipped
// when no Embedder is configured.
func (f *Finder) Resolve(ctx context.Context, plan DiscoveryPlan, briefing DiscoveryBriefing) ([]*entity.Source, error) {
	survivors := make([]ProposedQuery, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		if substringDuplicate(q.Text, briefing.ExistingQueries) {
			continue
		}
		survivors = append(survivors, q)
	}

	if f.Embedder != nil && len(survivors) > 0 {
		texts := make([]string, len(survivors))
		for i, q := range survivors {
			texts[i] = q.Text
		}
		embeddings, err := f.Embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed candidate queries: %w", err)
		}
		filtered := make([]ProposedQuery, 0, len(survivors))
		for i, q := range survivors {
			if embeddingDuplicate(embeddings[i], briefing.ExistingQueries) {
				continue
			}
			filtered = append(filtered, q)
		}
		survivors = filtered
	}

	sources := make([]*entity.Source, 0, len(survivors))
	for _, q := range survivors {
		sources = append(sources, &entity.Source{
			CanonicalKey:    "query:" + q.Text,
			CanonicalValue:  q.Text,
			Strategy:        entity.StrategyWebQuery,
			DiscoveryMethod: entity.DiscoveryGapAnalysis,
			Active:          true,
			Weight:          InitialWeight(entity.DiscoveryGapAnalysis, q.GapType),
		})
	}
	return sources, nil
}

func substringDuplicate(text string, existing []ExistingQuery) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	for _, q := range existing {
		hay := strings.ToLower(strings.TrimSpace(q.Text))
		if hay == needle || strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return true
		}
	}
	return false
}

func embeddingDuplicate(candidate []float32, existing []ExistingQuery) bool {
	for _, q := range existing {
		if len(q.Embedding) == 0 {
			continue
		}
		if cosineSimilarity(candidate, q.Embedding) >= queryDedupThreshold {
			return true
		}
	}
	return false
}

// cosineSimilarity mirrors dedup.CosineSimilarity's zero-vector and
// length-mismatch guards (SPEC_FULL.md §9); duplicated rather than imported
// since query dedup is a distinct concern from signal dedup.
func cosineSimilarity(a, b []float32) float64 {
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
