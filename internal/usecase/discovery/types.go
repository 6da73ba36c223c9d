// Package discovery implements SourceFinder (SPEC_FULL.md §4.6): the
// cold-start mechanical fallback, the initial-weight table, and the
// two-layer query dedup are specified in full and implemented here. The
// LLM-driven proposal step itself is an external collaborator per
// SPEC_FULL.md §1 ("the discovery engine that proposes new sources — we
// specify only the interface it consumes"); this package fixes that
// interface (Proposer) rather than implementing a prompt.
package discovery

import (
	"context"

	"scout/internal/domain/entity"
)

// GapType names the strategy a proposed query pursues, used for per-strategy
// success-rate aggregation in the briefing.
type GapType string

const (
	GapUnmetTension  GapType = "unmet_tension"
	GapNovelAngle    GapType = "novel_angle"
	GapSignalRef     GapType = "signal_reference"
	GapSocialFollow  GapType = "social_graph_follow"
)

// TensionSummary is one entry in the briefing's tension list.
type TensionSummary struct {
	ID               string
	Title            string
	CauseHeat        float64
	Corroboration    int
	SourceDiversity  int
	HasResponse      bool
	EngagementScore  float64 // corroboration + source_diversity + cause_heat*10, per §4.6
}

// EngagementScore computes the ordering score used to rank tensions: unmet
// first, then by corroboration + source_diversity + cause_heat*10 (SPEC_FULL.md
// §4.6; the *10 scaling is an Open Question decision carried verbatim from the
// original implementation, see DESIGN.md).
func EngagementScore(corroboration, sourceDiversity int, causeHeat float64) float64 {
	return float64(corroboration) + float64(sourceDiversity) + causeHeat*10
}

// SituationSummary is a placeholder entry for the situation landscape
// section of the briefing. Situation rollups are composed outside this
// core (SPEC_FULL.md §1 Non-goals); SourceFinder only reads a temperature
// ranking supplied by that external composition step.
type SituationSummary struct {
	ID          string
	Title       string
	Temperature float64
}

// SignalTypeCounts carries per-type counts plus the imbalance note SourceFinder
// surfaces to the LLM proposer (e.g. "Aid signals significantly underrepresented
// relative to tensions").
type SignalTypeCounts struct {
	Counts         map[entity.NodeType]int
	ImbalanceNotes []string
}

// Imbalanced computes ImbalanceNotes from Counts per SPEC_FULL.md §4.6's
// worked example: aids significantly underrepresented relative to tensions
// when aids < tensions/3.
func (c *SignalTypeCounts) Imbalanced() {
	c.ImbalanceNotes = nil
	tensions := c.Counts[entity.NodeTypeTension]
	aids := c.Counts[entity.NodeTypeAid]
	if tensions > 0 && float64(aids) < float64(tensions)/3 {
		c.ImbalanceNotes = append(c.ImbalanceNotes, "Aid signals significantly underrepresented relative to tensions")
	}
}

// SourcePerformance is one entry in the briefing's past-discovery-performance
// section: a source discovered by a non-curated method, with its outcome.
type SourcePerformance struct {
	CanonicalKey        string
	GapContext          string
	SignalsProduced     int
	SignalsCorroborated int
	ConsecutiveEmptyRuns int
}

// GapTypeStat aggregates success over attempts for one strategy.
type GapTypeStat struct {
	GapType  GapType
	Attempts int
	Successes int
}

// SuccessRate is zero-guarded; a zero-attempt stat has no rate to report.
func (s GapTypeStat) SuccessRate() (float64, bool) {
	if s.Attempts == 0 {
		return 0, false
	}
	return float64(s.Successes) / float64(s.Attempts), true
}

// LowSuccessWarning reports whether this strategy should be flagged to the
// proposer: 0% success over at least 5 attempts (SPEC_FULL.md §4.6).
func (s GapTypeStat) LowSuccessWarning() bool {
	return s.Attempts >= 5 && s.Successes == 0
}

// ExtractionYield is the per-source-label (domain) yield section.
type ExtractionYield struct {
	Label               string
	SurvivalRate        float64 // fraction of extracted candidates that were not dropped by the ladder
	ContradictionRate   float64
}

// LowSurvival and HighContradiction are the two warning thresholds named in
// §4.6 ("low-survival and high-contradiction warnings").
const (
	LowSurvivalThreshold      = 0.2
	HighContradictionThreshold = 0.3
)

func (y ExtractionYield) LowSurvival() bool {
	return y.SurvivalRate < LowSurvivalThreshold
}

func (y ExtractionYield) HighContradiction() bool {
	return y.ContradictionRate > HighContradictionThreshold
}

// ResponseShape is the per-hot-tension response counts section.
type ResponseShape struct {
	TensionID    string
	AidCount     int
	GatheringCount int
	NeedCount    int
	SampleTitles []string
}

// ExistingQuery is a WebQuery source already in the graph, carried for dedup.
type ExistingQuery struct {
	CanonicalKey string
	Text         string
	Embedding    []float32 // stored query embedding, if an embedder is configured
}

// DiscoveryBriefing is the full input to the (external) LLM proposer:
// graph-derived sections plus the externally-composed situation landscape
// (SPEC_FULL.md §4.6). The caller assembles it; Finder.BuildSourcePerformance
// supplies the past-performance entries.
type DiscoveryBriefing struct {
	UnmetTensions   []TensionSummary
	MetTensions     []TensionSummary
	Situations      []SituationSummary
	TypeCounts      SignalTypeCounts
	TopPerformers   []SourcePerformance
	BottomPerformers []SourcePerformance
	GapTypeStats    []GapTypeStat
	ExtractionYields []ExtractionYield
	ResponseShapes  []ResponseShape
	ExistingQueries []ExistingQuery
}

// ColdStart reports whether the briefing is thin enough to bypass the LLM
// proposer entirely (SPEC_FULL.md §4.6: |tensions| < 3 ∧ |situations| = 0).
func (b DiscoveryBriefing) ColdStart() bool {
	return len(b.UnmetTensions)+len(b.MetTensions) < 3 && len(b.Situations) == 0
}

// ProposedQuery is one query proposed by a Proposer (LLM-backed or
// mechanical), paired with its rationale.
type ProposedQuery struct {
	Text            string
	Reasoning       string
	GapType         GapType
	RelatedTension  string // tension ID, if any
}

// DiscoveryPlan is SourceFinder's output: new queries and social topics to
// pursue next cycle (SPEC_FULL.md §4.6).
type DiscoveryPlan struct {
	Queries      []ProposedQuery
	SocialTopics []string
}

// Proposer is the external LLM-backed collaborator that turns a briefing
// into a DiscoveryPlan (SPEC_FULL.md §1: discovery engine is out of scope,
// only its interface is specified here).
type Proposer interface {
	Propose(ctx context.Context, briefing DiscoveryBriefing) (DiscoveryPlan, error)
}
