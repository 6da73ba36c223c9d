package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/domain/entity"
)

type fakeEmbedder struct {
	vec []float32
}

func (f fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func TestDiscoveryBriefing_ColdStart(t *testing.T) {
	b := DiscoveryBriefing{UnmetTensions: []TensionSummary{{ID: "t1"}, {ID: "t2"}}}
	assert.True(t, b.ColdStart())

	b.MetTensions = []TensionSummary{{ID: "t3"}}
	assert.False(t, b.ColdStart())
}

func TestDiscoveryBriefing_ColdStart_SituationsPresent(t *testing.T) {
	b := DiscoveryBriefing{UnmetTensions: []TensionSummary{{ID: "t1"}}, Situations: []SituationSummary{{ID: "s1"}}}
	assert.False(t, b.ColdStart())
}

func TestFinder_Discover_ColdStartIgnoresProposer(t *testing.T) {
	f := New(nil, nil, nil, nil)
	briefing := DiscoveryBriefing{UnmetTensions: []TensionSummary{{ID: "t1", Title: "clean water access"}}}

	plan, err := f.Discover(context.Background(), briefing, "riverside")
	require.NoError(t, err)
	require.Len(t, plan.Queries, 1)
	assert.Equal(t, "clean water access resources services riverside", plan.Queries[0].Text)
	assert.Equal(t, "t1", plan.Queries[0].RelatedTension)
}

type stubProposer struct {
	plan DiscoveryPlan
	err  error
}

func (s stubProposer) Propose(ctx context.Context, briefing DiscoveryBriefing) (DiscoveryPlan, error) {
	return s.plan, s.err
}

func TestFinder_Discover_WarmUsesProposer(t *testing.T) {
	warm := DiscoveryBriefing{
		UnmetTensions: []TensionSummary{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}},
	}
	want := DiscoveryPlan{Queries: []ProposedQuery{{Text: "proposed query"}}}
	f := New(nil, nil, stubProposer{plan: want}, nil)

	plan, err := f.Discover(context.Background(), warm, "riverside")
	require.NoError(t, err)
	assert.Equal(t, want, plan)
}

func TestFinder_Discover_ProposerErrorFallsBackMechanical(t *testing.T) {
	warm := DiscoveryBriefing{
		UnmetTensions: []TensionSummary{{ID: "t1", Title: "food access"}, {ID: "t2"}, {ID: "t3"}},
	}
	f := New(nil, nil, stubProposer{err: assertErr{}}, nil)

	plan, err := f.Discover(context.Background(), warm, "riverside")
	require.NoError(t, err)
	require.Len(t, plan.Queries, 3)
}

type assertErr struct{}

func (assertErr) Error() string { return "proposer unavailable" }

func TestResolve_SubstringDedupDropsNearDuplicate(t *testing.T) {
	f := New(nil, nil, nil, nil)
	plan := DiscoveryPlan{Queries: []ProposedQuery{{Text: "food pantry riverside", GapType: GapUnmetTension}}}
	briefing := DiscoveryBriefing{ExistingQueries: []ExistingQuery{{Text: "food pantry riverside open hours"}}}

	sources, err := f.Resolve(context.Background(), plan, briefing)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestResolve_EmbeddingDedupDropsSimilarQuery(t *testing.T) {
	f := New(nil, fakeEmbedder{vec: []float32{1, 0, 0}}, nil, nil)
	plan := DiscoveryPlan{Queries: []ProposedQuery{{Text: "overnight shelter capacity", GapType: GapUnmetTension}}}
	briefing := DiscoveryBriefing{ExistingQueries: []ExistingQuery{{Text: "unrelated text", Embedding: []float32{1, 0, 0}}}}

	sources, err := f.Resolve(context.Background(), plan, briefing)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestResolve_SurvivingQueryBecomesWeightedWebQuerySource(t *testing.T) {
	f := New(nil, nil, nil, nil)
	plan := DiscoveryPlan{Queries: []ProposedQuery{{Text: "shelter capacity riverside", GapType: GapUnmetTension}}}

	sources, err := f.Resolve(context.Background(), plan, DiscoveryBriefing{})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, entity.StrategyWebQuery, sources[0].Strategy)
	assert.Equal(t, entity.DiscoveryGapAnalysis, sources[0].DiscoveryMethod)
	assert.Equal(t, 0.4, sources[0].Weight)
}

func TestInitialWeight_GapAnalysisSplitsByGapType(t *testing.T) {
	assert.Equal(t, 0.4, InitialWeight(entity.DiscoveryGapAnalysis, GapUnmetTension))
	assert.Equal(t, 0.3, InitialWeight(entity.DiscoveryGapAnalysis, GapNovelAngle))
	assert.Equal(t, 0.5, InitialWeight(entity.DiscoveryCurated, ""))
	assert.Equal(t, 0.25, InitialWeight(entity.DiscoveryLinkedFrom, ""))
}

func TestSignalTypeCounts_Imbalanced(t *testing.T) {
	c := SignalTypeCounts{Counts: map[entity.NodeType]int{entity.NodeTypeTension: 12, entity.NodeTypeAid: 1}}
	c.Imbalanced()
	require.Len(t, c.ImbalanceNotes, 1)

	c2 := SignalTypeCounts{Counts: map[entity.NodeType]int{entity.NodeTypeTension: 3, entity.NodeTypeAid: 2}}
	c2.Imbalanced()
	assert.Empty(t, c2.ImbalanceNotes)
}

func TestGapTypeStat_LowSuccessWarning(t *testing.T) {
	assert.True(t, GapTypeStat{Attempts: 5, Successes: 0}.LowSuccessWarning())
	assert.False(t, GapTypeStat{Attempts: 4, Successes: 0}.LowSuccessWarning())
	assert.False(t, GapTypeStat{Attempts: 5, Successes: 1}.LowSuccessWarning())
}
