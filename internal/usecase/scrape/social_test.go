package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout/internal/domain/entity"
	"scout/internal/usecase/extract"
	"scout/internal/usecase/fetch"
)

func TestRunSocial_ProducesEventAndCountsPostsSeen(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		posts: map[string][]fetch.Post{
			"@townhall": {
				{Text: "urgent need for blankets", PublishedAt: &now, Mentions: []string{"reliefcorp"}},
			},
		},
	}
	extractor := &fakeExtractor{result: &extract.ExtractionResult{Nodes: []*entity.SignalNode{needNode("need for blankets")}}}
	graph := &fakeGraph{blocked: map[string]bool{}}

	p := New(fetcher, extractor, graph, nil)
	rc := NewRunContext("run-1", "testville")
	sources := []*entity.Source{
		{CanonicalKey: "src-1", CanonicalValue: "@townhall", Strategy: entity.StrategyTwitter},
	}

	out, err := p.RunSocial(context.Background(), rc, sources, nil)
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, EventSignalsExtracted, out.Events[0].Kind)
	assert.Equal(t, 1, rc.SocialPostsSeen)
	require.Len(t, out.CollectedLinks, 1)
	assert.Equal(t, "https://x.com/reliefcorp", out.CollectedLinks[0].URL)
}

func TestRunSocial_ImpliedQueriesAccumulatedForNeedNode(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		posts: map[string][]fetch.Post{
			"@townhall": {
				{Text: "urgent need for blankets", PublishedAt: &now},
			},
		},
	}
	extractor := &fakeExtractor{result: &extract.ExtractionResult{
		Nodes:          []*entity.SignalNode{needNode("need for blankets")},
		ImpliedQueries: []string{"cold weather shelter capacity"},
	}}
	graph := &fakeGraph{blocked: map[string]bool{}}

	p := New(fetcher, extractor, graph, nil)
	rc := NewRunContext("run-1", "testville")
	sources := []*entity.Source{
		{CanonicalKey: "src-1", CanonicalValue: "@townhall", Strategy: entity.StrategyTwitter},
	}

	out, err := p.RunSocial(context.Background(), rc, sources, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cold weather shelter capacity"}, out.ImpliedQueries)
}

func TestRunSocial_NonSocialSourcesIgnored(t *testing.T) {
	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{}
	graph := &fakeGraph{}
	p := New(fetcher, extractor, graph, nil)
	rc := NewRunContext("run-1", "testville")
	sources := []*entity.Source{{CanonicalKey: "web-1", Strategy: entity.StrategyWebPage}}

	out, err := p.RunSocial(context.Background(), rc, sources, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Events)
}

func TestDiscoverFromTopics_SkipsKnownActors(t *testing.T) {
	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{}
	graph := &fakeGraph{}
	p := New(fetcher, extractor, graph, nil)
	rc := NewRunContext("run-1", "testville")

	out, err := p.DiscoverFromTopics(context.Background(), rc, []string{"flood"}, nil, nil, map[string]bool{"known": true})
	require.NoError(t, err)
	assert.Empty(t, out.Events)
}

func TestDiscoverFromTopics_NoTopicsIsNoop(t *testing.T) {
	p := New(&fakeFetcher{}, &fakeExtractor{}, &fakeGraph{}, nil)
	rc := NewRunContext("run-1", "testville")

	out, err := p.DiscoverFromTopics(context.Background(), rc, nil, []string{"platform"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Events)
}
