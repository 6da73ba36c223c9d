package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scout/internal/domain/entity"
	"scout/internal/usecase/fetch"
)

const (
	socialPostLimit  = 20
	redditBatchSize  = 10
	sitePrefixColon  = "site:"
)

// RunSocial executes pipeline steps 1-6 of SPEC_FULL.md §4.5 (social) over
// the social-strategy sources in sources.
func (p *Phase) RunSocial(ctx context.Context, rc *RunContext, sources []*entity.Source, actorContexts map[string]string) (*ScrapeOutput, error) {
	out := newScrapeOutput()

	social := make([]*entity.Source, 0, len(sources))
	for _, src := range sources {
		if src.Strategy.IsSocial() {
			social = append(social, src)
		}
	}
	if len(social) == 0 {
		return out, nil
	}

	eventsPerSource := make([][]Event, len(social))
	linksPerSource := make([][]CollectedLink, len(social))
	postsSeenPerSource := make([]int, len(social))
	impliedPerSource := make([][]string, len(social))

	sem := make(chan struct{}, socialConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range social {
		i, src := i, src
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			evs, links, seen, iq, err := p.scrapeSocialSource(egCtx, src, actorContexts[src.CanonicalKey])
			if err != nil {
				p.Logger.Warn("social scrape failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
				return nil
			}
			eventsPerSource[i] = evs
			linksPerSource[i] = links
			postsSeenPerSource[i] = seen
			impliedPerSource[i] = iq
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, fmt.Errorf("RunSocial: %w", err)
	}

	for i := range social {
		out.Events = append(out.Events, eventsPerSource[i]...)
		out.CollectedLinks = append(out.CollectedLinks, linksPerSource[i]...)
		out.ImpliedQueries = append(out.ImpliedQueries, impliedPerSource[i]...)
		rc.SocialPostsSeen += postsSeenPerSource[i]
	}
	return out, nil
}

func (p *Phase) scrapeSocialSource(ctx context.Context, src *entity.Source, actorPreamble string) ([]Event, []CollectedLink, int, []string, error) {
	posts, err := p.Fetcher.Posts(ctx, src.CanonicalValue, socialPostLimit)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	if len(posts) == 0 {
		return nil, nil, 0, nil, nil
	}

	var newestPublished *time.Time
	var mentions []string
	for _, post := range posts {
		if post.PublishedAt != nil && (newestPublished == nil || post.PublishedAt.After(*newestPublished)) {
			newestPublished = post.PublishedAt
		}
		mentions = append(mentions, post.Mentions...)
	}

	preamble := actorPreamble
	if preamble == "" {
		preamble = firstHandFilterPreamble
	} else {
		preamble = fmt.Sprintf("This content is from %s.\n\n", preamble)
	}

	batches := batchPosts(posts, src.Strategy)

	var events []Event
	var impliedQueries []string
	for _, batch := range batches {
		content := preamble + joinPostText(batch)
		result, err := p.Extractor.Extract(ctx, content, src.CanonicalValue)
		if err != nil {
			p.Logger.Warn("social extract failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
			continue
		}
		for _, n := range result.Nodes {
			n.Meta.SourceURL = src.CanonicalValue
			if n.Meta.ContentDate == nil {
				n.Meta.ContentDate = newestPublished
			}
		}
		dedupWithinBatch(result)
		if len(result.Nodes) == 0 {
			continue
		}
		impliedQueries = append(impliedQueries, impliedQueriesForTensionOrNeed(result)...)
		events = append(events, Event{
			Kind: EventSignalsExtracted,
			Batch: &ExtractedBatch{
				SourceID:    src.CanonicalKey,
				SourceURL:   src.CanonicalValue,
				ContentHash: hashContent(content),
				Result:      result,
			},
		})
	}

	links := make([]CollectedLink, 0, len(mentions))
	for _, handle := range mentions {
		links = append(links, CollectedLink{
			URL:          platformURL(src.Strategy, handle),
			DiscoveredOn: src.CanonicalKey,
		})
	}
	return events, links, len(posts), impliedQueries, nil
}

// batchPosts implements step 3: Reddit batches at redditBatchSize (larger
// text volume per post), every other platform combines all posts into one
// extraction call.
func batchPosts(posts []fetch.Post, strategy entity.Strategy) [][]fetch.Post {
	if strategy != entity.StrategyReddit {
		return [][]fetch.Post{posts}
	}
	var batches [][]fetch.Post
	for i := 0; i < len(posts); i += redditBatchSize {
		end := i + redditBatchSize
		if end > len(posts) {
			end = len(posts)
		}
		batches = append(batches, posts[i:end])
	}
	return batches
}

func joinPostText(posts []fetch.Post) string {
	var b strings.Builder
	for _, post := range posts {
		b.WriteString(post.Text)
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

func platformURL(strategy entity.Strategy, handle string) string {
	switch strategy {
	case entity.StrategyInstagram:
		return "https://instagram.com/" + handle
	case entity.StrategyFacebook:
		return "https://facebook.com/" + handle
	case entity.StrategyTwitter:
		return "https://x.com/" + handle
	case entity.StrategyReddit:
		return "https://reddit.com/u/" + handle
	case entity.StrategyTikTok:
		return "https://tiktok.com/@" + handle
	case entity.StrategyBluesky:
		return "https://bsky.app/profile/" + handle
	default:
		return handle
	}
}

// DiscoverFromTopics implements the one-shot topic discovery pass: searches
// each social platform for topics, groups resulting posts by author, and
// emits SourceDiscovered for any unknown author whose content extracts at
// least one signal. Also runs site-scoped queries against site:-prefixed
// sources (SPEC_FULL.md §4.5 "Topic discovery").
func (p *Phase) DiscoverFromTopics(ctx context.Context, rc *RunContext, topics []string, platforms []string, siteSources []*entity.Source, knownActors map[string]bool) (*ScrapeOutput, error) {
	out := newScrapeOutput()
	if len(topics) == 0 {
		return out, nil
	}

	for _, platform := range platforms {
		posts, err := p.Fetcher.SearchTopics(ctx, platform, topics, socialPostLimit)
		if err != nil {
			p.Logger.Warn("topic search failed", slog.String("platform", platform), slog.Any("error", err))
			continue
		}
		byAuthor := make(map[string][]fetch.Post)
		for _, post := range posts {
			byAuthor[post.Author] = append(byAuthor[post.Author], post)
		}
		for author, authorPosts := range byAuthor {
			if knownActors[author] {
				continue
			}
			content := firstHandFilterPreamble + joinPostText(authorPosts)
			result, err := p.Extractor.Extract(ctx, content, platform)
			if err != nil || len(result.Nodes) == 0 {
				continue
			}
			for _, n := range result.Nodes {
				n.Meta.SourceURL = authorPosts[0].Permalink
			}
			dedupWithinBatch(result)
			if len(result.Nodes) == 0 {
				continue
			}
			rc.DiscoveryPostsFound += len(authorPosts)
			out.ImpliedQueries = append(out.ImpliedQueries, impliedQueriesForTensionOrNeed(result)...)
			out.Events = append(out.Events,
				Event{Kind: EventSourceDiscovered, DiscoveredSource: discoveredSource(author, platform)},
				Event{Kind: EventSignalsExtracted, Batch: &ExtractedBatch{
					SourceID:    author,
					SourceURL:   authorPosts[0].Permalink,
					ContentHash: hashContent(content),
					Result:      result,
				}},
			)
		}
	}

	for _, src := range siteSources {
		if !strings.HasPrefix(src.CanonicalValue, sitePrefixColon) {
			continue
		}
		domain := strings.TrimPrefix(src.CanonicalValue, sitePrefixColon)
		for _, topic := range topics {
			results, err := p.Fetcher.SiteSearch(ctx, fmt.Sprintf("site:%s %s", domain, topic), 10)
			if err != nil {
				out.QueryAPIErrors[src.CanonicalKey] = err
				continue
			}
			for _, r := range results.Results {
				out.CollectedLinks = append(out.CollectedLinks, CollectedLink{URL: r.URL, DiscoveredOn: src.CanonicalKey})
			}
		}
	}

	return out, nil
}

func discoveredSource(handle, platform string) *entity.Source {
	return &entity.Source{
		CanonicalKey:    "actor:" + handle,
		CanonicalValue:  handle,
		URL:             platform,
		DiscoveryMethod: entity.DiscoveryHashtag,
		Active:          true,
		Weight:          0.3,
	}
}
