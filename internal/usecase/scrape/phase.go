package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	neturl "net/url"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scout/internal/domain/entity"
	"scout/internal/repository"
	"scout/internal/usecase/extract"
	"scout/internal/usecase/fetch"
)

// Concurrency caps per SPEC_FULL.md §4.5/§5.
const (
	queryConcurrency  = 5
	pageConcurrency   = 6
	socialConcurrency = 10

	feedMaxAge = 14 * 24 * time.Hour
)

const firstHandFilterPreamble = "The following content was retrieved from an aggregator or syndication source rather than directly from the originating account. Extract only signals the content itself substantiates; do not infer first-hand sourcing.\n\n"

// Phase orchestrates one fan-out over a cohort of sources (SPEC_FULL.md §4.5).
// It is pure up to emitting events: graph writes and dedup ladder layers 2-5
// belong to the aggregate applier consuming ScrapeOutput.Events.
type Phase struct {
	Fetcher   fetch.ContentFetcher
	Extractor extract.SignalExtractor
	Graph     repository.GraphStore
	Logger    *slog.Logger
}

// New constructs a Phase from its collaborators.
func New(fetcher fetch.ContentFetcher, extractor extract.SignalExtractor, graph repository.GraphStore, logger *slog.Logger) *Phase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Phase{Fetcher: fetcher, Extractor: extractor, Graph: graph, Logger: logger}
}

// RunWeb executes pipeline steps 1-10 of SPEC_FULL.md §4.5 over the web
// sources in sources (web_query/html_listing/web_page/rss strategies are
// honored; any social-strategy source is ignored by this call).
func (p *Phase) RunWeb(ctx context.Context, rc *RunContext, sources []*entity.Source, actorContexts map[string]string) (*ScrapeOutput, error) {
	out := newScrapeOutput()

	queries, listings, pages, feeds := partitionWebSources(sources)

	resolvedURLs := make(map[string]string) // url -> discovered-on canonical_key
	pubDates := make(map[string]time.Time)

	var mu sync.Mutex

	// Step 2: resolve queries, bounded at queryConcurrency.
	if len(queries) > 0 {
		sem := make(chan struct{}, queryConcurrency)
		eg, egCtx := errgroup.WithContext(ctx)
		for _, src := range queries {
			src := src
			eg.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				results, err := p.Fetcher.Search(egCtx, src.CanonicalValue)
				if err != nil {
					mu.Lock()
					out.QueryAPIErrors[src.CanonicalKey] = err
					mu.Unlock()
					p.Logger.Warn("query resolution failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
					return nil
				}
				mu.Lock()
				for _, r := range results.Results {
					resolvedURLs[r.URL] = src.CanonicalKey
				}
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return out, fmt.Errorf("RunWeb: query resolution: %w", err)
		}
	}

	// Step 3: resolve html-listings.
	for _, src := range listings {
		urls, err := p.resolveHTMLListing(ctx, src)
		if err != nil {
			p.Logger.Warn("html listing resolution failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
			continue
		}
		for _, u := range urls {
			resolvedURLs[u] = src.CanonicalKey
		}
	}

	// Step 4: append page source URLs directly.
	for _, src := range pages {
		resolvedURLs[src.URL] = src.CanonicalKey
	}

	// Step 5: fetch feeds, retain recent items, seed pub_dates.
	now := time.Now()
	for _, src := range feeds {
		archived, err := p.Fetcher.Feed(ctx, src.URL)
		if err != nil {
			p.Logger.Warn("feed fetch failed", slog.String("canonical_key", src.CanonicalKey), slog.Any("error", err))
			continue
		}
		for _, item := range archived.Items {
			if item.PubDate != nil && now.Sub(*item.PubDate) > feedMaxAge {
				continue
			}
			resolvedURLs[item.URL] = src.CanonicalKey
			if item.PubDate != nil {
				pubDates[item.URL] = *item.PubDate
			}
		}
	}

	// Step 6: dedup URL set, filter blocked.
	urls := make([]string, 0, len(resolvedURLs))
	for u := range resolvedURLs {
		urls = append(urls, u)
	}
	blocked, err := p.Graph.BlockedURLs(ctx, urls)
	if err != nil {
		p.Logger.Warn("blocked_urls check failed, proceeding unfiltered", slog.Any("error", err))
		blocked = map[string]bool{}
	}

	var toScrape []string
	for _, u := range urls {
		if blocked[u] {
			continue
		}
		toScrape = append(toScrape, u)
		rc.URLToCanonicalKey[u] = resolvedURLs[u]
	}

	// Step 7-10: fan out page scraping bounded at pageConcurrency.
	events := make([]Event, len(toScrape))
	links := make([][]CollectedLink, len(toScrape))
	implied := make([][]string, len(toScrape))

	sem := make(chan struct{}, pageConcurrency)
	eg, egCtx := errgroup.WithContext(ctx)
	for i, u := range toScrape {
		i, u := i, u
		canonicalKey := resolvedURLs[u]
		hasActorContext := actorContexts[canonicalKey] != ""
		actorPreamble := actorContexts[canonicalKey]
		pubDate := pubDates[u]

		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			ev, linked, iq, err := p.scrapeWebURL(egCtx, u, canonicalKey, hasActorContext, actorPreamble, pubDate)
			if err != nil {
				p.Logger.Warn("page scrape failed", slog.String("url", u), slog.Any("error", err))
				return nil
			}
			if ev != nil {
				events[i] = *ev
			}
			links[i] = linked
			implied[i] = iq
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, fmt.Errorf("RunWeb: page scrape: %w", err)
	}

	for i := range events {
		if events[i].Kind != "" {
			out.Events = append(out.Events, events[i])
		}
		out.CollectedLinks = append(out.CollectedLinks, links[i]...)
		out.ImpliedQueries = append(out.ImpliedQueries, implied[i]...)
	}

	return out, nil
}

// scrapeWebURL implements steps 7-10 for a single resolved URL.
func (p *Phase) scrapeWebURL(ctx context.Context, url, sourceID string, hasActorContext bool, actorPreamble string, fallbackPubDate time.Time) (*Event, []CollectedLink, []string, error) {
	page, err := p.Fetcher.Page(ctx, url)
	if err != nil {
		return nil, nil, nil, err
	}
	if page.Markdown == "" {
		return nil, nil, nil, nil
	}

	contentHash := hashContent(page.Markdown)
	already, err := p.Graph.ContentAlreadyProcessed(ctx, contentHash, url)
	if err != nil {
		p.Logger.Warn("content_already_processed check failed, treating as new", slog.String("url", url), slog.Any("error", err))
		already = false
	}
	if already {
		refreshed, err := p.Graph.RefreshURLSignals(ctx, url, time.Now())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("refresh url signals: %w", err)
		}
		if len(refreshed) == 0 {
			return nil, nil, nil, nil
		}
		return &Event{Kind: EventFreshnessConfirmed, RefreshedURL: url}, nil, nil, nil
	}

	content := page.Markdown
	if !hasActorContext {
		content = firstHandFilterPreamble + content
	}

	result, err := p.Extractor.Extract(ctx, content, url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extract: %w", err)
	}

	contentDate := page.PublishedAt
	if contentDate == nil && !fallbackPubDate.IsZero() {
		contentDate = &fallbackPubDate
	}
	for _, n := range result.Nodes {
		n.Meta.SourceURL = url
		if n.Meta.ContentDate == nil {
			n.Meta.ContentDate = contentDate
		}
	}

	dedupWithinBatch(result)
	if len(result.Nodes) == 0 {
		return nil, linksFrom(page.Links, sourceID), nil, nil
	}

	iq := impliedQueriesForTensionOrNeed(result)

	return &Event{
		Kind: EventSignalsExtracted,
		Batch: &ExtractedBatch{
			SourceID:    sourceID,
			SourceURL:   url,
			ContentHash: contentHash,
			Result:      result,
		},
	}, linksFrom(page.Links, sourceID), iq, nil
}

// impliedQueriesForTensionOrNeed stamps the batch's extractor-proposed
// follow-up queries onto every Tension/Need node's metadata and returns them
// for ScrapeOutput accumulation (SPEC_FULL.md §4.5); other node types don't
// carry follow-up queries.
func impliedQueriesForTensionOrNeed(result *extract.ExtractionResult) []string {
	if len(result.ImpliedQueries) == 0 {
		return nil
	}
	var found bool
	for _, n := range result.Nodes {
		if n.Type == entity.NodeTypeTension || n.Type == entity.NodeTypeNeed {
			n.Meta.ImpliedQueries = result.ImpliedQueries
			found = true
		}
	}
	if !found {
		return nil
	}
	return result.ImpliedQueries
}

func linksFrom(urls []string, sourceID string) []CollectedLink {
	links := make([]CollectedLink, 0, len(urls))
	for _, u := range urls {
		links = append(links, CollectedLink{URL: u, DiscoveredOn: sourceID})
	}
	return links
}

// dedupWithinBatch applies ladder step 1 (SPEC_FULL.md §4.4): collapse
// candidates sharing (normalized_title, type) within one extraction batch,
// keeping the first occurrence and dropping the rest along with their tags.
func dedupWithinBatch(result *extract.ExtractionResult) {
	seen := make(map[string]bool)
	kept := result.Nodes[:0]
	for _, n := range result.Nodes {
		key := entity.NormalizeTitle(n.Meta.Title) + "|" + string(n.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, n)
	}
	result.Nodes = kept
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func partitionWebSources(sources []*entity.Source) (queries, listings, pages, feeds []*entity.Source) {
	for _, src := range sources {
		if src.Strategy.IsSocial() {
			continue
		}
		switch src.Strategy {
		case entity.StrategyWebQuery:
			queries = append(queries, src)
		case entity.StrategyHTMLListing:
			listings = append(listings, src)
		case entity.StrategyWebPage:
			pages = append(pages, src)
		case entity.StrategyRSS:
			feeds = append(feeds, src)
		}
	}
	return
}

// resolveHTMLListing implements step 3: fetch the listing page, regex-match
// anchor hrefs against the source's configured link pattern, resolve
// relative links against the listing's own URL.
func (p *Phase) resolveHTMLListing(ctx context.Context, src *entity.Source) ([]string, error) {
	page, err := p.Fetcher.Page(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	var re *regexp.Regexp
	if src.LinkPattern != "" {
		if re, err = regexp.Compile(src.LinkPattern); err != nil {
			return nil, fmt.Errorf("resolveHTMLListing: invalid link_pattern %q: %w", src.LinkPattern, err)
		}
	}
	base, _ := neturl.Parse(src.URL)
	var matched []string
	for _, link := range page.Links {
		if re != nil && !re.MatchString(link) {
			continue
		}
		if ref, err := neturl.Parse(link); err == nil && base != nil {
			link = base.ResolveReference(ref).String()
		}
		matched = append(matched, link)
	}
	return matched, nil
}
