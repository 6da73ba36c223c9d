// Package linkpromoter implements the end-of-phase link promotion step
// (SPEC_FULL.md §4.7): outbound links collected during a scrape run are
// deduplicated, capped, and turned into new discovery_method=linked_from
// Source nodes.
package linkpromoter

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"scout/internal/domain/entity"
	"scout/internal/repository"
	"scout/internal/usecase/scrape"
)

// PerSourceCap and PerRunCap are the promotion limits named in SPEC_FULL.md
// §4.7.
const (
	PerSourceCap = 10
	PerRunCap    = 50
)

// Promoter turns a run's collected links into new Source nodes.
type Promoter struct {
	Graph  repository.GraphStore
	Logger *slog.Logger
}

// New constructs a Promoter.
func New(graph repository.GraphStore, logger *slog.Logger) *Promoter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Promoter{Graph: graph, Logger: logger}
}

// Promote applies the §4.7 rules to links: dedup by canonicalized URL across
// the batch, cap at PerSourceCap per DiscoveredOn and PerRunCap overall, skip
// URLs already present as a Source, and UpsertSource the survivors with
// discovery_method = linked_from. Returns the canonical keys it created.
func (p *Promoter) Promote(ctx context.Context, links []scrape.CollectedLink) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(links))
	perSourceCount := make(map[string]int)
	var candidates []scrape.CollectedLink
	for _, l := range links {
		canon := CanonicalizeURL(l.URL)
		if canon == "" || seen[canon] {
			continue
		}
		if perSourceCount[l.DiscoveredOn] >= PerSourceCap {
			continue
		}
		seen[canon] = true
		perSourceCount[l.DiscoveredOn]++
		candidates = append(candidates, scrape.CollectedLink{URL: canon, DiscoveredOn: l.DiscoveredOn})
	}

	// Deterministic ordering before the per-run cap truncates: sort by
	// canonical URL so which links survive a tie at the cap is stable
	// across runs instead of depending on fan-out completion order.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].URL < candidates[j].URL })
	if len(candidates) > PerRunCap {
		p.Logger.Info("link promoter run cap reached, dropping excess candidates",
			slog.Int("collected", len(candidates)), slog.Int("cap", PerRunCap))
		candidates = candidates[:PerRunCap]
	}

	var created []string
	for _, c := range candidates {
		key := "url:" + c.URL
		exists, err := p.Graph.SourceExists(ctx, key)
		if err != nil {
			p.Logger.Warn("source_exists failed, skipping candidate link", slog.String("url", c.URL), slog.Any("error", err))
			continue
		}
		if exists {
			continue
		}

		src := &entity.Source{
			CanonicalKey:    key,
			CanonicalValue:  c.URL,
			URL:             c.URL,
			Strategy:        entity.StrategyWebPage,
			DiscoveryMethod: entity.DiscoveryLinkedFrom,
			Active:          true,
			Weight:          0.25,
			GapContext:      "linked from " + c.DiscoveredOn,
		}
		if err := p.Graph.UpsertSource(ctx, src); err != nil {
			p.Logger.Warn("upsert_source failed for promoted link", slog.String("url", c.URL), slog.Any("error", err))
			continue
		}
		created = append(created, key)
	}
	return created, nil
}

// CanonicalizeURL strips fragment and common tracking query parameters,
// lowercases scheme/host, and drops a trailing slash, matching the
// canonical_key normalization named in SPEC_FULL.md's glossary entry for
// "Canonical key / value".
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == "ref" || lower == "fbclid" || lower == "gclid" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
