package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/domain/entity"
	"scout/internal/repository"
)

// RecordSourceScrape implements repository.GraphStore.RecordSourceScrape,
// applying entity.Source.RecordScrape's accounting against the stored node.
func (s *Store) RecordSourceScrape(ctx context.Context, canonicalKey string, produced int, now time.Time) error {
	var query string
	if produced > 0 {
		query = `
MATCH (src:Source {canonical_key: $key})
SET src.last_scraped = $now,
    src.last_produced_signal = $now,
    src.signals_produced = src.signals_produced + $produced,
    src.consecutive_empty_runs = 0,
    src.scrape_count = src.scrape_count + 1`
	} else {
		query = `
MATCH (src:Source {canonical_key: $key})
SET src.last_scraped = $now,
    src.consecutive_empty_runs = src.consecutive_empty_runs + 1,
    src.scrape_count = src.scrape_count + 1`
	}

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"key":      canonicalKey,
		"now":      neo4j.LocalDateTime(now),
		"produced": produced,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("RecordSourceScrape: %w", err)
	}
	return nil
}

// SourceExists implements repository.GraphStore.SourceExists.
func (s *Store) SourceExists(ctx context.Context, canonicalKey string) (bool, error) {
	const query = `MATCH (src:Source {canonical_key: $key}) RETURN count(src) > 0 AS exists`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"key": canonicalKey},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, fmt.Errorf("SourceExists: %w", err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	exists, _, _ := neo4j.GetRecordValue[bool](result.Records[0], "exists")
	return exists, nil
}

// ContentAlreadyProcessed implements repository.GraphStore.ContentAlreadyProcessed.
func (s *Store) ContentAlreadyProcessed(ctx context.Context, contentHash, url string) (bool, error) {
	const query = `
MATCH (:Evidence {source_url: $url, content_hash: $hash})
RETURN count(*) > 0 AS processed`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"url": url, "hash": contentHash},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, fmt.Errorf("ContentAlreadyProcessed: %w", err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	processed, _, _ := neo4j.GetRecordValue[bool](result.Records[0], "processed")
	return processed, nil
}

// RefreshURLSignals implements repository.GraphStore.RefreshURLSignals:
// batch-confirms freshness for every signal attached to url.
func (s *Store) RefreshURLSignals(ctx context.Context, url string, now time.Time) ([]string, error) {
	const query = `
MATCH (n)-[:SOURCED_FROM]->(:Evidence {source_url: $url})
SET n.last_confirmed_active = $now
RETURN n.id AS id`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"url": url,
		"now": neo4j.LocalDateTime(now),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("RefreshURLSignals: %w", err)
	}
	ids := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		id, _, _ := neo4j.GetRecordValue[string](rec, "id")
		ids = append(ids, id)
	}
	return ids, nil
}

// ExistingTitlesForURL implements repository.GraphStore.ExistingTitlesForURL
// (dedup ladder layer 2).
func (s *Store) ExistingTitlesForURL(ctx context.Context, url string) (map[string]bool, error) {
	const query = `
MATCH (n {source_url: $url})
RETURN toLower(n.title) AS title`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"url": url},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("ExistingTitlesForURL: %w", err)
	}
	titles := make(map[string]bool, len(result.Records))
	for _, rec := range result.Records {
		title, _, _ := neo4j.GetRecordValue[string](rec, "title")
		titles[title] = true
	}
	return titles, nil
}

// DeleteBySourceURL implements repository.GraphStore.DeleteBySourceURL.
func (s *Store) DeleteBySourceURL(ctx context.Context, url string) error {
	const query = `
MATCH (n)-[:SOURCED_FROM]->(e:Evidence {source_url: $url})
DETACH DELETE n, e`
	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"url": url},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("DeleteBySourceURL: %w", err)
	}
	return nil
}

// IsBlocked implements repository.GraphStore.IsBlocked.
func (s *Store) IsBlocked(ctx context.Context, url string) (bool, error) {
	const query = `
MATCH (b:BlockedPattern)
WHERE $url CONTAINS b.pattern
RETURN count(b) > 0 AS blocked`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"url": url},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, fmt.Errorf("IsBlocked: %w", err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	blocked, _, _ := neo4j.GetRecordValue[bool](result.Records[0], "blocked")
	return blocked, nil
}

// BlockedURLs implements repository.GraphStore.BlockedURLs: one batched
// CONTAINS-pattern check across all candidate URLs.
func (s *Store) BlockedURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	blocked := make(map[string]bool)
	if len(urls) == 0 {
		return blocked, nil
	}
	const query = `
UNWIND $urls AS url
MATCH (b:BlockedPattern)
WHERE url CONTAINS b.pattern
RETURN DISTINCT url`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"urls": urls},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("BlockedURLs: %w", err)
	}
	for _, rec := range result.Records {
		url, _, _ := neo4j.GetRecordValue[string](rec, "url")
		blocked[url] = true
	}
	return blocked, nil
}

// GetSourceStats implements repository.GraphStore.GetSourceStats.
func (s *Store) GetSourceStats(ctx context.Context, canonicalKey string) (repository.SourceStats, error) {
	const query = `
MATCH (src:Source {canonical_key: $key})
RETURN src.canonical_key AS canonical_key, src.signals_produced AS signals_produced,
       src.signals_corroborated AS signals_corroborated, src.consecutive_empty_runs AS consecutive_empty_runs,
       src.scrape_count AS scrape_count, src.last_scraped AS last_scraped, src.gap_context AS gap_context`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"key": canonicalKey},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return repository.SourceStats{}, fmt.Errorf("GetSourceStats: %w", err)
	}
	if len(result.Records) == 0 {
		return repository.SourceStats{}, fmt.Errorf("GetSourceStats: %w", entity.ErrNotFound)
	}
	rec := result.Records[0]
	stats := repository.SourceStats{CanonicalKey: canonicalKey}
	if v, _, err := neo4j.GetRecordValue[int64](rec, "signals_produced"); err == nil {
		stats.SignalsProduced = int(v)
	}
	if v, _, err := neo4j.GetRecordValue[int64](rec, "signals_corroborated"); err == nil {
		stats.SignalsCorroborated = int(v)
	}
	if v, _, err := neo4j.GetRecordValue[int64](rec, "consecutive_empty_runs"); err == nil {
		stats.ConsecutiveEmptyRuns = int(v)
	}
	if v, _, err := neo4j.GetRecordValue[int64](rec, "scrape_count"); err == nil {
		stats.ScrapeCount = int(v)
	}
	if v, _, err := neo4j.GetRecordValue[time.Time](rec, "last_scraped"); err == nil {
		stats.LastScraped = &v
	}
	if v, _, err := neo4j.GetRecordValue[string](rec, "gap_context"); err == nil {
		stats.GapContext = v
	}
	return stats, nil
}

// UpsertSource implements repository.GraphStore.UpsertSource.
func (s *Store) UpsertSource(ctx context.Context, src *entity.Source) error {
	const query = `
MERGE (n:Source {canonical_key: $canonical_key})
ON CREATE SET
  n.id = randomUUID(),
  n.canonical_value = $canonical_value,
  n.url = $url,
  n.strategy = $strategy,
  n.link_pattern = $link_pattern,
  n.discovery_method = $discovery_method,
  n.active = $active,
  n.weight = $weight,
  n.cadence_hours = $cadence_hours,
  n.signals_produced = 0,
  n.signals_corroborated = 0,
  n.consecutive_empty_runs = 0,
  n.scrape_count = 0,
  n.source_role = $source_role,
  n.gap_context = $gap_context,
  n.quality_penalty = $quality_penalty
ON MATCH SET
  n.active = $active,
  n.weight = $weight,
  n.gap_context = $gap_context`

	var cadenceHours any
	if src.CadenceHours != nil {
		cadenceHours = *src.CadenceHours
	}

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"canonical_key":    src.CanonicalKey,
		"canonical_value":  src.CanonicalValue,
		"url":              src.URL,
		"strategy":         string(src.Strategy),
		"link_pattern":     src.LinkPattern,
		"discovery_method": string(src.DiscoveryMethod),
		"active":           src.Active,
		"weight":           src.Weight,
		"cadence_hours":    cadenceHours,
		"source_role":      string(src.SourceRole),
		"gap_context":      src.GapContext,
		"quality_penalty":  src.QualityPenalty,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("UpsertSource: %w", err)
	}
	return nil
}

// DueSources implements repository.GraphStore.DueSources: active sources
// whose cadence has elapsed as of now. region is not used to filter the
// result.
func (s *Store) DueSources(ctx context.Context, region repository.BoundingBox, now time.Time) ([]*entity.Source, error) {
	const query = `
MATCH (n:Source)
WHERE n.active = true
  AND (n.last_scraped IS NULL OR duration.inSeconds(n.last_scraped, $now).seconds >= n.cadence_hours * 3600)
RETURN n.id AS id, n.canonical_key AS canonical_key, n.canonical_value AS canonical_value,
       n.url AS url, n.strategy AS strategy, n.link_pattern AS link_pattern,
       n.discovery_method AS discovery_method, n.active AS active,
       n.weight AS weight, n.cadence_hours AS cadence_hours, n.last_scraped AS last_scraped,
       n.signals_produced AS signals_produced, n.signals_corroborated AS signals_corroborated,
       n.consecutive_empty_runs AS consecutive_empty_runs, n.scrape_count AS scrape_count,
       n.source_role AS source_role, n.gap_context AS gap_context, n.quality_penalty AS quality_penalty`

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"now": neo4j.LocalDateTime(now)},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("DueSources: %w", err)
	}

	sources := make([]*entity.Source, 0, len(result.Records))
	for _, rec := range result.Records {
		src := &entity.Source{}
		src.ID, _, _ = neo4j.GetRecordValue[string](rec, "id")
		src.CanonicalKey, _, _ = neo4j.GetRecordValue[string](rec, "canonical_key")
		src.CanonicalValue, _, _ = neo4j.GetRecordValue[string](rec, "canonical_value")
		src.URL, _, _ = neo4j.GetRecordValue[string](rec, "url")
		strategy, _, _ := neo4j.GetRecordValue[string](rec, "strategy")
		src.Strategy = entity.Strategy(strategy)
		src.LinkPattern, _, _ = neo4j.GetRecordValue[string](rec, "link_pattern")
		method, _, _ := neo4j.GetRecordValue[string](rec, "discovery_method")
		src.DiscoveryMethod = entity.DiscoveryMethod(method)
		src.Active, _, _ = neo4j.GetRecordValue[bool](rec, "active")
		src.Weight, _, _ = neo4j.GetRecordValue[float64](rec, "weight")
		if cadence, _, err := neo4j.GetRecordValue[int64](rec, "cadence_hours"); err == nil {
			c := int(cadence)
			src.CadenceHours = &c
		}
		if lastScraped, _, err := neo4j.GetRecordValue[time.Time](rec, "last_scraped"); err == nil {
			src.LastScraped = &lastScraped
		}
		if v, _, err := neo4j.GetRecordValue[int64](rec, "signals_produced"); err == nil {
			src.SignalsProduced = int(v)
		}
		if v, _, err := neo4j.GetRecordValue[int64](rec, "signals_corroborated"); err == nil {
			src.SignalsCorroborated = int(v)
		}
		if v, _, err := neo4j.GetRecordValue[int64](rec, "consecutive_empty_runs"); err == nil {
			src.ConsecutiveEmptyRuns = int(v)
		}
		if v, _, err := neo4j.GetRecordValue[int64](rec, "scrape_count"); err == nil {
			src.ScrapeCount = int(v)
		}
		role, _, _ := neo4j.GetRecordValue[string](rec, "source_role")
		src.SourceRole = entity.SourceRole(role)
		src.GapContext, _, _ = neo4j.GetRecordValue[string](rec, "gap_context")
		src.QualityPenalty, _, _ = neo4j.GetRecordValue[float64](rec, "quality_penalty")
		sources = append(sources, src)
	}
	return sources, nil
}
