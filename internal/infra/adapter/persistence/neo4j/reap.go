package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/repository"
)

// ReapExpired implements repository.GraphStore.ReapExpired: four scoped
// deletes plus orphaned-Evidence cleanup (SPEC_FULL.md §4.1, lifecycle in §3).
func (s *Store) ReapExpired(ctx context.Context, cfg repository.ReapConfig, now time.Time) (repository.ReapStats, error) {
	var stats repository.ReapStats

	pastEvents, err := s.reapCount(ctx, `
MATCH (n:Gathering)
WHERE n.is_recurring = false
  AND coalesce(n.ends_at, n.starts_at) < $cutoff
DETACH DELETE n
RETURN count(n) AS deleted`, map[string]any{
		"cutoff": neo4j.LocalDateTime(now.Add(-time.Duration(cfg.GatheringPastGraceHours) * time.Hour)),
	})
	if err != nil {
		return stats, fmt.Errorf("ReapExpired: past events: %w", err)
	}
	stats.PastEvents = pastEvents

	expiredNeeds, err := s.reapCount(ctx, `
MATCH (n:Need)
WHERE n.extracted_at < $cutoff
DETACH DELETE n
RETURN count(n) AS deleted`, map[string]any{
		"cutoff": neo4j.LocalDateTime(now.AddDate(0, 0, -cfg.NeedExpireDays)),
	})
	if err != nil {
		return stats, fmt.Errorf("ReapExpired: expired needs: %w", err)
	}
	stats.ExpiredNeeds = expiredNeeds

	expiredNotices, err := s.reapCount(ctx, `
MATCH (n:Notice)
WHERE n.extracted_at < $cutoff
DETACH DELETE n
RETURN count(n) AS deleted`, map[string]any{
		"cutoff": neo4j.LocalDateTime(now.AddDate(0, 0, -cfg.NoticeExpireDays)),
	})
	if err != nil {
		return stats, fmt.Errorf("ReapExpired: expired notices: %w", err)
	}
	stats.ExpiredNotices = expiredNotices

	staleAidTension, err := s.reapCount(ctx, `
MATCH (n)
WHERE (n:Aid OR n:Tension) AND n.last_confirmed_active < $cutoff
DETACH DELETE n
RETURN count(n) AS deleted`, map[string]any{
		"cutoff": neo4j.LocalDateTime(now.AddDate(0, 0, -cfg.FreshnessMaxDays)),
	})
	if err != nil {
		return stats, fmt.Errorf("ReapExpired: stale aid/tension: %w", err)
	}
	stats.StaleAidTension = staleAidTension

	orphaned, err := s.reapCount(ctx, `
MATCH (e:Evidence)
WHERE NOT ( ()-[:SOURCED_FROM]->(e) )
DETACH DELETE e
RETURN count(e) AS deleted`, nil)
	if err != nil {
		return stats, fmt.Errorf("ReapExpired: orphaned evidence: %w", err)
	}
	stats.OrphanedEvidence = orphaned

	return stats, nil
}

func (s *Store) reapCount(ctx context.Context, query string, params map[string]any) (int, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return 0, err
	}
	if len(result.Records) == 0 {
		return 0, nil
	}
	count, _, err := neo4j.GetRecordValue[int64](result.Records[0], "deleted")
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
