package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/domain/entity"
)

// AcquireScoutLock implements repository.GraphStore.AcquireScoutLock: a
// single atomic query deletes stale locks for region then creates a new one
// iff none exists, avoiding the TOCTOU gap of separate check-then-create
// calls (SPEC_FULL.md §4.1, §5 Per-region mutual exclusion).
func (s *Store) AcquireScoutLock(ctx context.Context, region, runID string, now time.Time) (bool, error) {
	const query = `
MATCH (l:ScoutLock {region_slug: $region})
WHERE l.acquired_at < $stale_before
DETACH DELETE l
WITH count(*) AS deleted
OPTIONAL MATCH (existing:ScoutLock {region_slug: $region})
WITH existing
WHERE existing IS NULL
CREATE (:ScoutLock {region_slug: $region, run_id: $run_id, acquired_at: $now})
RETURN count(*) AS created`

	staleBefore := now.Add(-entity.ScoutLockTTL)
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"region":       region,
		"run_id":       runID,
		"now":          neo4j.LocalDateTime(now),
		"stale_before": neo4j.LocalDateTime(staleBefore),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return false, fmt.Errorf("AcquireScoutLock: %w", err)
	}
	if len(result.Records) == 0 {
		return false, nil
	}
	created, _, _ := neo4j.GetRecordValue[int64](result.Records[0], "created")
	return created > 0, nil
}

// ReleaseScoutLock implements repository.GraphStore.ReleaseScoutLock.
func (s *Store) ReleaseScoutLock(ctx context.Context, region, runID string) error {
	const query = `
MATCH (l:ScoutLock {region_slug: $region, run_id: $run_id})
DETACH DELETE l`

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"region": region,
		"run_id": runID,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("ReleaseScoutLock: %w", err)
	}
	return nil
}
