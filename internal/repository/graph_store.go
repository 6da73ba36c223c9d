// Package repository declares the persistence-facing interfaces consumed by
// the usecase layer. GraphStore is the only component that talks to the
// underlying labeled-property graph (SPEC_FULL.md §4.1); every operation is
// idempotent with explicit on-create vs on-match semantics.
package repository

import (
	"context"
	"time"

	"scout/internal/domain/entity"
)

// BoundingBox scopes vector search and query resolution to one region, to
// prevent cross-region deduplication (SPEC_FULL.md §4.1 find_duplicate).
type BoundingBox struct {
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
}

// DuplicateMatch is a hit returned by title lookups and vector search.
type DuplicateMatch struct {
	ID        string
	SourceURL string
	Similarity float64
}

// ReapStats counts deletions performed by one ReapExpired pass.
type ReapStats struct {
	PastEvents      int
	ExpiredNeeds    int
	ExpiredNotices  int
	StaleAidTension int
	OrphanedEvidence int
}

// SourceStats is the read-path companion to RecordSourceScrape, consumed by
// SourceFinder's "past discovery performance" briefing section.
type SourceStats struct {
	CanonicalKey        string
	SignalsProduced     int
	SignalsCorroborated int
	ConsecutiveEmptyRuns int
	ScrapeCount         int
	LastScraped         *time.Time
	GapContext          string
}

// TitleTypePair is one lookup key for FindByTitlesAndTypes (global exact
// title+type match, dedup ladder layer 3).
type TitleTypePair struct {
	NormalizedTitle string
	Type            entity.NodeType
}

// ResourceLink is one REQUIRES/PREFERS/OFFERS edge to create from a signal
// to a Resource, resolved from the extractor's slug-keyed ResourceRoleTag
// (SPEC_FULL.md §3, §4.3).
type ResourceLink struct {
	Slug       string
	Name       string
	Role       entity.ResourceRole
	Confidence float64
}

// ReapConfig carries the tunable expiry windows consulted by ReapExpired
// (SPEC_FULL.md §6 config table: NEED_EXPIRE_DAYS, NOTICE_EXPIRE_DAYS,
// FRESHNESS_MAX_DAYS, GATHERING_PAST_GRACE_HOURS).
type ReapConfig struct {
	NeedExpireDays          int
	NoticeExpireDays        int
	FreshnessMaxDays        int
	GatheringPastGraceHours int
}

// GraphStore is the typed persistence API over the signal graph. All
// mutating methods are idempotent; read failures are treated as best-effort
// by callers (fall through to "no match"), write failures abort only the
// current signal (SPEC_FULL.md §4.1 Failure semantics).
type GraphStore interface {
	// CreateNode writes a polymorphic signal node, stamping review_status =
	// "staged", created_by, and scout_run_id. embedding is stored on the
	// label-scoped vector index. Returns the assigned node ID.
	CreateNode(ctx context.Context, node *entity.SignalNode, embedding []float32, createdBy, runID string) (string, error)

	// CreateEvidence merges on (signal)-[:SOURCED_FROM]->(Evidence{source_url}).
	// On-create sets all fields; on-match refreshes ContentHash/RetrievedAt only.
	CreateEvidence(ctx context.Context, signalID string, ev *entity.Evidence) error

	// RefreshSignal bumps last_confirmed_active only; no corroboration credit.
	RefreshSignal(ctx context.Context, id string, nodeType entity.NodeType, now time.Time) error

	// Corroborate increments corroboration_count, refreshes
	// last_confirmed_active, and recomputes source_diversity, external_ratio,
	// and channel_diversity from the current evidence set. entityMappings is
	// the host->canonical-entity fallback table for attribution.
	Corroborate(ctx context.Context, id string, nodeType entity.NodeType, now time.Time, entityMappings map[string]string) error

	// FindByTitlesAndTypes is dedup ladder layer 3: a single batched query
	// keyed by (normalized title, type), returning one hit per match.
	FindByTitlesAndTypes(ctx context.Context, pairs []TitleTypePair) (map[TitleTypePair]DuplicateMatch, error)

	// FindDuplicate is dedup ladder layer 5: vector search over the
	// label-specific index, bounding-box filtered, returning the
	// highest-similarity match >= threshold, if any.
	FindDuplicate(ctx context.Context, embedding []float32, nodeType entity.NodeType, threshold float64, bbox BoundingBox) (*DuplicateMatch, bool, error)

	// ReapExpired runs the four scoped deletes plus orphaned-Evidence cleanup.
	ReapExpired(ctx context.Context, cfg ReapConfig, now time.Time) (ReapStats, error)

	// AcquireScoutLock deletes stale locks for region (AcquiredAt older than
	// entity.ScoutLockTTL) then atomically creates a new lock iff none
	// exists, returning whether this call acquired it.
	AcquireScoutLock(ctx context.Context, region, runID string, now time.Time) (bool, error)

	// ReleaseScoutLock removes the lock held by runID for region.
	ReleaseScoutLock(ctx context.Context, region, runID string) error

	// RecordSourceScrape applies entity.Source.RecordScrape's accounting
	// against the stored Source node for canonicalKey.
	RecordSourceScrape(ctx context.Context, canonicalKey string, produced int, now time.Time) error

	// SourceExists reports whether a Source with canonicalKey is stored.
	SourceExists(ctx context.Context, canonicalKey string) (bool, error)

	// ContentAlreadyProcessed is the exact-hash short-circuit for a
	// re-scraped unchanged URL (SPEC_FULL.md §12).
	ContentAlreadyProcessed(ctx context.Context, contentHash, url string) (bool, error)

	// RefreshURLSignals batch-confirms freshness for every signal attached
	// to url, grouped by NodeType, returning the node IDs refreshed.
	RefreshURLSignals(ctx context.Context, url string, now time.Time) ([]string, error)

	// ExistingTitlesForURL backs dedup ladder layer 2 (URL-scoped title dedup).
	ExistingTitlesForURL(ctx context.Context, url string) (map[string]bool, error)

	// DeleteBySourceURL removes all signals/evidence sourced solely from url.
	DeleteBySourceURL(ctx context.Context, url string) error

	// IsBlocked reports whether url matches a block-list entry.
	IsBlocked(ctx context.Context, url string) (bool, error)

	// BlockedURLs filters urls down to those matching a block-list entry,
	// in one batched CONTAINS-pattern query.
	BlockedURLs(ctx context.Context, urls []string) (map[string]bool, error)

	// GetSourceStats is the read-path companion to RecordSourceScrape.
	GetSourceStats(ctx context.Context, canonicalKey string) (SourceStats, error)

	// UpsertSource merges a Source node by CanonicalKey (used by the link
	// promoter and SourceFinder to create discovery_method=linked_from and
	// LLM-proposed sources).
	UpsertSource(ctx context.Context, src *entity.Source) error

	// DueSources returns active sources whose cadence has elapsed as of now.
	// The Neo4j implementation does not filter by region.
	DueSources(ctx context.Context, region BoundingBox, now time.Time) ([]*entity.Source, error)

	// TagSignal merges a Tag node per slug and a TAGGED edge from signalID
	// to it (SPEC_FULL.md §3 TAGGED). Tags are never auto-deleted.
	TagSignal(ctx context.Context, signalID string, nodeType entity.NodeType, tagSlugs []string) error

	// LinkResource merges a Resource node by slug (incrementing SignalCount
	// and bumping LastSeen on-match, setting Name/CreatedAt/LastSeen on
	// create) and a REQUIRES/PREFERS/OFFERS edge carrying confidence from
	// signalID to it (SPEC_FULL.md §3, §4.3).
	LinkResource(ctx context.Context, signalID string, nodeType entity.NodeType, link ResourceLink) error

	// LinkActor merges an Actor node by name (deriving EntityID from a
	// domain/handle when present, falling back to the name) and an
	// ACTED_IN{role} edge from the actor to signalID (SPEC_FULL.md §3
	// ACTED_IN, roles "author"/"mentioned").
	LinkActor(ctx context.Context, signalID string, nodeType entity.NodeType, actorName, role string) error
}
