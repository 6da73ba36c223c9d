package neo4j

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/domain/entity"
	"scout/internal/repository"
)

// TagSignal implements repository.GraphStore.TagSignal: merges a Tag node
// per slug and a TAGGED edge from the signal to it. Tags are never
// auto-deleted (SPEC_FULL.md §3).
func (s *Store) TagSignal(ctx context.Context, signalID string, nodeType entity.NodeType, tagSlugs []string) error {
	if len(tagSlugs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
MATCH (n:%s {id: $signal_id})
UNWIND $slugs AS slug
MERGE (t:Tag {slug: slug})
ON CREATE SET t.id = randomUUID(), t.name = slug, t.created_at = $now
MERGE (n)-[:TAGGED]->(t)`, string(nodeType))

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"signal_id": signalID,
		"slugs":     tagSlugs,
		"now":       neo4j.LocalDateTime(time.Now()),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("TagSignal: %w", err)
	}
	return nil
}

// LinkResource implements repository.GraphStore.LinkResource: merges a
// Resource node by slug, bumping SignalCount/LastSeen, and a
// REQUIRES/PREFERS/OFFERS edge carrying confidence (SPEC_FULL.md §3, §4.3).
// The edge relationship type is picked from link.Role since Cypher has no
// parameterized relationship type; Role is validated against the three
// recognized values first so no untrusted string reaches query text.
func (s *Store) LinkResource(ctx context.Context, signalID string, nodeType entity.NodeType, link repository.ResourceLink) error {
	edgeType, err := resourceEdgeType(link.Role)
	if err != nil {
		return fmt.Errorf("LinkResource: %w", err)
	}
	name := link.Name
	if name == "" {
		name = link.Slug
	}

	query := fmt.Sprintf(`
MATCH (n:%s {id: $signal_id})
MERGE (r:Resource {slug: $slug})
ON CREATE SET r.id = randomUUID(), r.name = $name, r.signal_count = 1, r.created_at = $now, r.last_seen = $now
ON MATCH SET r.signal_count = r.signal_count + 1, r.last_seen = $now
MERGE (n)-[edge:%s]->(r)
SET edge.confidence = $confidence`, string(nodeType), edgeType)

	_, err = neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"signal_id":  signalID,
		"slug":       link.Slug,
		"name":       name,
		"confidence": link.Confidence,
		"now":        neo4j.LocalDateTime(time.Now()),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("LinkResource: %w", err)
	}
	return nil
}

func resourceEdgeType(role entity.ResourceRole) (string, error) {
	switch role {
	case entity.ResourceRequires:
		return "REQUIRES", nil
	case entity.ResourcePrefers:
		return "PREFERS", nil
	case entity.ResourceOffers:
		return "OFFERS", nil
	}
	return "", fmt.Errorf("unrecognized resource role %q", role)
}

// LinkActor implements repository.GraphStore.LinkActor: merges an Actor
// node by name and an ACTED_IN{role} edge from the actor to the signal
// (SPEC_FULL.md §3 ACTED_IN). EntityID uses the same host-based fallback as
// Corroborate's attribution (SPEC_FULL.md §4.1) when actorName looks like a
// URL/domain, otherwise the name itself.
func (s *Store) LinkActor(ctx context.Context, signalID string, nodeType entity.NodeType, actorName, role string) error {
	if actorName == "" {
		return nil
	}
	entityID := actorName
	if u, err := url.Parse(actorName); err == nil && u.Host != "" {
		entityID = u.Host
	}

	query := fmt.Sprintf(`
MATCH (n:%s {id: $signal_id})
MERGE (a:Actor {name: $name})
ON CREATE SET a.id = randomUUID(), a.entity_id = $entity_id, a.signal_count = 1,
              a.first_seen = $now, a.last_active = $now
ON MATCH SET a.signal_count = a.signal_count + 1, a.last_active = $now
MERGE (a)-[edge:ACTED_IN]->(n)
SET edge.role = $role`, string(nodeType))

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"signal_id": signalID,
		"name":      actorName,
		"entity_id": entityID,
		"role":      role,
		"now":       neo4j.LocalDateTime(time.Now()),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("LinkActor: %w", err)
	}
	return nil
}
