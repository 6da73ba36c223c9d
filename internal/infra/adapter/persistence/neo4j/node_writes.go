package neo4j

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/domain/entity"
)

// CreateNode implements repository.GraphStore.CreateNode.
func (s *Store) CreateNode(ctx context.Context, node *entity.SignalNode, embedding []float32, createdBy, runID string) (string, error) {
	session := s.newSession(ctx)
	defer session.Close(ctx)

	props := baseNodeProps(node, embedding, createdBy, runID)
	mergeVariantProps(props, node)

	query := fmt.Sprintf(`
CREATE (n:%s)
SET n = $props
SET n.id = randomUUID()
RETURN n.id AS id`, string(node.Type))

	result, err := neo4j.ExecuteQuery(ctx, s.driver,
		query, map[string]any{"props": props},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return "", fmt.Errorf("CreateNode: %w", err)
	}
	if len(result.Records) == 0 {
		return "", fmt.Errorf("CreateNode: no record returned")
	}
	id, _, err := neo4j.GetRecordValue[string](result.Records[0], "id")
	if err != nil {
		return "", fmt.Errorf("CreateNode: %w", err)
	}
	return id, nil
}

func baseNodeProps(node *entity.SignalNode, embedding []float32, createdBy, runID string) map[string]any {
	embeddingF64 := make([]float64, len(embedding))
	for i, v := range embedding {
		embeddingF64[i] = float64(v)
	}
	props := map[string]any{
		"title":                node.Meta.Title,
		"summary":              node.Meta.Summary,
		"sensitivity":          string(node.Meta.Sensitivity),
		"confidence":           node.Meta.Confidence,
		"corroboration_count":  0,
		"source_diversity":     1,
		"external_ratio":       node.Meta.ExternalRatio,
		"about_location_name":  node.Meta.AboutLocationName,
		"source_url":           node.Meta.SourceURL,
		"extracted_at":         neo4j.LocalDateTime(time.Now()),
		"last_confirmed_active": neo4j.LocalDateTime(time.Now()),
		"implied_queries":      node.Meta.ImpliedQueries,
		"channel_diversity":    0,
		"mentioned_actors":     node.Meta.MentionedActors,
		"author_actor":         node.Meta.AuthorActor,
		"review_status":        "staged",
		"created_by":           createdBy,
		"scout_run_id":         runID,
		"embedding":            embeddingF64,
	}
	if node.Meta.AboutLocation != nil {
		props["about_lat"] = node.Meta.AboutLocation.Lat
		props["about_lng"] = node.Meta.AboutLocation.Lng
	}
	if node.Meta.ContentDate != nil {
		props["content_date"] = neo4j.LocalDateTime(*node.Meta.ContentDate)
	}
	return props
}

func mergeVariantProps(props map[string]any, node *entity.SignalNode) {
	switch node.Type {
	case entity.NodeTypeGathering:
		g := node.Gathering
		props["category"] = g.Category
		props["organizer"] = g.Organizer
		props["is_recurring"] = g.IsRecurring
		if g.StartsAt != nil {
			props["starts_at"] = neo4j.LocalDateTime(*g.StartsAt)
		}
		if g.EndsAt != nil {
			props["ends_at"] = neo4j.LocalDateTime(*g.EndsAt)
		}
	case entity.NodeTypeAid:
		a := node.Aid
		props["category"] = a.Category
		if a.Capacity != nil {
			props["capacity"] = *a.Capacity
		}
	case entity.NodeTypeNeed:
		n := node.Need
		props["urgency"] = n.Urgency
		props["category"] = n.Category
	case entity.NodeTypeNotice:
		props["category"] = node.Notice.Category
	case entity.NodeTypeTension:
		t := node.Tension
		props["severity"] = t.Severity
		props["cause_heat"] = t.CauseHeat
	}
}

// CreateEvidence implements repository.GraphStore.CreateEvidence. Merges on
// (signal)-[:SOURCED_FROM]->(Evidence{source_url}): on-create sets all
// fields, on-match refreshes content_hash/retrieved_at only.
func (s *Store) CreateEvidence(ctx context.Context, signalID string, ev *entity.Evidence) error {
	channelType := ev.ChannelType
	if channelType == "" {
		channelType = entity.DefaultChannelType
	}

	const query = `
MATCH (n) WHERE n.id = $signal_id
MERGE (n)-[:SOURCED_FROM]->(e:Evidence {source_url: $source_url})
ON CREATE SET
  e.id = randomUUID(),
  e.retrieved_at = $retrieved_at,
  e.content_hash = $content_hash,
  e.snippet = $snippet,
  e.relevance = $relevance,
  e.evidence_confidence = $confidence,
  e.channel_type = $channel_type
ON MATCH SET
  e.content_hash = $content_hash,
  e.retrieved_at = $retrieved_at`

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"signal_id":    signalID,
		"source_url":   ev.SourceURL,
		"retrieved_at": neo4j.LocalDateTime(ev.RetrievedAt),
		"content_hash": ev.ContentHash,
		"snippet":      ev.Snippet,
		"relevance":    string(ev.Relevance),
		"confidence":   ev.EvidenceConfidence,
		"channel_type": string(channelType),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("CreateEvidence: %w", err)
	}
	return nil
}

// RefreshSignal implements repository.GraphStore.RefreshSignal: bumps
// last_confirmed_active only, no corroboration credit.
func (s *Store) RefreshSignal(ctx context.Context, id string, nodeType entity.NodeType, now time.Time) error {
	query := fmt.Sprintf(`
MATCH (n:%s {id: $id})
SET n.last_confirmed_active = $now`, string(nodeType))

	_, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"id":  id,
		"now": neo4j.LocalDateTime(now),
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("RefreshSignal: %w", err)
	}
	return nil
}

// Corroborate implements repository.GraphStore.Corroborate. Recomputes
// source_diversity, external_ratio, and channel_diversity from the current
// evidence set; entity attribution uses the host-based fallback plus
// entityMappings. Host extraction and set-counting happen in Go rather than
// via an APOC-dependent Cypher expression, to avoid requiring the APOC
// plugin for a single write path.
func (s *Store) Corroborate(ctx context.Context, id string, nodeType entity.NodeType, now time.Time, entityMappings map[string]string) error {
	readQuery := fmt.Sprintf(`
MATCH (n:%s {id: $id})
OPTIONAL MATCH (n)-[:SOURCED_FROM]->(e:Evidence)
RETURN n.source_url AS self_url, collect({source_url: e.source_url, channel_type: e.channel_type}) AS evidence`, string(nodeType))

	readResult, err := neo4j.ExecuteQuery(ctx, s.driver, readQuery, map[string]any{"id": id},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("Corroborate: read evidence: %w", err)
	}
	if len(readResult.Records) == 0 {
		return fmt.Errorf("Corroborate: signal %s not found", id)
	}
	selfURL, _, err := neo4j.GetRecordValue[string](readResult.Records[0], "self_url")
	if err != nil {
		return fmt.Errorf("Corroborate: %w", err)
	}
	rows, _, err := neo4j.GetRecordValue[[]any](readResult.Records[0], "evidence")
	if err != nil {
		return fmt.Errorf("Corroborate: %w", err)
	}

	// source_diversity/external_ratio/channel_diversity are all gated on the
	// signal's own resolved entity, mirroring the original implementation's
	// compute_source_diversity/compute_channel_diversity: "external" means a
	// different entity than the signal's own source_url, not merely a
	// non-gov channel. channel_diversity counts distinct external
	// (entity, channel_type) pairs.
	selfEntity := attributionKey(selfURL, entityMappings)

	entities := make(map[string]bool)
	externalChannels := make(map[string]bool)
	external := 0
	total := 0
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		sourceURL, _ := m["source_url"].(string)
		if sourceURL == "" {
			continue
		}
		total++
		attributedEntity := attributionKey(sourceURL, entityMappings)
		entities[attributedEntity] = true
		if attributedEntity != selfEntity {
			external++
			channelType, _ := m["channel_type"].(string)
			if channelType == "" {
				channelType = string(entity.DefaultChannelType)
			}
			externalChannels[attributedEntity+"\x00"+channelType] = true
		}
	}
	sourceDiversity := len(entities)
	if sourceDiversity < 1 {
		sourceDiversity = 1
	}
	channelDiversity := len(externalChannels)
	if channelDiversity < 1 {
		channelDiversity = 1
	}
	externalRatio := 0.0
	if total > 0 {
		externalRatio = float64(external) / float64(total)
	}

	writeQuery := fmt.Sprintf(`
MATCH (n:%s {id: $id})
SET n.corroboration_count = n.corroboration_count + 1,
    n.last_confirmed_active = $now,
    n.source_diversity = $source_diversity,
    n.channel_diversity = $channel_diversity,
    n.external_ratio = $external_ratio`, string(nodeType))

	_, err = neo4j.ExecuteQuery(ctx, s.driver, writeQuery, map[string]any{
		"id":                id,
		"now":               neo4j.LocalDateTime(now),
		"source_diversity":  sourceDiversity,
		"channel_diversity": channelDiversity,
		"external_ratio":    externalRatio,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("Corroborate: write: %w", err)
	}
	return nil
}

// attributionKey resolves a source URL's attributed entity: a caller
// supplied mapping first, falling back to the bare hostname.
func attributionKey(sourceURL string, mappings map[string]string) string {
	host := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if mapped, ok := mappings[host]; ok {
		return mapped
	}
	return host
}
