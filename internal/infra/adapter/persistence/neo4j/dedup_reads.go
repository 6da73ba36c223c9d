package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"scout/internal/domain/entity"
	"scout/internal/repository"
)

// vectorIndexName returns the per-label vector index name for nodeType:
// gathering_embedding, aid_embedding, need_embedding, notice_embedding,
// tension_embedding (SPEC_FULL.md §6's required-indices list).
func vectorIndexName(nodeType entity.NodeType) string {
	return strings.ToLower(string(nodeType)) + "_embedding"
}

// FindByTitlesAndTypes implements repository.GraphStore.FindByTitlesAndTypes
// (dedup ladder layer 3): one batched query over all requested (title, type)
// pairs, grouped client-side by label since Cypher cannot parameterize a
// node label per-row.
func (s *Store) FindByTitlesAndTypes(ctx context.Context, pairs []repository.TitleTypePair) (map[repository.TitleTypePair]repository.DuplicateMatch, error) {
	result := make(map[repository.TitleTypePair]repository.DuplicateMatch, len(pairs))
	if len(pairs) == 0 {
		return result, nil
	}

	byType := make(map[entity.NodeType][]string)
	for _, p := range pairs {
		byType[p.Type] = append(byType[p.Type], p.NormalizedTitle)
	}

	for nodeType, titles := range byType {
		query := fmt.Sprintf(`
MATCH (n:%s)
WHERE toLower(n.title) IN $titles
RETURN toLower(n.title) AS title, n.id AS id, n.source_url AS source_url`, string(nodeType))

		qResult, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{"titles": titles},
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return nil, fmt.Errorf("FindByTitlesAndTypes: %w", err)
		}
		for _, rec := range qResult.Records {
			title, _, _ := neo4j.GetRecordValue[string](rec, "title")
			id, _, _ := neo4j.GetRecordValue[string](rec, "id")
			sourceURL, _, _ := neo4j.GetRecordValue[string](rec, "source_url")
			key := repository.TitleTypePair{NormalizedTitle: title, Type: nodeType}
			result[key] = repository.DuplicateMatch{ID: id, SourceURL: sourceURL, Similarity: 1.0}
		}
	}
	return result, nil
}

// FindDuplicate implements repository.GraphStore.FindDuplicate (dedup ladder
// layer 5): over-fetches K from the label-specific vector index, filters to
// the bounding box, returns the highest-similarity match >= threshold.
func (s *Store) FindDuplicate(ctx context.Context, embedding []float32, nodeType entity.NodeType, threshold float64, bbox repository.BoundingBox) (*repository.DuplicateMatch, bool, error) {
	embeddingF64 := make([]float64, len(embedding))
	for i, v := range embedding {
		embeddingF64[i] = float64(v)
	}

	const overfetchK = 20
	query := `
CALL db.index.vector.queryNodes($index_name, $k, $embedding)
YIELD node, score
WHERE score >= $threshold
  AND point.distance(point({latitude: node.about_lat, longitude: node.about_lng}),
                      point({latitude: $center_lat, longitude: $center_lng})) <= $radius_m
RETURN node.id AS id, node.source_url AS source_url, score AS similarity
ORDER BY similarity DESC
LIMIT 1`

	qResult, err := neo4j.ExecuteQuery(ctx, s.driver, query, map[string]any{
		"index_name":  vectorIndexName(nodeType),
		"k":           overfetchK,
		"embedding":   embeddingF64,
		"threshold":   threshold,
		"center_lat":  bbox.CenterLat,
		"center_lng":  bbox.CenterLng,
		"radius_m":    bbox.RadiusKm * 1000,
	}, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, false, fmt.Errorf("FindDuplicate: %w", err)
	}
	if len(qResult.Records) == 0 {
		return nil, false, nil
	}

	id, _, _ := neo4j.GetRecordValue[string](qResult.Records[0], "id")
	sourceURL, _, _ := neo4j.GetRecordValue[string](qResult.Records[0], "source_url")
	similarity, _, _ := neo4j.GetRecordValue[float64](qResult.Records[0], "similarity")

	return &repository.DuplicateMatch{ID: id, SourceURL: sourceURL, Similarity: similarity}, true, nil
}
