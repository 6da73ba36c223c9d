package neo4j

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scout/internal/domain/entity"
)

func TestVectorIndexName(t *testing.T) {
	assert.Equal(t, "tension_embedding", vectorIndexName(entity.NodeTypeTension))
	assert.Equal(t, "aid_embedding", vectorIndexName(entity.NodeTypeAid))
}

func TestAttributionKey(t *testing.T) {
	assert.Equal(t, "news-a.org", attributionKey("https://news-a.org/x", nil))
	assert.Equal(t, "Acme Org", attributionKey("https://news-a.org/x", map[string]string{"news-a.org": "Acme Org"}))
	assert.Equal(t, "not-a-url", attributionKey("not-a-url", nil))
}

func TestBaseNodeProps(t *testing.T) {
	node := &entity.SignalNode{
		Type: entity.NodeTypeNeed,
		Meta: entity.NodeMeta{Title: "water shortage", Confidence: 0.8},
		Need: &entity.NeedAttrs{Urgency: "high", Category: "water"},
	}
	props := baseNodeProps(node, []float32{1, 0}, "scout", "run-1")
	mergeVariantProps(props, node)

	assert.Equal(t, "water shortage", props["title"])
	assert.Equal(t, "staged", props["review_status"])
	assert.Equal(t, "high", props["urgency"])
	assert.Equal(t, "water", props["category"])
}
