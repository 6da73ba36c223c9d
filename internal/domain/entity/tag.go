package entity

// Tag is a free-form topical label attached to a signal at extraction time
// (e.g. "flooding", "road-closure"). In the graph, tags are Tag nodes merged
// by slug, the same way Resources are; GraphStore.TagSignal takes slugs, not
// this struct.
type Tag struct {
	Name  string
	Score float64
}
