package entity

import "time"

// ResourceRole classifies how a signal relates to a Resource.
type ResourceRole string

const (
	ResourceRequires ResourceRole = "requires"
	ResourcePrefers  ResourceRole = "prefers"
	ResourceOffers   ResourceRole = "offers"
)

// Resource is a deduplicated category of needed/offered things (e.g.
// "vehicle", "translator"). Resources outlive the signals that reference
// them and are never auto-deleted.
type Resource struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Embedding   []float32
	SignalCount int
	CreatedAt   time.Time
	LastSeen    time.Time
}

// ResourceTag is the extractor's proposed link from a signal to a Resource,
// before the slug has been resolved/deduplicated against existing Resources.
type ResourceTag struct {
	Slug       string
	Role       ResourceRole
	Confidence float64
	Context    string
}
