package entity

import "time"

// Actor is a named organization or individual mentioned in, or responsible
// for, signals. EntityID is the canonical key used for source-diversity and
// channel-diversity computation (host-based, with a mapping-table fallback —
// SPEC_FULL.md §4.1 corroborate()).
type Actor struct {
	ID             string
	Name           string
	ActorType      string
	EntityID       string
	Domains        []string
	SocialURLs     []string
	SignalCount    int
	FirstSeen      time.Time
	LastActive     time.Time
	DiscoveryDepth int
	Location       *GeoPoint
}

// Validate checks required Actor fields.
func (a *Actor) Validate() error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if a.EntityID == "" {
		return &ValidationError{Field: "entity_id", Message: "entity_id is required"}
	}
	return nil
}
