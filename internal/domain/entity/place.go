package entity

import "time"

// Place is a named location (neighborhood, venue, landmark) that signals can
// be anchored to in addition to their raw AboutLocation coordinate. Distinct
// from Resource. No GraphStore operation reads or writes Places, and no code
// deduplicates them.
type Place struct {
	ID        string
	Name      string
	Location  GeoPoint
	PlaceType string
	SignalCount int
	CreatedAt time.Time
	LastSeen  time.Time
}
