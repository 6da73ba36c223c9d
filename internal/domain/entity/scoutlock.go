package entity

import "time"

// ScoutLockTTL bounds how long a ScoutLock may be held before another run is
// allowed to treat it as abandoned and self-heal past it (SPEC_FULL.md §3
// Invariants, §4.1 Locking).
const ScoutLockTTL = 30 * time.Minute

// ScoutLock is the per-region mutual-exclusion record a ScrapePhase run
// acquires before touching a region's sources, and releases when it
// finishes. GraphStore.AcquireScoutLock performs the stale check
// (Now - AcquiredAt > ScoutLockTTL) as part of the same atomic write that
// creates the lock, so two concurrent acquire attempts can't both succeed
// against a stale lock.
type ScoutLock struct {
	RegionSlug string
	RunID      string
	AcquiredAt time.Time
}

// Stale reports whether the lock has outlived ScoutLockTTL as of now.
func (l *ScoutLock) Stale(now time.Time) bool {
	return now.Sub(l.AcquiredAt) > ScoutLockTTL
}
