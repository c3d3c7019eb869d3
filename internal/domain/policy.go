package domain

import "time"

// ArchivalPolicy is the single definition of "inactive enough to archive"
// shared by the state classifier and the archival manager so the two can
// never drift apart.
type ArchivalPolicy struct {
	// InactivityThreshold is how long a memory may go untouched before it
	// is treated as archived.
	InactivityThreshold time.Duration
}

// DefaultArchivalPolicy uses the 90-day inactivity threshold.
func DefaultArchivalPolicy() ArchivalPolicy {
	return ArchivalPolicy{InactivityThreshold: 90 * 24 * time.Hour}
}

// Protected reports whether a tier is exempt from decay and archival.
func (ArchivalPolicy) Protected(t ImportanceTier) bool {
	return t == TierConstitutional || t == TierCritical
}

// ProtectedTiers lists the tiers Protected returns true for, in a form
// store queries can interpolate.
func (ArchivalPolicy) ProtectedTiers() []ImportanceTier {
	return []ImportanceTier{TierConstitutional, TierCritical}
}

// InactiveEnough reports whether a memory has been idle past the
// threshold as of now. Protected tiers are never inactive enough.
func (p ArchivalPolicy) InactiveEnough(m *Memory, now time.Time) bool {
	if p.Protected(m.Tier) {
		return false
	}
	return now.Sub(m.LastTouchedAt()) >= p.InactivityThreshold
}
