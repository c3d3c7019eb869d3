package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemoryKind determines the default half-life used when a memory has no
// explicit stability or half-life override.
type MemoryKind string

const (
	KindConstitutional MemoryKind = "constitutional"
	KindCritical       MemoryKind = "critical"
	KindSemantic       MemoryKind = "semantic"
	KindProcedural     MemoryKind = "procedural"
	KindDeclarative    MemoryKind = "declarative"
	KindEpisodic       MemoryKind = "episodic"
	KindTemporary      MemoryKind = "temporary"
)

func ValidMemoryKind(k string) bool {
	switch MemoryKind(k) {
	case KindConstitutional, KindCritical, KindSemantic, KindProcedural,
		KindDeclarative, KindEpisodic, KindTemporary:
		return true
	}
	return false
}

// KindHalfLifeDays returns the default half-life in days for a memory kind.
// A zero value with ok=true means the kind never decays.
func KindHalfLifeDays(k MemoryKind) (days float64, ok bool) {
	switch k {
	case KindConstitutional, KindCritical:
		return 0, true
	case KindSemantic:
		return 90, true
	case KindProcedural:
		return 120, true
	case KindDeclarative:
		return 60, true
	case KindEpisodic:
		return 7, true
	case KindTemporary:
		return 1, true
	}
	return 0, false
}

// ImportanceTier is the editorial classification of a memory, independent
// of its decay state. Constitutional and critical tiers are exempt from
// decay and archival.
type ImportanceTier string

const (
	TierConstitutional ImportanceTier = "constitutional"
	TierCritical       ImportanceTier = "critical"
	TierImportant      ImportanceTier = "important"
	TierNormal         ImportanceTier = "normal"
	TierTemporary      ImportanceTier = "temporary"
	TierDeprecated     ImportanceTier = "deprecated"
)

func ValidTier(t string) bool {
	switch ImportanceTier(t) {
	case TierConstitutional, TierCritical, TierImportant, TierNormal,
		TierTemporary, TierDeprecated:
		return true
	}
	return false
}

// TierDecayRate returns the per-turn multiplicative attention decay rate
// for a tier. A rate of 1.0 means the tier does not decay.
func TierDecayRate(t ImportanceTier) float64 {
	switch t {
	case TierConstitutional, TierCritical, TierImportant:
		return 1.0
	case TierTemporary:
		return 0.60
	default:
		return 0.80
	}
}

// TierWeight returns the importance factor used by composite scoring.
func TierWeight(t ImportanceTier) float64 {
	switch t {
	case TierConstitutional:
		return 1.0
	case TierCritical:
		return 0.95
	case TierImportant:
		return 0.8
	case TierNormal:
		return 0.5
	case TierTemporary:
		return 0.3
	case TierDeprecated:
		return 0.1
	default:
		return 0.5
	}
}

// Memory is a durable record in the knowledge store. Records are never
// physically deleted by the engine; "deletion" is a tier downgrade or an
// archived flag so the audit trail survives.
type Memory struct {
	ID      uuid.UUID      `json:"id"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Summary string         `json:"summary,omitempty"`
	Kind    MemoryKind     `json:"kind"`
	Tier    ImportanceTier `json:"tier"`
	Scope   string         `json:"scope,omitempty"` // folder-like grouping

	// FSRS scheduling state. Stability is in days; zero means unset.
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`

	// Optional decay overrides, consulted before the kind/tier defaults.
	HalfLifeDays   *float64 `json:"half_life_days,omitempty"`
	Retrievability *float64 `json:"retrievability,omitempty"` // precomputed
	Activation     *float64 `json:"activation,omitempty"`     // legacy raw score

	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	ReviewCount    int        `json:"review_count"`
	AccessCount    int        `json:"access_count"`

	Fingerprint    string   `json:"fingerprint,omitempty"`
	TriggerPhrases []string `json:"trigger_phrases,omitempty"`

	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastTouchedAt returns the most recent of last access, last review and
// creation, the basis for inactivity decisions.
func (m *Memory) LastTouchedAt() time.Time {
	t := m.CreatedAt
	if m.LastReviewedAt != nil && m.LastReviewedAt.After(t) {
		t = *m.LastReviewedAt
	}
	if m.LastAccessedAt != nil && m.LastAccessedAt.After(t) {
		t = *m.LastAccessedAt
	}
	return t
}

// MemoryStats summarizes the durable store for diagnostics.
type MemoryStats struct {
	Total      int            `json:"total"`
	Archived   int            `json:"archived"`
	ByTier     map[string]int `json:"by_tier"`
	ByKind     map[string]int `json:"by_kind"`
	OldestIdle *time.Time     `json:"oldest_idle,omitempty"`
}
