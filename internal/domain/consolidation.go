package domain

import "github.com/google/uuid"

// ConsolidationPatternKind is how a group of episodic memories was
// detected as recurring.
type ConsolidationPatternKind string

const (
	PatternExactDuplicate ConsolidationPatternKind = "exact_duplicate"
	PatternTriggerOverlap ConsolidationPatternKind = "trigger_overlap"
	PatternTitleOverlap   ConsolidationPatternKind = "title_overlap"
)

// ConsolidationPattern is a transient grouping computed during one
// consolidation run; it only exists to drive Integrate/Prune decisions
// and is never persisted.
type ConsolidationPattern struct {
	Kind           ConsolidationPatternKind `json:"kind"`
	Members        []Memory                 `json:"members"`
	Representative uuid.UUID                `json:"representative"`
	Strength       float64                  `json:"strength"` // [0,1]
	Occurrences    int                      `json:"occurrences"`
}

// MemberIDs returns the identities of every member in the pattern.
func (p *ConsolidationPattern) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
