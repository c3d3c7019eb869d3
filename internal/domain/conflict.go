package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConflictAction is the write-gate decision for a piece of new content.
type ConflictAction string

const (
	ActionCreate       ConflictAction = "create"        // independent new record
	ActionCreateLinked ConflictAction = "create_linked" // new record, related to candidates
	ActionUpdate       ConflictAction = "update"        // revise the existing record
	ActionReinforce    ConflictAction = "reinforce"     // duplicate; boost existing
	ActionSupersede    ConflictAction = "supersede"     // contradiction; flag existing
)

func ValidConflictAction(a string) bool {
	switch ConflictAction(a) {
	case ActionCreate, ActionCreateLinked, ActionUpdate, ActionReinforce, ActionSupersede:
		return true
	}
	return false
}

// SimilarityCandidate is one externally computed vector-search hit fed to
// the gate alongside new content.
type SimilarityCandidate struct {
	MemoryID   uuid.UUID `json:"memory_id"`
	Similarity float64   `json:"similarity"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// ContradictionResult describes a detected textual contradiction between
// an existing memory and would-be-written content.
type ContradictionResult struct {
	Found          bool     `json:"found"`
	Type           string   `json:"type,omitempty"` // absolute, polarity, toggle
	ExistingTerm   string   `json:"existing_term,omitempty"`
	NewTerm        string   `json:"new_term,omitempty"`
	SharedKeywords []string `json:"shared_keywords,omitempty"`
}

// GateDecision is the gate's verdict. The gate has no side effects beyond
// the audit log; the caller acts on the returned action.
type GateDecision struct {
	Action        ConflictAction       `json:"action"`
	Reason        string               `json:"reason"`
	Candidate     *uuid.UUID           `json:"candidate,omitempty"`
	Similarity    float64              `json:"similarity"`
	RelatedIDs    []uuid.UUID          `json:"related_ids,omitempty"`
	Contradiction *ContradictionResult `json:"contradiction,omitempty"`
}

// ConflictRecord is an append-only audit entry for a gate decision. It is
// never mutated after creation.
type ConflictRecord struct {
	ID              uuid.UUID      `json:"id"`
	Action          ConflictAction `json:"action"`
	NewPreview      string         `json:"new_preview"`
	ExistingID      *uuid.UUID     `json:"existing_id,omitempty"`
	ExistingPreview string         `json:"existing_preview,omitempty"`
	Similarity      float64        `json:"similarity"`
	Reason          string         `json:"reason"`
	Contradiction   bool           `json:"contradiction"`
	Scope           string         `json:"scope,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
