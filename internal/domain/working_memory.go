package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkingMemoryEntry is the ephemeral per-session activation row, keyed by
// (session, memory). It is upserted on every activation or decay sweep and
// dropped on session cleanup.
type WorkingMemoryEntry struct {
	SessionID string      `json:"session_id"`
	MemoryID  uuid.UUID   `json:"memory_id"`
	Score     float64     `json:"score"` // attention score in [0,1]
	State     MemoryState `json:"state"` // cached label derived from Score
	LastTurn  int         `json:"last_turn"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SessionSummary describes one working-memory session.
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	EntryCount     int       `json:"entry_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ScoredMemory is one element of a session scoring response: the serving
// decision for a single memory.
type ScoredMemory struct {
	MemoryID       uuid.UUID    `json:"memory_id"`
	State          MemoryState  `json:"state"`
	Depth          ContentDepth `json:"content_depth"`
	Retrievability float64      `json:"retrievability"`
	Content        string       `json:"content,omitempty"`
}
