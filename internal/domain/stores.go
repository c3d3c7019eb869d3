package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScoreUpdate is one element of a batched working-memory score sweep.
type ScoreUpdate struct {
	MemoryID uuid.UUID
	Score    float64
	State    MemoryState
}

// MemoryStore persists durable memory records.
type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, id uuid.UUID) (*Memory, error)
	Update(ctx context.Context, m *Memory) error

	// Reinforcement
	UpdateSchedule(ctx context.Context, id uuid.UUID, stability, difficulty float64, reviewedAt time.Time) error
	RecordAccess(ctx context.Context, id uuid.UUID) error

	// Lifecycle transitions; records are never physically deleted.
	UpdateTier(ctx context.Context, id uuid.UUID, tier ImportanceTier) error
	Archive(ctx context.Context, id uuid.UUID, soft bool) error
	Unarchive(ctx context.Context, id uuid.UUID) error

	// Batch selection
	ListArchiveCandidates(ctx context.Context, policy ArchivalPolicy, now time.Time, limit int) ([]Memory, error)
	ListReplayCandidates(ctx context.Context, olderThan time.Time, scope string, limit int) ([]Memory, error)
	ListStrengthenCandidates(ctx context.Context, minAccess int, reviewedBefore time.Time) ([]Memory, error)

	Stats(ctx context.Context) (*MemoryStats, error)
}

// RelationStore is the non-owning adjacency list of weak memory
// relations used by spreading activation.
type RelationStore interface {
	Link(ctx context.Context, from, to uuid.UUID) error
	Unlink(ctx context.Context, from, to uuid.UUID) error
	Related(ctx context.Context, id uuid.UUID, limit int) ([]uuid.UUID, error)
}

// WorkingMemoryStore persists the per-session activation table.
type WorkingMemoryStore interface {
	Upsert(ctx context.Context, e *WorkingMemoryEntry) error
	Get(ctx context.Context, sessionID string, memoryID uuid.UUID) (*WorkingMemoryEntry, error)
	ListBySession(ctx context.Context, sessionID string) ([]WorkingMemoryEntry, error)

	// BatchSetScores applies a decay sweep in a single transaction so the
	// sweep is atomic with respect to concurrent readers.
	BatchSetScores(ctx context.Context, sessionID string, updates []ScoreUpdate) (int, error)

	SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	ClearSession(ctx context.Context, sessionID string) (int64, error)
	CleanupSessions(ctx context.Context, olderThan time.Time) (int64, error)
	EvictOverflow(ctx context.Context, sessionID string, maxEntries int) (int64, error)
}

// ConflictStore is the append-only audit log of gate decisions.
type ConflictStore interface {
	Append(ctx context.Context, r *ConflictRecord) error
	ListRecent(ctx context.Context, limit int) ([]ConflictRecord, error)
}

// Checkpointer is the backup primitive the consolidation Prune phase
// calls before mutating records en masse.
type Checkpointer interface {
	Create(ctx context.Context, name string, metadata map[string]string) (uuid.UUID, error)
	Restore(ctx context.Context, id uuid.UUID) error
}
