package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(sessionID string, score float64) *domain.WorkingMemoryEntry {
	return &domain.WorkingMemoryEntry{
		SessionID: sessionID,
		MemoryID:  uuid.New(),
		Score:     score,
		State:     domain.StateWarm,
		LastTurn:  1,
	}
}

func TestWorkingMemoryStore_UpsertKeepsCreatedAt(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)
	ctx := context.Background()

	e := entry("s", 0.5)
	e.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Upsert(ctx, e))

	update := *e
	update.Score = 0.8
	update.CreatedAt = time.Time{}
	require.NoError(t, s.Upsert(ctx, &update))

	got, err := s.Get(ctx, "s", e.MemoryID)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Score, 0.0001)
	assert.True(t, got.CreatedAt.Equal(e.CreatedAt), "conflict path must preserve created_at")
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestWorkingMemoryStore_GetMissing(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)

	_, err := s.Get(context.Background(), "s", uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkingMemoryStore_ListSortedByScore(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, entry("s", 0.2)))
	require.NoError(t, s.Upsert(ctx, entry("s", 0.9)))
	require.NoError(t, s.Upsert(ctx, entry("s", 0.5)))
	require.NoError(t, s.Upsert(ctx, entry("other", 1.0)))

	got, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.9, got[0].Score, 0.0001)
	assert.InDelta(t, 0.5, got[1].Score, 0.0001)
	assert.InDelta(t, 0.2, got[2].Score, 0.0001)
}

func TestWorkingMemoryStore_BatchSetScores(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)
	ctx := context.Background()

	a := entry("s", 0.9)
	b := entry("s", 0.8)
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))

	applied, err := s.BatchSetScores(ctx, "s", []domain.ScoreUpdate{
		{MemoryID: a.MemoryID, Score: 0.45, State: domain.StateWarm},
		{MemoryID: b.MemoryID, Score: 0.03, State: domain.StateDormant},
		{MemoryID: uuid.New(), Score: 0.5, State: domain.StateWarm}, // no such row
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	got, err := s.Get(ctx, "s", b.MemoryID)
	require.NoError(t, err)
	assert.InDelta(t, 0.03, got.Score, 0.0001)
	assert.Equal(t, domain.StateDormant, got.State)
}

func TestWorkingMemoryStore_EvictOverflow(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)
	ctx := context.Background()

	scores := []float64{0.1, 0.9, 0.5, 0.7, 0.3}
	for _, score := range scores {
		require.NoError(t, s.Upsert(ctx, entry("s", score)))
	}

	evicted, err := s.EvictOverflow(ctx, "s", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), evicted)

	got, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.9, got[0].Score, 0.0001)
	assert.InDelta(t, 0.3, got[2].Score, 0.0001)
}

func TestWorkingMemoryStore_CleanupSessions(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)
	ctx := context.Background()

	stale := entry("stale", 0.5)
	require.NoError(t, s.Upsert(ctx, stale))
	// Backdate the stale session's activity.
	_, err := db.ExecContext(ctx,
		`UPDATE working_memory SET updated_at = ? WHERE session_id = 'stale'`,
		time.Now().Add(-80*time.Hour).Unix())
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, entry("fresh", 0.5)))

	removed, err := s.CleanupSessions(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.Get(ctx, "stale", stale.MemoryID)
	assert.ErrorIs(t, err, ErrNotFound)

	summary, err := s.SessionSummary(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntryCount)
}

func TestWorkingMemoryStore_SessionSummaryEmpty(t *testing.T) {
	db := newTestDB(t)
	s := NewWorkingMemoryStore(db)

	summary, err := s.SessionSummary(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EntryCount)
	assert.True(t, summary.LastActivityAt.IsZero())
}
