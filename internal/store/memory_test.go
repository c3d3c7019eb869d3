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

func TestMemoryStore_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	reviewed := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	hl := 14.0
	m := seedMemory(t, s, func(m *domain.Memory) {
		m.Summary = "just, not make"
		m.Stability = 12.5
		m.HalfLifeDays = &hl
		m.LastReviewedAt = &reviewed
		m.TriggerPhrases = []string{"build", "makefile"}
		m.Fingerprint = "fp-1"
	})

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Title, got.Title)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, domain.KindDeclarative, got.Kind)
	assert.Equal(t, domain.TierNormal, got.Tier)
	assert.InDelta(t, 12.5, got.Stability, 0.0001)
	assert.InDelta(t, 5.0, got.Difficulty, 0.0001, "unset difficulty defaults to midpoint")
	require.NotNil(t, got.HalfLifeDays)
	assert.InDelta(t, 14.0, *got.HalfLifeDays, 0.0001)
	require.NotNil(t, got.LastReviewedAt)
	assert.True(t, got.LastReviewedAt.Equal(reviewed))
	assert.Equal(t, []string{"build", "makefile"}, got.TriggerPhrases)
	assert.False(t, got.Archived)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)

	_, err := s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateSchedule(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	m := seedMemory(t, s, nil)
	now := time.Now()
	require.NoError(t, s.UpdateSchedule(ctx, m.ID, 7.5, 4.5, now))
	require.NoError(t, s.UpdateSchedule(ctx, m.ID, 9.0, 4.0, now))

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got.Stability, 0.0001)
	assert.InDelta(t, 4.0, got.Difficulty, 0.0001)
	assert.Equal(t, 2, got.ReviewCount)
	require.NotNil(t, got.LastReviewedAt)
}

func TestMemoryStore_RecordAccess(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	m := seedMemory(t, s, nil)
	require.NoError(t, s.RecordAccess(ctx, m.ID))
	require.NoError(t, s.RecordAccess(ctx, m.ID))

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.NotNil(t, got.LastAccessedAt)

	assert.ErrorIs(t, s.RecordAccess(ctx, uuid.New()), ErrNotFound)
}

func TestMemoryStore_ArchiveAndUnarchive(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	m := seedMemory(t, s, nil)
	require.NoError(t, s.Archive(ctx, m.ID, false))

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.NotNil(t, got.ArchivedAt)

	require.NoError(t, s.Unarchive(ctx, m.ID))
	got, err = s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Archived)
	assert.Nil(t, got.ArchivedAt)
	assert.NotNil(t, got.LastAccessedAt, "unarchive refreshes the idle clock")
}

func TestMemoryStore_ListArchiveCandidates(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()
	policy := domain.DefaultArchivalPolicy()

	oldest := seedMemory(t, s, func(m *domain.Memory) { m.CreatedAt = daysAgo(200) })
	older := seedMemory(t, s, func(m *domain.Memory) { m.CreatedAt = daysAgo(100) })
	seedMemory(t, s, nil) // fresh
	seedMemory(t, s, func(m *domain.Memory) {
		m.CreatedAt = daysAgo(200)
		m.Tier = domain.TierCritical
	})
	recentAccess := daysAgo(5)
	seedMemory(t, s, func(m *domain.Memory) {
		m.CreatedAt = daysAgo(200)
		m.LastAccessedAt = &recentAccess
	})
	archived := seedMemory(t, s, func(m *domain.Memory) { m.CreatedAt = daysAgo(200) })
	require.NoError(t, s.Archive(ctx, archived.ID, false))

	got, err := s.ListArchiveCandidates(ctx, policy, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, oldest.ID, got[0].ID, "oldest idle first")
	assert.Equal(t, older.ID, got[1].ID)

	limited, err := s.ListArchiveCandidates(ctx, policy, time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldest.ID, limited[0].ID)
}

func TestMemoryStore_ListReplayCandidates(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	episodic := seedMemory(t, s, func(m *domain.Memory) {
		m.Kind = domain.KindEpisodic
		m.CreatedAt = daysAgo(10)
	})
	seedMemory(t, s, func(m *domain.Memory) { m.CreatedAt = daysAgo(10) }) // declarative
	seedMemory(t, s, func(m *domain.Memory) {
		m.Kind = domain.KindEpisodic
		m.Tier = domain.TierDeprecated
		m.CreatedAt = daysAgo(10)
	})
	seedMemory(t, s, func(m *domain.Memory) {
		m.Kind = domain.KindEpisodic
		m.CreatedAt = daysAgo(10)
		m.Scope = "other-scope"
	})

	got, err := s.ListReplayCandidates(ctx, daysAgo(7), "repo-x", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, episodic.ID, got[0].ID)

	all, err := s.ListReplayCandidates(ctx, daysAgo(7), "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore_Stats(t *testing.T) {
	db := newTestDB(t)
	s := NewMemoryStore(db)
	ctx := context.Background()

	seedMemory(t, s, nil)
	seedMemory(t, s, func(m *domain.Memory) { m.Tier = domain.TierImportant })
	archived := seedMemory(t, s, nil)
	require.NoError(t, s.Archive(ctx, archived.ID, false))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Archived)
	assert.Equal(t, 2, stats.ByTier[string(domain.TierNormal)])
	assert.Equal(t, 1, stats.ByTier[string(domain.TierImportant)])
	assert.Equal(t, 3, stats.ByKind[string(domain.KindDeclarative)])
	assert.NotNil(t, stats.OldestIdle)
}
