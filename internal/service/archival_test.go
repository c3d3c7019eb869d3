package service

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) seedIdleMemory(t *testing.T, mutate func(*domain.Memory)) *domain.Memory {
	t.Helper()
	return env.seedMemory(t, func(m *domain.Memory) {
		m.CreatedAt = time.Now().Add(-100 * 24 * time.Hour)
		if mutate != nil {
			mutate(m)
		}
	})
}

func TestRunScan_ArchivesIdleMemories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idle := env.seedIdleMemory(t, nil)
	fresh := env.seedMemory(t, nil)
	protected := env.seedIdleMemory(t, func(m *domain.Memory) {
		m.Tier = domain.TierConstitutional
		m.Kind = domain.KindConstitutional
	})

	result, err := env.engine.Archival.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 0, result.Failed)

	stored, err := env.memories.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, stored.Archived)
	assert.NotNil(t, stored.ArchivedAt)

	for _, m := range []*domain.Memory{fresh, protected} {
		stored, err := env.memories.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, stored.Archived)
	}
}

func TestRunScan_LogOnlyTouchesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ArchivalAction = config.ArchiveLogOnly
	ctx := context.Background()

	idle := env.seedIdleMemory(t, nil)

	result, err := env.engine.Archival.RunScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.Archived)
	assert.Equal(t, 1, result.Skipped)

	stored, err := env.memories.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.False(t, stored.Archived)
}

func TestRunScan_UpdatesCumulativeStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedIdleMemory(t, nil)
	env.seedIdleMemory(t, nil)

	_, err := env.engine.Archival.RunScan(ctx)
	require.NoError(t, err)
	_, err = env.engine.Archival.RunScan(ctx)
	require.NoError(t, err)

	stats := env.engine.Archival.Stats()
	assert.Equal(t, int64(2), stats.Scans)
	assert.Equal(t, int64(2), stats.TotalArchived)
	assert.Equal(t, 0, stats.LastBatchSize, "second scan finds nothing left")
	assert.False(t, stats.LastScanAt.IsZero())
}

func TestRunScan_RejectedWhileInFlight(t *testing.T) {
	env := newTestEnv(t)

	env.engine.Archival.running.Store(true)
	defer env.engine.Archival.running.Store(false)

	_, err := env.engine.Archival.RunScan(context.Background())
	assert.Error(t, err)
}

func TestCheck_Reasons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idle := env.seedIdleMemory(t, nil)
	ok, reason, err := env.engine.Archival.Check(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, reason, "inactive")

	fresh := env.seedMemory(t, nil)
	ok, reason, err = env.engine.Archival.Check(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "active")

	protected := env.seedIdleMemory(t, func(m *domain.Memory) {
		m.Tier = domain.TierCritical
		m.Kind = domain.KindCritical
	})
	ok, reason, err = env.engine.Archival.Check(ctx, protected.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "exempt")
}

func TestUnarchive_RestoresAndResetsIdleClock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idle := env.seedIdleMemory(t, nil)
	_, err := env.engine.Archival.RunScan(ctx)
	require.NoError(t, err)

	require.NoError(t, env.engine.Archival.Unarchive(ctx, idle.ID))

	stored, err := env.memories.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.False(t, stored.Archived)
	assert.Nil(t, stored.ArchivedAt)

	// The restored memory must not requalify on the next scan.
	ok, _, err := env.engine.Archival.Check(ctx, idle.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifierAndArchivalShareInactivityRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idle := env.seedIdleMemory(t, nil)

	// The classifier already reports the memory as archived before the
	// scan has run.
	state := env.engine.Classifier.ClassifyState(idle, time.Now())
	assert.Equal(t, domain.StateArchived, state)

	ok, _, err := env.engine.Archival.Check(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
