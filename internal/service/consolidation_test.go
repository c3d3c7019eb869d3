package service

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) seedReplayCandidate(t *testing.T, mutate func(*domain.Memory)) *domain.Memory {
	t.Helper()
	return env.seedMemory(t, func(m *domain.Memory) {
		m.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
		if mutate != nil {
			mutate(m)
		}
	})
}

func TestReplay_SelectsOldEpisodicOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := env.seedReplayCandidate(t, nil)
	env.seedMemory(t, nil) // fresh, too young
	env.seedReplayCandidate(t, func(m *domain.Memory) { m.Kind = domain.KindSemantic })
	env.seedReplayCandidate(t, func(m *domain.Memory) {
		m.Tier = domain.TierCritical
		m.Kind = domain.KindCritical
	})

	candidates, err := env.engine.Consolidation.Replay(ctx, DefaultConsolidationOptions())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, old.ID, candidates[0].ID)
}

func TestReplay_ScopeFilter(t *testing.T) {
	env := newTestEnv(t)

	env.seedReplayCandidate(t, func(m *domain.Memory) { m.Scope = "project-a" })
	env.seedReplayCandidate(t, func(m *domain.Memory) { m.Scope = "project-b" })

	opts := DefaultConsolidationOptions()
	opts.Scope = "project-b"
	candidates, err := env.engine.Consolidation.Replay(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "project-b", candidates[0].Scope)
}

func TestAbstract_ExactDuplicatesFormOnePattern(t *testing.T) {
	env := newTestEnv(t)

	var members []domain.Memory
	for i := 0; i < 3; i++ {
		m := env.seedReplayCandidate(t, func(m *domain.Memory) {
			m.Fingerprint = "fp-identical"
			m.AccessCount = i * 5
		})
		members = append(members, *m)
	}

	patterns := env.engine.Consolidation.Abstract(members)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, domain.PatternExactDuplicate, p.Kind)
	assert.Equal(t, 3, p.Occurrences)
	assert.InDelta(t, 1.0, p.Strength, 0.0001)
	// The most-accessed member represents the group.
	assert.Equal(t, members[2].ID, p.Representative)
}

func TestAbstract_TriggerOverlapPattern(t *testing.T) {
	env := newTestEnv(t)

	a := env.seedReplayCandidate(t, func(m *domain.Memory) {
		m.TriggerPhrases = []string{"deploy", "staging", "rollback", "canary"}
	})
	b := env.seedReplayCandidate(t, func(m *domain.Memory) {
		m.TriggerPhrases = []string{"deploy", "staging", "rollback"}
	})
	env.seedReplayCandidate(t, func(m *domain.Memory) {
		m.TriggerPhrases = []string{"entirely", "different"}
	})

	patterns := env.engine.Consolidation.Abstract([]domain.Memory{*a, *b})
	require.Len(t, patterns, 1)
	assert.Equal(t, domain.PatternTriggerOverlap, patterns[0].Kind)
	assert.Equal(t, 2, patterns[0].Occurrences)
	assert.Less(t, patterns[0].Strength, 1.0)
}

func TestAbstract_BelowMinOccurrencesIgnored(t *testing.T) {
	env := newTestEnv(t)

	lone := env.seedReplayCandidate(t, func(m *domain.Memory) { m.Fingerprint = "fp-lonely" })
	patterns := env.engine.Consolidation.Abstract([]domain.Memory{*lone})
	assert.Empty(t, patterns)
}

func TestRun_DryRunByDefaultMakesNoChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.seedReplayCandidate(t, func(m *domain.Memory) {
			m.Fingerprint = "fp-dup"
			m.AccessCount = 10
		})
	}

	report, err := env.engine.Consolidation.Run(ctx, DefaultConsolidationOptions())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Replayed)
	assert.Equal(t, 1, report.Patterns)
	assert.Equal(t, 1, report.Integrate.WouldCreate)
	assert.Equal(t, 0, report.Integrate.Created)
	assert.Equal(t, 2, report.Prune.WouldDeprecate)
	assert.Equal(t, 0, report.Prune.Deprecated)

	stats, err := env.memories.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0, stats.ByTier[string(domain.TierDeprecated)])
}

func TestRun_LiveIntegratesAndPrunes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var members []*domain.Memory
	for i := 0; i < 3; i++ {
		members = append(members, env.seedReplayCandidate(t, func(m *domain.Memory) {
			m.Fingerprint = "fp-dup"
			m.AccessCount = 10
			m.TriggerPhrases = []string{"deploy checklist"}
		}))
	}

	opts := ConsolidationOptions{DryRun: false, CreateBackup: true}
	report, err := env.engine.Consolidation.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Integrate.Created)
	assert.Equal(t, 2, report.Prune.Deprecated)
	require.NotNil(t, report.Prune.BackupID)

	// One new semantic memory linked to every member.
	require.Len(t, report.Integrate.CreatedIDs, 1)
	created, err := env.memories.GetByID(ctx, report.Integrate.CreatedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.KindSemantic, created.Kind)
	assert.Contains(t, created.Title, "Consolidated:")
	assert.Equal(t, []string{"deploy checklist"}, created.TriggerPhrases)

	linked, err := env.relations.Related(ctx, created.ID, 10)
	require.NoError(t, err)
	assert.Len(t, linked, 3)

	// Exactly one original member survives at its original tier.
	survivors := 0
	for _, m := range members {
		stored, err := env.memories.GetByID(ctx, m.ID)
		require.NoError(t, err)
		if stored.Tier != domain.TierDeprecated {
			survivors++
		}
	}
	assert.Equal(t, 1, survivors)
}

func TestRun_RestoreUndoesPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		env.seedReplayCandidate(t, func(m *domain.Memory) {
			m.Fingerprint = "fp-dup"
			m.AccessCount = 20
		})
	}

	report, err := env.engine.Consolidation.Run(ctx, ConsolidationOptions{DryRun: false, CreateBackup: true})
	require.NoError(t, err)
	require.NotNil(t, report.Prune.BackupID)
	require.Equal(t, 1, report.Prune.Deprecated)

	require.NoError(t, env.checkpoints.Restore(ctx, *report.Prune.BackupID))

	stats, err := env.memories.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ByTier[string(domain.TierDeprecated)])
}

func TestStrengthen_BoostsHighUseMemories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	boosted := env.seedMemory(t, func(m *domain.Memory) {
		m.Stability = 5
		m.AccessCount = 10
	})
	env.seedMemory(t, func(m *domain.Memory) { m.AccessCount = 2 }) // below min access
	recent := env.seedMemory(t, func(m *domain.Memory) {
		m.Stability = 5
		m.AccessCount = 10
		m.LastReviewedAt = timePtr(time.Now())
	})

	result, err := env.engine.Consolidation.Strengthen(ctx, ConsolidationOptions{DryRun: false})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Strengthened)

	stored, err := env.memories.GetByID(ctx, boosted.ID)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, stored.Stability, 0.0001)
	assert.Equal(t, 1, stored.ReviewCount)

	unchanged, err := env.memories.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5, unchanged.Stability, 0.0001)
}

func TestStrengthen_DryRunCountsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.seedMemory(t, func(m *domain.Memory) {
		m.Stability = 5
		m.AccessCount = 10
	})

	result, err := env.engine.Consolidation.Strengthen(ctx, DefaultConsolidationOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.WouldStrengthen)
	assert.Equal(t, 0, result.Strengthened)

	stored, err := env.memories.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5, stored.Stability, 0.0001)
}

func TestRun_SecondRunRejectedWhileInFlight(t *testing.T) {
	env := newTestEnv(t)

	env.engine.Consolidation.running.Store(true)
	defer env.engine.Consolidation.running.Store(false)

	_, err := env.engine.Consolidation.Run(context.Background(), DefaultConsolidationOptions())
	assert.Error(t, err)
}
