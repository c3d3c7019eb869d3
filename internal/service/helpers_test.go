package service

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	cfg         *config.Config
	db          *store.DB
	memories    *store.MemoryStore
	relations   *store.RelationStore
	entries     *store.WorkingMemoryStore
	conflicts   *store.ConflictStore
	checkpoints *store.CheckpointStore
	engine      *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	return &testEnv{
		cfg:         cfg,
		db:          db,
		memories:    store.NewMemoryStore(db),
		relations:   store.NewRelationStore(db),
		entries:     store.NewWorkingMemoryStore(db),
		conflicts:   store.NewConflictStore(db),
		checkpoints: store.NewCheckpointStore(db),
		engine:      NewEngine(db, cfg, zap.NewNop()),
	}
}

// seedMemory inserts a live episodic memory and applies any overrides
// before writing.
func (env *testEnv) seedMemory(t *testing.T, mutate func(*domain.Memory)) *domain.Memory {
	t.Helper()

	m := &domain.Memory{
		Title:   "prefers table-driven tests",
		Content: "The user prefers table-driven tests for all new Go code.",
		Kind:    domain.KindEpisodic,
		Tier:    domain.TierNormal,
		Scope:   "project-a",
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, env.memories.Create(context.Background(), m))
	return m
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }
