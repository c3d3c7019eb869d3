package store

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedMemory(t *testing.T, s *MemoryStore, mutate func(*domain.Memory)) *domain.Memory {
	t.Helper()

	m := &domain.Memory{
		Title:   "build uses just, not make",
		Content: "This repository is built with just; the Makefile is vestigial.",
		Kind:    domain.KindDeclarative,
		Tier:    domain.TierNormal,
		Scope:   "repo-x",
	}
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, s.Create(context.Background(), m))
	return m
}

func daysAgo(n int) time.Time {
	return time.Now().Add(-time.Duration(n) * 24 * time.Hour)
}
