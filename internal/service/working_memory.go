package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrInvalidSession = errors.New("session id is required")
	ErrInvalidScore   = errors.New("attention score must lie in [0,1]")
	ErrInvalidTurn    = errors.New("turn must be non-negative")
)

// WorkingMemoryService is the per-session activation table surface. Every
// score it writes carries a cached state label recomputed from the score
// so readers never re-derive it.
type WorkingMemoryService struct {
	entries    domain.WorkingMemoryStore
	classifier *Classifier
	cfg        *config.Config
	logger     *zap.Logger
}

func NewWorkingMemoryService(entries domain.WorkingMemoryStore, classifier *Classifier, cfg *config.Config, logger *zap.Logger) *WorkingMemoryService {
	return &WorkingMemoryService{
		entries:    entries,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetAttentionScore upserts the (session, memory) row and evicts the
// lowest-scoring entries beyond the per-session ceiling.
func (s *WorkingMemoryService) SetAttentionScore(ctx context.Context, sessionID string, memoryID uuid.UUID, score float64, turn int) (*domain.WorkingMemoryEntry, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	if memoryID == uuid.Nil {
		return nil, fmt.Errorf("memory id is required")
	}
	if score < 0 || score > 1 {
		return nil, ErrInvalidScore
	}
	if turn < 0 {
		return nil, ErrInvalidTurn
	}

	entry := &domain.WorkingMemoryEntry{
		SessionID: sessionID,
		MemoryID:  memoryID,
		Score:     score,
		State:     s.classifier.StateForScore(score),
		LastTurn:  turn,
	}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	evicted, err := s.entries.EvictOverflow(ctx, sessionID, s.cfg.MaxSessionEntries)
	if err != nil {
		s.logger.Warn("working memory eviction failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	} else if evicted > 0 {
		s.logger.Debug("evicted working memory overflow",
			zap.String("session_id", sessionID),
			zap.Int64("evicted", evicted))
	}
	return entry, nil
}

func (s *WorkingMemoryService) Get(ctx context.Context, sessionID string, memoryID uuid.UUID) (*domain.WorkingMemoryEntry, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return s.entries.Get(ctx, sessionID, memoryID)
}

// Entries returns a session's rows sorted by descending score.
func (s *WorkingMemoryService) Entries(ctx context.Context, sessionID string) ([]domain.WorkingMemoryEntry, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return s.entries.ListBySession(ctx, sessionID)
}

// Summary returns the session summary; a session with no entries yields a
// zero summary rather than an error.
func (s *WorkingMemoryService) Summary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return s.entries.SessionSummary(ctx, sessionID)
}

// ApplyScores runs a batched score update in one transaction, recomputing
// each entry's cached state label.
func (s *WorkingMemoryService) ApplyScores(ctx context.Context, sessionID string, scores map[uuid.UUID]float64) (int, error) {
	if sessionID == "" {
		return 0, ErrInvalidSession
	}
	updates := make([]domain.ScoreUpdate, 0, len(scores))
	for id, score := range scores {
		if score < 0 || score > 1 {
			return 0, ErrInvalidScore
		}
		updates = append(updates, domain.ScoreUpdate{
			MemoryID: id,
			Score:    score,
			State:    s.classifier.StateForScore(score),
		})
	}
	return s.entries.BatchSetScores(ctx, sessionID, updates)
}

func (s *WorkingMemoryService) Clear(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, ErrInvalidSession
	}
	return s.entries.ClearSession(ctx, sessionID)
}

// Cleanup drops sessions idle past the configured timeout.
func (s *WorkingMemoryService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.SessionTimeout)
	removed, err := s.entries.CleanupSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("cleaned up stale working memory sessions",
			zap.Int64("entries_removed", removed))
	}
	return removed, nil
}
