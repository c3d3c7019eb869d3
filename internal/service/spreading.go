package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/store"
	"go.uber.org/zap"
)

// Spread boosts the session scores of memories related to a just-activated
// primary. The (session, memory, turn) guard ensures each memory is
// boosted at most once per turn, which bounds cyclic relation graphs
// (A -> B -> A) to a single pass. Returns the number of memories boosted.
func (s *AttentionService) Spread(ctx context.Context, sessionID string, primary uuid.UUID, turn int) (int, error) {
	if !s.markSpread(sessionID, primary, turn) {
		return 0, nil // same cascade already ran this turn
	}

	related, err := s.relations.Related(ctx, primary, s.cfg.SpreadFanout)
	if err != nil {
		return 0, err
	}

	boosted := 0
	for _, id := range related {
		if !s.markSpread(sessionID, id, turn) {
			continue
		}

		score := s.cfg.SpreadBoost
		entry, err := s.wm.Get(ctx, sessionID, id)
		switch {
		case err == nil:
			score = clamp(entry.Score+s.cfg.SpreadBoost, 0, 1)
		case errors.Is(err, store.ErrNotFound):
			// no live entry; seed one at the boost value
		default:
			return boosted, err
		}

		if _, err := s.wm.SetAttentionScore(ctx, sessionID, id, score, turn); err != nil {
			return boosted, err
		}
		boosted++
	}

	if boosted > 0 {
		s.logger.Debug("spreading activation",
			zap.String("session_id", sessionID),
			zap.String("primary", primary.String()),
			zap.Int("boosted", boosted))
	}
	return boosted, nil
}

// markSpread records a guard key, returning false when the key was already
// present. Keys from earlier turns of the same session are dropped on the
// way through so the guard map stays bounded.
func (s *AttentionService) markSpread(sessionID string, memoryID uuid.UUID, turn int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := spreadKey{sessionID: sessionID, memoryID: memoryID, turn: turn}
	if _, seen := s.spreads[key]; seen {
		return false
	}
	for k := range s.spreads {
		if k.sessionID == sessionID && k.turn < turn {
			delete(s.spreads, k)
		}
	}
	s.spreads[key] = struct{}{}
	return true
}
