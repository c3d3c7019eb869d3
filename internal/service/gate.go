package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"go.uber.org/zap"
)

// GateService is the prediction-error gate: given externally computed
// similarity candidates for would-be-written content, it decides between
// create, create-linked, update, reinforce and supersede. It has no side
// effects beyond the append-only audit log; callers act on the decision.
type GateService struct {
	conflicts domain.ConflictStore
	cfg       *config.Config
	logger    *zap.Logger
}

func NewGateService(conflicts domain.ConflictStore, cfg *config.Config, logger *zap.Logger) *GateService {
	return &GateService{conflicts: conflicts, cfg: cfg, logger: logger}
}

// EvaluateWrite applies the decision table to the best candidate's
// similarity. Candidates need not be pre-sorted.
func (s *GateService) EvaluateWrite(ctx context.Context, scope, content string, candidates []domain.SimilarityCandidate) (*domain.GateDecision, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	sorted := make([]domain.SimilarityCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})

	if len(sorted) == 0 || sorted[0].Similarity < s.cfg.LinkThreshold {
		return &domain.GateDecision{
			Action: domain.ActionCreate,
			Reason: "no sufficiently similar memory exists",
		}, nil
	}

	best := sorted[0]
	decision := &domain.GateDecision{
		Candidate:  &best.MemoryID,
		Similarity: best.Similarity,
	}

	switch {
	case best.Similarity >= s.cfg.ReinforceThreshold:
		decision.Action = domain.ActionReinforce
		decision.Reason = fmt.Sprintf("near-duplicate of existing memory (similarity %.2f)", best.Similarity)

	case best.Similarity >= s.cfg.UpdateThreshold:
		contradiction := DetectContradiction(best.Content, content)
		decision.Contradiction = contradiction
		if contradiction.Found {
			decision.Action = domain.ActionSupersede
			decision.Reason = fmt.Sprintf("contradicts existing memory (%s: %q vs %q)",
				contradiction.Type, contradiction.ExistingTerm, contradiction.NewTerm)
		} else {
			decision.Action = domain.ActionUpdate
			decision.Reason = fmt.Sprintf("revision of existing memory (similarity %.2f)", best.Similarity)
		}

	default:
		decision.Action = domain.ActionCreateLinked
		decision.Reason = fmt.Sprintf("related to existing memories (similarity %.2f)", best.Similarity)
		limit := s.cfg.MaxLinkCandidates
		if limit > len(sorted) {
			limit = len(sorted)
		}
		for _, c := range sorted[:limit] {
			decision.RelatedIDs = append(decision.RelatedIDs, c.MemoryID)
		}
	}

	s.audit(ctx, scope, content, best, decision)
	return decision, nil
}

// audit appends the decision to the conflict log. Auditing is best-effort:
// a log failure must not turn a valid decision into a failed write.
func (s *GateService) audit(ctx context.Context, scope, content string, best domain.SimilarityCandidate, d *domain.GateDecision) {
	record := &domain.ConflictRecord{
		Action:          d.Action,
		NewPreview:      truncatePreview(content, s.cfg.PreviewMaxChars),
		ExistingID:      d.Candidate,
		ExistingPreview: truncatePreview(best.Content, s.cfg.PreviewMaxChars),
		Similarity:      d.Similarity,
		Reason:          d.Reason,
		Contradiction:   d.Contradiction != nil && d.Contradiction.Found,
		Scope:           scope,
	}
	if err := s.conflicts.Append(ctx, record); err != nil {
		s.logger.Warn("failed to append conflict record",
			zap.String("action", string(d.Action)),
			zap.Error(err))
	}
}

func truncatePreview(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "..."
}
