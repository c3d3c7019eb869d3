package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/store"
	"go.uber.org/zap"
)

// ActivationHint carries the retrieval outcome that triggered an
// activation, used to infer a review grade for the testing effect.
type ActivationHint struct {
	Similarity float64
}

// AttentionService owns per-session activation scoring: decay sweeps,
// activation with testing-effect reinforcement, spreading activation and
// session scoring.
type AttentionService struct {
	wm         *WorkingMemoryService
	memories   domain.MemoryStore
	relations  domain.RelationStore
	classifier *Classifier
	cfg        *config.Config
	logger     *zap.Logger

	mu      sync.Mutex
	anchors map[string][]string    // per-session query terms for composite scoring
	spreads map[spreadKey]struct{} // (session, memory, turn) guard
}

type spreadKey struct {
	sessionID string
	memoryID  uuid.UUID
	turn      int
}

func NewAttentionService(
	wm *WorkingMemoryService,
	memories domain.MemoryStore,
	relations domain.RelationStore,
	classifier *Classifier,
	cfg *config.Config,
	logger *zap.Logger,
) *AttentionService {
	return &AttentionService{
		wm:         wm,
		memories:   memories,
		relations:  relations,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		anchors:    make(map[string][]string),
		spreads:    make(map[spreadKey]struct{}),
	}
}

// SetQueryAnchors records the active query terms for a session, the
// query-pattern factor of composite scoring.
func (s *AttentionService) SetQueryAnchors(sessionID string, terms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}
	s.anchors[sessionID] = normalized
}

// ScoreSession returns the currently servable subset of a session's
// working memory: session scores act as precomputed retrievability and the
// classifier applies the state ladder and per-state caps.
func (s *AttentionService) ScoreSession(ctx context.Context, sessionID string) ([]domain.ScoredMemory, error) {
	entries, err := s.wm.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	memories := make([]domain.Memory, 0, len(entries))
	for _, e := range entries {
		m, err := s.memories.GetByID(ctx, e.MemoryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // entry outlived its memory; read paths degrade, never fail
			}
			return nil, err
		}
		score := e.Score
		m.Retrievability = &score
		memories = append(memories, *m)
	}
	return s.classifier.FilterAndLimit(memories, now), nil
}

// Activate handles an access event: resets the session entry to full
// attention, records durable access, applies the testing effect when an
// outcome hint is present, and cascades spreading activation.
func (s *AttentionService) Activate(ctx context.Context, sessionID string, memoryID uuid.UUID, turn int, hint *ActivationHint) (*domain.WorkingMemoryEntry, error) {
	entry, err := s.wm.SetAttentionScore(ctx, sessionID, memoryID, 1.0, turn)
	if err != nil {
		return nil, err
	}

	if err := s.memories.RecordAccess(ctx, memoryID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to record memory access",
			zap.String("memory_id", memoryID.String()),
			zap.Error(err))
	}

	if hint != nil {
		s.reinforce(ctx, memoryID, hint.Similarity)
	}

	if _, err := s.Spread(ctx, sessionID, memoryID, turn); err != nil {
		s.logger.Warn("spreading activation failed",
			zap.String("memory_id", memoryID.String()),
			zap.Error(err))
	}
	return entry, nil
}

// reinforce applies the testing effect: a grade inferred from search
// similarity updates the durable FSRS schedule, so memories that were hard
// to retrieve but succeeded get the largest stability boost.
func (s *AttentionService) reinforce(ctx context.Context, memoryID uuid.UUID, similarity float64) {
	m, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		s.logger.Warn("reinforcement lookup failed",
			zap.String("memory_id", memoryID.String()),
			zap.Error(err))
		return
	}

	stability := m.Stability
	if stability <= 0 {
		stability = 1.0
	}
	now := time.Now()
	r := Retrievability(stability, daysSince(m.LastTouchedAt(), now))
	grade := GradeFromSimilarity(similarity)

	newStability := UpdateStability(stability, m.Difficulty, r, grade)
	newDifficulty := UpdateDifficulty(m.Difficulty, grade)

	if err := s.memories.UpdateSchedule(ctx, memoryID, newStability, newDifficulty, now); err != nil {
		s.logger.Warn("failed to update schedule",
			zap.String("memory_id", memoryID.String()),
			zap.Error(err))
		return
	}
	s.logger.Debug("testing effect applied",
		zap.String("memory_id", memoryID.String()),
		zap.Int("grade", int(grade)),
		zap.Float64("stability", newStability))
}

// Decay runs one sweep over a session, lowering every entry's attention
// score per the configured mode, and applies the result as a single
// transaction. Returns the number of entries updated.
func (s *AttentionService) Decay(ctx context.Context, sessionID string) (int, error) {
	entries, err := s.wm.Entries(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	now := time.Now()
	scores := make(map[uuid.UUID]float64, len(entries))
	for _, e := range entries {
		m, err := s.memories.GetByID(ctx, e.MemoryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				m = &domain.Memory{ID: e.MemoryID, Tier: domain.TierNormal}
			} else {
				return 0, err
			}
		}
		scores[e.MemoryID] = s.decayedScore(sessionID, &e, m, now)
	}
	return s.wm.ApplyScores(ctx, sessionID, scores)
}

func (s *AttentionService) decayedScore(sessionID string, e *domain.WorkingMemoryEntry, m *domain.Memory, now time.Time) float64 {
	switch s.cfg.DecayMode {
	case config.DecayFSRS:
		stability := m.Stability
		if stability <= 0 {
			stability = 1.0
		}
		return clamp(e.Score*Retrievability(stability, daysSince(e.UpdatedAt, now)), 0, 1)
	case config.DecayComposite:
		return s.compositeScore(sessionID, m, now)
	default:
		return clamp(e.Score*domain.TierDecayRate(m.Tier), 0, 1)
	}
}

// compositeScore blends the five scoring factors: temporal retrievability,
// usage saturation, tier importance, query-pattern alignment and citation
// recency.
func (s *AttentionService) compositeScore(sessionID string, m *domain.Memory, now time.Time) float64 {
	temporal := s.classifier.Retrievability(m, now)

	usage := float64(m.AccessCount) / float64(s.cfg.UsageCap)
	if usage > 1 {
		usage = 1
	}

	importance := domain.TierWeight(m.Tier)
	query := s.queryAlignment(sessionID, m)

	var citation float64
	if m.LastAccessedAt != nil {
		citation = clamp(1-daysSince(*m.LastAccessedAt, now)/30, 0, 1)
	}

	score := s.cfg.TemporalWeight*temporal +
		s.cfg.UsageWeight*usage +
		s.cfg.TierWeight*importance +
		s.cfg.QueryWeight*query +
		s.cfg.CitationWeight*citation
	return clamp(score, 0, 1)
}

// queryAlignment is the fraction of the session's anchor terms that occur
// in the memory's title or trigger phrases.
func (s *AttentionService) queryAlignment(sessionID string, m *domain.Memory) float64 {
	s.mu.Lock()
	anchors := s.anchors[sessionID]
	s.mu.Unlock()
	if len(anchors) == 0 {
		return 0
	}

	haystack := strings.ToLower(m.Title + " " + strings.Join(m.TriggerPhrases, " "))
	matched := 0
	for _, term := range anchors {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(anchors))
}
