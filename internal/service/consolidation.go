package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"go.uber.org/zap"
)

// ConsolidationOptions controls one pipeline run. The zero value is NOT
// the default: use DefaultConsolidationOptions, which is dry-run with
// backups on. A caller must opt in to live writes.
type ConsolidationOptions struct {
	DryRun       bool
	CreateBackup bool
	Scope        string
}

func DefaultConsolidationOptions() ConsolidationOptions {
	return ConsolidationOptions{DryRun: true, CreateBackup: true}
}

// IntegrateResult reports the Integrate phase.
type IntegrateResult struct {
	Created     int         `json:"created"`
	WouldCreate int         `json:"would_create"`
	CreatedIDs  []uuid.UUID `json:"created_ids,omitempty"`
}

// PruneResult reports the Prune phase.
type PruneResult struct {
	Deprecated     int        `json:"deprecated"`
	WouldDeprecate int        `json:"would_deprecate"`
	BackupID       *uuid.UUID `json:"backup_id,omitempty"`
}

// StrengthenResult reports the Strengthen phase.
type StrengthenResult struct {
	Strengthened    int `json:"strengthened"`
	WouldStrengthen int `json:"would_strengthen"`
}

// ConsolidationReport aggregates one full pipeline run.
type ConsolidationReport struct {
	DryRun       bool             `json:"dry_run"`
	Replayed     int              `json:"replayed"`
	Patterns     int              `json:"patterns"`
	Integrate    IntegrateResult  `json:"integrate"`
	Prune        PruneResult      `json:"prune"`
	Strengthen   StrengthenResult `json:"strengthen"`
	Duration     time.Duration    `json:"duration"`
	PatternKinds map[string]int   `json:"pattern_kinds,omitempty"`
}

const defaultConsolidationTimeout = 30 * time.Minute

// ConsolidationService runs the five-phase pipeline that promotes
// recurring episodic memories into durable semantic knowledge:
// replay -> abstract -> integrate -> prune, plus the independent
// strengthen pass.
type ConsolidationService struct {
	memories    domain.MemoryStore
	relations   domain.RelationStore
	checkpoints domain.Checkpointer
	cfg         *config.Config
	logger      *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
}

func NewConsolidationService(
	memories domain.MemoryStore,
	relations domain.RelationStore,
	checkpoints domain.Checkpointer,
	cfg *config.Config,
	logger *zap.Logger,
) *ConsolidationService {
	return &ConsolidationService{
		memories:    memories,
		relations:   relations,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger,
		interval:    cfg.ConsolidationInterval,
		stopCh:      make(chan struct{}),
	}
}

func (s *ConsolidationService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start begins the background consolidation worker. Scheduled runs opt in
// to live writes explicitly; ad-hoc callers still default to dry-run.
func (s *ConsolidationService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("consolidation worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), defaultConsolidationTimeout)
				opts := ConsolidationOptions{DryRun: false, CreateBackup: true}
				if _, err := s.Run(ctx, opts); err != nil {
					s.logger.Error("scheduled consolidation failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("consolidation worker stopped")
				return
			}
		}
	}()
}

func (s *ConsolidationService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Run executes the full pipeline, short-circuiting the replay chain when
// an earlier phase yields nothing. Strengthen runs regardless: it is
// independent of the replay chain.
func (s *ConsolidationService) Run(ctx context.Context, opts ConsolidationOptions) (*ConsolidationReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("consolidation already in flight")
	}
	defer s.running.Store(false)

	start := time.Now()
	report := &ConsolidationReport{DryRun: opts.DryRun, PatternKinds: map[string]int{}}

	candidates, err := s.Replay(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	report.Replayed = len(candidates)

	if len(candidates) > 0 {
		patterns := s.Abstract(candidates)
		report.Patterns = len(patterns)
		for _, p := range patterns {
			report.PatternKinds[string(p.Kind)]++
		}

		if len(patterns) > 0 {
			integrate, err := s.Integrate(ctx, patterns, opts)
			if err != nil {
				return nil, fmt.Errorf("integrate: %w", err)
			}
			report.Integrate = *integrate

			prune, err := s.Prune(ctx, patterns, opts)
			if err != nil {
				return nil, fmt.Errorf("prune: %w", err)
			}
			report.Prune = *prune
		}
	}

	strengthen, err := s.Strengthen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("strengthen: %w", err)
	}
	report.Strengthen = *strengthen

	report.Duration = time.Since(start)
	s.logger.Info("consolidation complete",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("replayed", report.Replayed),
		zap.Int("patterns", report.Patterns),
		zap.Int("integrated", report.Integrate.Created),
		zap.Int("pruned", report.Prune.Deprecated),
		zap.Int("strengthened", report.Strengthen.Strengthened),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Replay selects episodic memories older than the minimum age, excluding
// protected tiers, bounded by the batch size and optionally scoped.
func (s *ConsolidationService) Replay(ctx context.Context, opts ConsolidationOptions) ([]domain.Memory, error) {
	cutoff := time.Now().Add(-s.cfg.ReplayMinAge)
	return s.memories.ListReplayCandidates(ctx, cutoff, opts.Scope, s.cfg.ReplayBatchSize)
}

// Abstract groups replay candidates into recurring patterns: exact
// fingerprint duplicates first, then trigger-phrase Jaccard overlap, then
// title word overlap. Groups below the minimum occurrence count are
// discarded.
func (s *ConsolidationService) Abstract(candidates []domain.Memory) []domain.ConsolidationPattern {
	var patterns []domain.ConsolidationPattern
	grouped := make(map[uuid.UUID]bool)

	// Exact content-fingerprint duplicates are certain; strength 1.0.
	byFingerprint := map[string][]domain.Memory{}
	for _, m := range candidates {
		if m.Fingerprint != "" {
			byFingerprint[m.Fingerprint] = append(byFingerprint[m.Fingerprint], m)
		}
	}
	for _, members := range byFingerprint {
		if len(members) < s.cfg.MinOccurrences {
			continue
		}
		for _, m := range members {
			grouped[m.ID] = true
		}
		patterns = append(patterns, domain.ConsolidationPattern{
			Kind:           domain.PatternExactDuplicate,
			Members:        members,
			Representative: chooseRepresentative(members),
			Strength:       1.0,
			Occurrences:    len(members),
		})
	}

	remaining := func() []domain.Memory {
		var out []domain.Memory
		for _, m := range candidates {
			if !grouped[m.ID] {
				out = append(out, m)
			}
		}
		return out
	}

	patterns = append(patterns, s.overlapPatterns(remaining(), grouped,
		domain.PatternTriggerOverlap,
		func(a, b *domain.Memory) float64 {
			return jaccard(a.TriggerPhrases, b.TriggerPhrases)
		})...)

	patterns = append(patterns, s.overlapPatterns(remaining(), grouped,
		domain.PatternTitleOverlap,
		func(a, b *domain.Memory) float64 {
			return wordOverlap(a.Title, b.Title)
		})...)

	return patterns
}

// overlapPatterns greedily clusters memories whose pairwise similarity to
// the cluster seed meets the overlap threshold.
func (s *ConsolidationService) overlapPatterns(
	candidates []domain.Memory,
	grouped map[uuid.UUID]bool,
	kind domain.ConsolidationPatternKind,
	similarity func(a, b *domain.Memory) float64,
) []domain.ConsolidationPattern {
	var patterns []domain.ConsolidationPattern
	assigned := make(map[uuid.UUID]bool)

	for i := range candidates {
		seed := &candidates[i]
		if assigned[seed.ID] {
			continue
		}
		members := []domain.Memory{*seed}
		for j := i + 1; j < len(candidates); j++ {
			other := &candidates[j]
			if assigned[other.ID] {
				continue
			}
			if similarity(seed, other) >= s.cfg.OverlapThreshold {
				members = append(members, *other)
				assigned[other.ID] = true
			}
		}
		if len(members) < s.cfg.MinOccurrences {
			continue
		}
		assigned[seed.ID] = true
		for _, m := range members {
			grouped[m.ID] = true
		}
		patterns = append(patterns, domain.ConsolidationPattern{
			Kind:           kind,
			Members:        members,
			Representative: chooseRepresentative(members),
			Strength:       patternStrength(members),
			Occurrences:    len(members),
		})
	}
	return patterns
}

// patternStrength weighs occurrence count (60%, saturating at 10) against
// total access count (40%, saturating at 50).
func patternStrength(members []domain.Memory) float64 {
	occurrences := float64(len(members)) / 10
	if occurrences > 1 {
		occurrences = 1
	}
	var totalAccess float64
	for _, m := range members {
		totalAccess += float64(m.AccessCount)
	}
	access := totalAccess / 50
	if access > 1 {
		access = 1
	}
	return clamp(0.6*occurrences+0.4*access, 0, 1)
}

// chooseRepresentative picks the member with the highest access count,
// tie-broken by the most recent update.
func chooseRepresentative(members []domain.Memory) uuid.UUID {
	best := members[0]
	for _, m := range members[1:] {
		if m.AccessCount > best.AccessCount ||
			(m.AccessCount == best.AccessCount && m.UpdatedAt.After(best.UpdatedAt)) {
			best = m
		}
	}
	return best.ID
}

// Integrate materializes one semantic memory per sufficiently strong
// pattern, with a merged trigger set and links back to every member. In
// dry-run mode it reports what would be created without writing.
func (s *ConsolidationService) Integrate(ctx context.Context, patterns []domain.ConsolidationPattern, opts ConsolidationOptions) (*IntegrateResult, error) {
	result := &IntegrateResult{}

	for i := range patterns {
		p := &patterns[i]
		if p.Strength < s.cfg.MinPatternStrength {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.DryRun {
			result.WouldCreate++
			continue
		}

		rep := p.Members[0]
		for _, m := range p.Members {
			if m.ID == p.Representative {
				rep = m
				break
			}
		}

		consolidated := &domain.Memory{
			Title:          "Consolidated: " + rep.Title,
			Content:        rep.Content,
			Summary:        rep.Summary,
			Kind:           domain.KindSemantic,
			Tier:           domain.TierNormal,
			Scope:          rep.Scope,
			Stability:      rep.Stability,
			Difficulty:     rep.Difficulty,
			Fingerprint:    rep.Fingerprint,
			TriggerPhrases: mergeTriggers(p.Members),
		}
		if err := s.memories.Create(ctx, consolidated); err != nil {
			s.logger.Warn("failed to create consolidated memory",
				zap.String("representative", rep.ID.String()),
				zap.Error(err))
			continue
		}
		for _, memberID := range p.MemberIDs() {
			if err := s.relations.Link(ctx, consolidated.ID, memberID); err != nil {
				s.logger.Debug("failed to link consolidated memory", zap.Error(err))
			}
		}
		result.Created++
		result.CreatedIDs = append(result.CreatedIDs, consolidated.ID)
	}
	return result, nil
}

// Prune downgrades every non-representative member of an integrated
// pattern to the deprecated tier. Nothing is deleted; at least one
// representative survives per pattern by construction. A backup snapshot
// is taken first unless explicitly disabled, because this is the only
// phase that alters existing records en masse.
func (s *ConsolidationService) Prune(ctx context.Context, patterns []domain.ConsolidationPattern, opts ConsolidationOptions) (*PruneResult, error) {
	result := &PruneResult{}

	strong := patterns[:0:0]
	for _, p := range patterns {
		if p.Strength >= s.cfg.MinPatternStrength {
			strong = append(strong, p)
		}
	}
	if len(strong) == 0 {
		return result, nil
	}

	if opts.DryRun {
		for _, p := range strong {
			result.WouldDeprecate += len(p.Members) - 1
		}
		return result, nil
	}

	if opts.CreateBackup {
		backupID, err := s.checkpoints.Create(ctx, "pre-prune", map[string]string{
			"phase":    "prune",
			"patterns": fmt.Sprintf("%d", len(strong)),
		})
		if err != nil {
			return nil, fmt.Errorf("create backup: %w", err)
		}
		result.BackupID = &backupID
	}

	for _, p := range strong {
		for _, m := range p.Members {
			if m.ID == p.Representative {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := s.memories.UpdateTier(ctx, m.ID, domain.TierDeprecated); err != nil {
				s.logger.Warn("failed to deprecate memory",
					zap.String("memory_id", m.ID.String()),
					zap.Error(err))
				continue
			}
			result.Deprecated++
		}
	}
	return result, nil
}

// Strengthen boosts stability for high-use memories outside the review
// cooldown. Independent of the replay chain.
func (s *ConsolidationService) Strengthen(ctx context.Context, opts ConsolidationOptions) (*StrengthenResult, error) {
	result := &StrengthenResult{}

	reviewedBefore := time.Now().Add(-s.cfg.StrengthenCooldown)
	candidates, err := s.memories.ListStrengthenCandidates(ctx, s.cfg.StrengthenMinAccess, reviewedBefore)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, m := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.DryRun {
			result.WouldStrengthen++
			continue
		}

		stability := m.Stability
		if stability <= 0 {
			stability = 1.0
		}
		boosted := clamp(stability*s.cfg.StrengthenMultiplier, MinStability, MaxStability)
		if err := s.memories.UpdateSchedule(ctx, m.ID, boosted, m.Difficulty, now); err != nil {
			s.logger.Warn("failed to strengthen memory",
				zap.String("memory_id", m.ID.String()),
				zap.Error(err))
			continue
		}
		result.Strengthened++
	}
	return result, nil
}

func mergeTriggers(members []domain.Memory) []string {
	seen := map[string]struct{}{}
	var merged []string
	for _, m := range members {
		for _, t := range m.TriggerPhrases {
			key := strings.ToLower(strings.TrimSpace(t))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, t)
		}
	}
	sort.Strings(merged)
	return merged
}

// jaccard is set overlap over union of two trigger-phrase sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]struct{}{}
	for _, s := range a {
		setA[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	setB := map[string]struct{}{}
	for _, s := range b {
		setB[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// wordOverlap is jaccard over the word sets of two titles.
func wordOverlap(a, b string) float64 {
	return jaccard(strings.Fields(strings.ToLower(a)), strings.Fields(strings.ToLower(b)))
}
