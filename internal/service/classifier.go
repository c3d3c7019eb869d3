package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"go.uber.org/zap"
)

// Classifier turns a memory's decay state into one of the five serving
// states and resolves the effective half-life per memory. It shares the
// archival inactivity rule with the archival manager through
// domain.ArchivalPolicy so the two definitions cannot drift.
type Classifier struct {
	cfg    *config.Config
	policy domain.ArchivalPolicy
	logger *zap.Logger
}

func NewClassifier(cfg *config.Config, logger *zap.Logger) *Classifier {
	return &Classifier{
		cfg:    cfg,
		policy: cfg.ArchivalPolicy(),
		logger: logger,
	}
}

// ClassifyState returns the serving state for a memory. Inactivity past
// the archival threshold overrides the retrievability-based states.
func (c *Classifier) ClassifyState(m *domain.Memory, now time.Time) domain.MemoryState {
	if m.Archived {
		return domain.StateArchived
	}
	if c.policy.InactiveEnough(m, now) {
		return domain.StateArchived
	}
	return c.StateForScore(c.Retrievability(m, now))
}

// StateForScore maps a retrievability or attention score onto the state
// ladder. Thresholds are validated at startup to be strictly ordered.
func (c *Classifier) StateForScore(score float64) domain.MemoryState {
	switch {
	case score >= c.cfg.HotThreshold:
		return domain.StateHot
	case score >= c.cfg.WarmThreshold:
		return domain.StateWarm
	case score >= c.cfg.ColdThreshold:
		return domain.StateCold
	case score >= c.cfg.DormantThreshold:
		return domain.StateDormant
	default:
		return domain.StateForgotten
	}
}

// Retrievability computes the recall probability for a memory, preferring
// a precomputed value, then FSRS stability, then half-life decay, then a
// legacy raw activation score.
func (c *Classifier) Retrievability(m *domain.Memory, now time.Time) float64 {
	if c.policy.Protected(m.Tier) {
		return 1.0
	}
	if m.Retrievability != nil {
		return clamp(*m.Retrievability, 0, 1)
	}
	if m.Stability > 0 {
		return Retrievability(m.Stability, daysSince(m.LastTouchedAt(), now))
	}
	halfLife, decays := c.EffectiveHalfLife(m)
	if !decays {
		return 1.0
	}
	if last := m.LastTouchedAt(); !last.IsZero() {
		return clamp(math.Pow(0.5, daysSince(last, now)/halfLife), 0, 1)
	}
	// No temporal basis at all; fall back to the legacy raw score.
	if m.Activation != nil {
		return clamp(*m.Activation, 0, 1)
	}
	return 1.0
}

// EffectiveHalfLife resolves the half-life for a memory: explicit override
// first, then the kind table, then the tier default, then a generic
// 60-day fallback. decays=false means the memory is decay-exempt.
func (c *Classifier) EffectiveHalfLife(m *domain.Memory) (days float64, decays bool) {
	if c.policy.Protected(m.Tier) {
		return 0, false
	}
	if m.HalfLifeDays != nil && *m.HalfLifeDays > 0 {
		return *m.HalfLifeDays, true
	}
	if days, ok := domain.KindHalfLifeDays(m.Kind); ok {
		if days == 0 {
			return 0, false
		}
		return days, true
	}
	if m.Tier == domain.TierTemporary {
		return 1, true
	}
	return 60, true
}

// Summarize returns the summary-depth text for a memory: the explicit
// summary field if present, otherwise a word-boundary prefix of the
// content.
func (c *Classifier) Summarize(m *domain.Memory) string {
	if m.Summary != "" {
		return m.Summary
	}
	return truncateAtWord(m.Content, c.cfg.SummaryMaxChars)
}

// FilterAndLimit classifies a batch and returns only the servable subset:
// at most HotLimit HOT and WarmLimit WARM results, each sorted by
// descending retrievability. Colder memories are excluded outright.
func (c *Classifier) FilterAndLimit(memories []domain.Memory, now time.Time) []domain.ScoredMemory {
	var hot, warm []domain.ScoredMemory
	for i := range memories {
		m := &memories[i]
		r := c.Retrievability(m, now)
		switch c.ClassifyState(m, now) {
		case domain.StateHot:
			hot = append(hot, domain.ScoredMemory{
				MemoryID:       m.ID,
				State:          domain.StateHot,
				Depth:          domain.DepthForState(domain.StateHot),
				Retrievability: r,
				Content:        m.Content,
			})
		case domain.StateWarm:
			warm = append(warm, domain.ScoredMemory{
				MemoryID:       m.ID,
				State:          domain.StateWarm,
				Depth:          domain.DepthForState(domain.StateWarm),
				Retrievability: r,
				Content:        c.Summarize(m),
			})
		}
	}

	sortByRetrievability(hot)
	sortByRetrievability(warm)

	if len(hot) > c.cfg.HotLimit {
		hot = hot[:c.cfg.HotLimit]
	}
	if len(warm) > c.cfg.WarmLimit {
		warm = warm[:c.cfg.WarmLimit]
	}
	return append(hot, warm...)
}

func sortByRetrievability(s []domain.ScoredMemory) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Retrievability > s[j].Retrievability
	})
}

func truncateAtWord(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}

func daysSince(t, now time.Time) float64 {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return now.Sub(t).Hours() / 24
}
