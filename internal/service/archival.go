package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const archivalErrorHistory = 10

// ArchivalScanResult reports one scan: per-item outcomes, never a single
// all-or-nothing transaction, so a bad record cannot block the batch.
type ArchivalScanResult struct {
	Scanned  int           `json:"scanned"`
	Archived int           `json:"archived"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"` // log_only mode counts here
	Duration time.Duration `json:"duration"`
}

// ArchivalStats is the cumulative counters the manager keeps across scans.
type ArchivalStats struct {
	Scans         int64         `json:"scans"`
	TotalArchived int64         `json:"total_archived"`
	LastBatchSize int           `json:"last_batch_size"`
	LastDuration  time.Duration `json:"last_duration"`
	LastScanAt    time.Time     `json:"last_scan_at"`
	RecentErrors  []string      `json:"recent_errors,omitempty"`
}

// ArchivalService periodically sweeps inactive memories into the archive.
// It shares the inactivity rule with the state classifier through
// domain.ArchivalPolicy, so a memory the classifier reports as archived is
// exactly one the next scan would pick up.
type ArchivalService struct {
	memories domain.MemoryStore
	wm       *WorkingMemoryService
	cfg      *config.Config
	policy   domain.ArchivalPolicy
	limiter  *rate.Limiter
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	mu    sync.Mutex
	stats ArchivalStats
}

func NewArchivalService(memories domain.MemoryStore, wm *WorkingMemoryService, cfg *config.Config, logger *zap.Logger) *ArchivalService {
	return &ArchivalService{
		memories: memories,
		wm:       wm,
		cfg:      cfg,
		policy:   cfg.ArchivalPolicy(),
		limiter:  rate.NewLimiter(rate.Limit(cfg.ArchivalRatePerSec), 1),
		logger:   logger,
		interval: cfg.ArchivalInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ArchivalService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start launches the background scan loop. Each tick runs one bounded scan
// and then expires stale working-memory sessions.
func (s *ArchivalService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("archival worker started",
			zap.Duration("interval", s.interval),
			zap.String("action", string(s.cfg.ArchivalAction)))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				if _, err := s.RunScan(ctx); err != nil {
					s.logger.Error("archival scan failed", zap.Error(err))
				}
				if _, err := s.wm.Cleanup(ctx); err != nil {
					s.logger.Error("session cleanup failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("archival worker stopped")
				return
			}
		}
	}()
}

func (s *ArchivalService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunScan archives up to one batch of inactivity candidates, oldest first.
// Each candidate is its own transaction with the limiter pacing writes, so
// a large backlog drains gradually instead of stalling foreground work.
func (s *ArchivalService) RunScan(ctx context.Context) (*ArchivalScanResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("archival scan already in flight")
	}
	defer s.running.Store(false)

	start := time.Now()
	result := &ArchivalScanResult{}

	candidates, err := s.memories.ListArchiveCandidates(ctx, s.policy, start, s.cfg.ArchivalBatchSize)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	result.Scanned = len(candidates)

	for _, m := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			s.finishScan(result, start)
			return result, err
		}

		switch s.cfg.ArchivalAction {
		case config.ArchiveLogOnly:
			s.logger.Info("archive candidate",
				zap.String("memory_id", m.ID.String()),
				zap.String("title", m.Title),
				zap.Time("last_touched", m.LastTouchedAt()))
			result.Skipped++
		case config.ArchiveSoftDelete:
			if err := s.memories.Archive(ctx, m.ID, true); err != nil {
				s.recordError(err)
				result.Failed++
				continue
			}
			result.Archived++
		default:
			if err := s.memories.Archive(ctx, m.ID, false); err != nil {
				s.recordError(err)
				result.Failed++
				continue
			}
			result.Archived++
		}
	}

	s.finishScan(result, start)
	if result.Scanned > 0 {
		s.logger.Info("archival scan complete",
			zap.Int("scanned", result.Scanned),
			zap.Int("archived", result.Archived),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", result.Duration))
	}
	return result, nil
}

// Check reports whether a single memory currently qualifies for archival,
// with a human-readable reason either way.
func (s *ArchivalService) Check(ctx context.Context, id uuid.UUID) (bool, string, error) {
	m, err := s.memories.GetByID(ctx, id)
	if err != nil {
		return false, "", err
	}
	if m.Archived {
		return false, "already archived", nil
	}
	if s.policy.Protected(m.Tier) {
		return false, fmt.Sprintf("tier %s is exempt from archival", m.Tier), nil
	}

	now := time.Now()
	if !s.policy.InactiveEnough(m, now) {
		idle := now.Sub(m.LastTouchedAt())
		return false, fmt.Sprintf("active %s ago, threshold is %s", idle.Round(time.Hour), s.policy.InactivityThreshold), nil
	}
	return true, fmt.Sprintf("inactive beyond %s", s.policy.InactivityThreshold), nil
}

// Unarchive restores a memory to the live set and refreshes its access
// time so it does not immediately requalify.
func (s *ArchivalService) Unarchive(ctx context.Context, id uuid.UUID) error {
	if err := s.memories.Unarchive(ctx, id); err != nil {
		return err
	}
	s.logger.Info("memory unarchived", zap.String("memory_id", id.String()))
	return nil
}

func (s *ArchivalService) Stats() ArchivalStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.RecentErrors = append([]string(nil), s.stats.RecentErrors...)
	return out
}

func (s *ArchivalService) finishScan(result *ArchivalScanResult, start time.Time) {
	result.Duration = time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Scans++
	s.stats.TotalArchived += int64(result.Archived)
	s.stats.LastBatchSize = result.Scanned
	s.stats.LastDuration = result.Duration
	s.stats.LastScanAt = start
}

func (s *ArchivalService) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RecentErrors = append(s.stats.RecentErrors, err.Error())
	if len(s.stats.RecentErrors) > archivalErrorHistory {
		s.stats.RecentErrors = s.stats.RecentErrors[len(s.stats.RecentErrors)-archivalErrorHistory:]
	}
}
