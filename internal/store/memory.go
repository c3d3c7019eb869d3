package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/domain"
)

type MemoryStore struct {
	db *DB
}

func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

const memoryColumns = `id, title, content, summary, kind, tier, scope,
	stability, difficulty, half_life_days, retrievability, activation,
	last_reviewed, last_accessed, review_count, access_count,
	fingerprint, triggers, archived, archived_at, created_at, updated_at`

func (s *MemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Difficulty == 0 {
		m.Difficulty = 5
	}

	triggers, err := json.Marshal(m.TriggerPhrases)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, title, content, summary, kind, tier, scope,
			stability, difficulty, half_life_days, retrievability, activation,
			last_reviewed, last_accessed, review_count, access_count,
			fingerprint, triggers, archived, archived_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Title, m.Content, m.Summary, string(m.Kind), string(m.Tier), m.Scope,
		m.Stability, m.Difficulty, m.HalfLifeDays, m.Retrievability, m.Activation,
		unixPtr(m.LastReviewedAt), unixPtr(m.LastAccessedAt), m.ReviewCount, m.AccessCount,
		m.Fingerprint, string(triggers), archiveFlag(m), unixPtr(m.ArchivedAt),
		m.CreatedAt.Unix(), m.UpdatedAt.Unix(),
	)
	return err
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id.String())
	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) Update(ctx context.Context, m *domain.Memory) error {
	triggers, err := json.Marshal(m.TriggerPhrases)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}
	m.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET title = ?, content = ?, summary = ?, kind = ?, tier = ?, scope = ?,
			stability = ?, difficulty = ?, half_life_days = ?, retrievability = ?, activation = ?,
			last_reviewed = ?, last_accessed = ?, review_count = ?, access_count = ?,
			fingerprint = ?, triggers = ?, archived = ?, archived_at = ?, updated_at = ?
		WHERE id = ?`,
		m.Title, m.Content, m.Summary, string(m.Kind), string(m.Tier), m.Scope,
		m.Stability, m.Difficulty, m.HalfLifeDays, m.Retrievability, m.Activation,
		unixPtr(m.LastReviewedAt), unixPtr(m.LastAccessedAt), m.ReviewCount, m.AccessCount,
		m.Fingerprint, string(triggers), archiveFlag(m), unixPtr(m.ArchivedAt),
		m.UpdatedAt.Unix(), m.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateSchedule applies a review outcome: new stability/difficulty plus a
// review-count bump.
func (s *MemoryStore) UpdateSchedule(ctx context.Context, id uuid.UUID, stability, difficulty float64, reviewedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET stability = ?, difficulty = ?, last_reviewed = ?,
			review_count = review_count + 1, updated_at = ?
		WHERE id = ?`,
		stability, difficulty, reviewedAt.Unix(), time.Now().Unix(), id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *MemoryStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ?, updated_at = ?
		WHERE id = ?`,
		time.Now().Unix(), time.Now().Unix(), id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *MemoryStore) UpdateTier(ctx context.Context, id uuid.UUID, tier domain.ImportanceTier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET tier = ?, updated_at = ? WHERE id = ?`,
		string(tier), time.Now().Unix(), id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Archive sets the archived flag. Soft deletion is a stronger value of the
// same flag; neither removes the row.
func (s *MemoryStore) Archive(ctx context.Context, id uuid.UUID, soft bool) error {
	flag := 1
	if soft {
		flag = 2
	}
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived = ?, archived_at = ?, updated_at = ? WHERE id = ?`,
		flag, now, now, id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Unarchive clears the flag and refreshes last access so the record does
// not immediately requalify.
func (s *MemoryStore) Unarchive(ctx context.Context, id uuid.UUID) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived = 0, archived_at = NULL, last_accessed = ?, updated_at = ?
		WHERE id = ?`,
		now, now, id.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListArchiveCandidates returns live, non-protected memories idle past the
// policy threshold, oldest-touched first.
func (s *MemoryStore) ListArchiveCandidates(ctx context.Context, policy domain.ArchivalPolicy, now time.Time, limit int) ([]domain.Memory, error) {
	cutoff := now.Add(-policy.InactivityThreshold).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		WHERE archived = 0
		  AND tier NOT IN (?, ?)
		  AND MAX(COALESCE(last_accessed, 0), COALESCE(last_reviewed, 0), created_at) <= ?
		ORDER BY MAX(COALESCE(last_accessed, 0), COALESCE(last_reviewed, 0), created_at) ASC
		LIMIT ?`,
		string(domain.TierConstitutional), string(domain.TierCritical), cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListReplayCandidates returns live episodic memories older than the
// cutoff, excluding protected and deprecated tiers, optionally scoped.
func (s *MemoryStore) ListReplayCandidates(ctx context.Context, olderThan time.Time, scope string, limit int) ([]domain.Memory, error) {
	q := `SELECT ` + memoryColumns + ` FROM memories
		WHERE archived = 0
		  AND kind = ?
		  AND tier NOT IN (?, ?, ?)
		  AND created_at <= ?`
	args := []any{
		string(domain.KindEpisodic),
		string(domain.TierConstitutional), string(domain.TierCritical), string(domain.TierDeprecated),
		olderThan.Unix(),
	}
	if scope != "" {
		q += ` AND scope = ?`
		args = append(args, scope)
	}
	q += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListStrengthenCandidates returns live, non-deprecated, non-temporary
// memories with high access counts that have not been reviewed recently.
func (s *MemoryStore) ListStrengthenCandidates(ctx context.Context, minAccess int, reviewedBefore time.Time) ([]domain.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories
		WHERE archived = 0
		  AND tier NOT IN (?, ?)
		  AND access_count > ?
		  AND (last_reviewed IS NULL OR last_reviewed < ?)
		ORDER BY access_count DESC`,
		string(domain.TierDeprecated), string(domain.TierTemporary),
		minAccess, reviewedBefore.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MemoryStore) Stats(ctx context.Context) (*domain.MemoryStats, error) {
	stats := &domain.MemoryStats{
		ByTier: map[string]int{},
		ByKind: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tier, kind, archived, COUNT(*) FROM memories GROUP BY tier, kind, archived`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tier, kind string
		var archived, count int
		if err := rows.Scan(&tier, &kind, &archived, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByTier[tier] += count
		stats.ByKind[kind] += count
		if archived != 0 {
			stats.Archived += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var oldest sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(MAX(COALESCE(last_accessed, 0), COALESCE(last_reviewed, 0), created_at))
		FROM memories WHERE archived = 0`).Scan(&oldest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid && oldest.Int64 > 0 {
		t := time.Unix(oldest.Int64, 0).UTC()
		stats.OldestIdle = &t
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*domain.Memory, error) {
	var (
		m                            domain.Memory
		id, kind, tier, triggersJSON string
		halfLife, retr, activation   sql.NullFloat64
		lastReviewed, lastAccessed   sql.NullInt64
		archived                     int
		archivedAt                   sql.NullInt64
		createdAt, updatedAt         int64
	)
	err := row.Scan(
		&id, &m.Title, &m.Content, &m.Summary, &kind, &tier, &m.Scope,
		&m.Stability, &m.Difficulty, &halfLife, &retr, &activation,
		&lastReviewed, &lastAccessed, &m.ReviewCount, &m.AccessCount,
		&m.Fingerprint, &triggersJSON, &archived, &archivedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse memory id: %w", err)
	}
	m.Kind = domain.MemoryKind(kind)
	m.Tier = domain.ImportanceTier(tier)
	m.HalfLifeDays = nullFloat(halfLife)
	m.Retrievability = nullFloat(retr)
	m.Activation = nullFloat(activation)
	m.LastReviewedAt = nullTime(lastReviewed)
	m.LastAccessedAt = nullTime(lastAccessed)
	m.Archived = archived != 0
	m.ArchivedAt = nullTime(archivedAt)
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if triggersJSON != "" {
		if err := json.Unmarshal([]byte(triggersJSON), &m.TriggerPhrases); err != nil {
			return nil, fmt.Errorf("unmarshal triggers: %w", err)
		}
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]domain.Memory, error) {
	var memories []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

func archiveFlag(m *domain.Memory) int {
	if m.Archived {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

var _ domain.MemoryStore = (*MemoryStore)(nil)
