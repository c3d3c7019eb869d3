package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/domain"
)

type WorkingMemoryStore struct {
	db *DB
}

func NewWorkingMemoryStore(db *DB) *WorkingMemoryStore {
	return &WorkingMemoryStore{db: db}
}

// Upsert replaces the (session, memory) row, keeping the original
// created_at on conflict.
func (s *WorkingMemoryStore) Upsert(ctx context.Context, e *domain.WorkingMemoryEntry) error {
	now := time.Now().UTC().Truncate(time.Second)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO working_memory (session_id, memory_id, score, state, last_turn, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, memory_id) DO UPDATE SET
			score = excluded.score,
			state = excluded.state,
			last_turn = excluded.last_turn,
			updated_at = excluded.updated_at`,
		e.SessionID, e.MemoryID.String(), e.Score, string(e.State), e.LastTurn,
		e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
	)
	return err
}

func (s *WorkingMemoryStore) Get(ctx context.Context, sessionID string, memoryID uuid.UUID) (*domain.WorkingMemoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, memory_id, score, state, last_turn, created_at, updated_at
		FROM working_memory WHERE session_id = ? AND memory_id = ?`,
		sessionID, memoryID.String(),
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *WorkingMemoryStore) ListBySession(ctx context.Context, sessionID string) ([]domain.WorkingMemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, memory_id, score, state, last_turn, created_at, updated_at
		FROM working_memory
		WHERE session_id = ?
		ORDER BY score DESC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WorkingMemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// BatchSetScores applies a decay sweep inside one transaction so a sweep
// either lands whole or not at all, and two racing sweeps for the same
// session serialize on the writer instead of interleaving lost updates.
func (s *WorkingMemoryStore) BatchSetScores(ctx context.Context, sessionID string, updates []domain.ScoreUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	applied := 0
	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			`UPDATE working_memory SET score = ?, state = ?, updated_at = ?
			WHERE session_id = ? AND memory_id = ?`,
			u.Score, string(u.State), now, sessionID, u.MemoryID.String(),
		)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		applied += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return applied, nil
}

// SessionSummary reports the current entry count and last activity. A
// session with no rows yields a zero summary rather than an error.
func (s *WorkingMemoryStore) SessionSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	var count int
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(updated_at) FROM working_memory WHERE session_id = ?`,
		sessionID,
	).Scan(&count, &last)
	if err != nil {
		return nil, err
	}

	summary := &domain.SessionSummary{SessionID: sessionID, EntryCount: count}
	if last.Valid {
		summary.LastActivityAt = time.Unix(last.Int64, 0).UTC()
	}
	return summary, nil
}

func (s *WorkingMemoryStore) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM working_memory WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupSessions drops every session whose newest entry is older than the
// cutoff.
func (s *WorkingMemoryStore) CleanupSessions(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM working_memory WHERE session_id IN (
			SELECT session_id FROM working_memory
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)`,
		olderThan.Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EvictOverflow removes the lowest-scoring entries beyond the per-session
// ceiling.
func (s *WorkingMemoryStore) EvictOverflow(ctx context.Context, sessionID string, maxEntries int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM working_memory
		WHERE session_id = ? AND memory_id NOT IN (
			SELECT memory_id FROM working_memory
			WHERE session_id = ?
			ORDER BY score DESC, updated_at DESC
			LIMIT ?
		)`,
		sessionID, sessionID, maxEntries,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntry(row rowScanner) (*domain.WorkingMemoryEntry, error) {
	var (
		e                    domain.WorkingMemoryEntry
		rawID, state         string
		createdAt, updatedAt int64
	)
	err := row.Scan(&e.SessionID, &rawID, &e.Score, &state, &e.LastTurn, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.MemoryID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}
	e.State = domain.MemoryState(state)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &e, nil
}

var _ domain.WorkingMemoryStore = (*WorkingMemoryStore)(nil)
