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

// CheckpointStore snapshots the mutable lifecycle columns of every memory
// so a consolidation prune can be rolled back. Content is not duplicated;
// only the fields the engine itself mutates are captured.
type CheckpointStore struct {
	db *DB
}

func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

type checkpointRow struct {
	ID         string  `json:"id"`
	Tier       string  `json:"tier"`
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
	Archived   int     `json:"archived"`
	ArchivedAt *int64  `json:"archived_at,omitempty"`
}

func (s *CheckpointStore) Create(ctx context.Context, name string, metadata map[string]string) (uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tier, stability, difficulty, archived, archived_at FROM memories`)
	if err != nil {
		return uuid.Nil, err
	}
	defer rows.Close()

	var snapshot []checkpointRow
	for rows.Next() {
		var r checkpointRow
		var archivedAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Tier, &r.Stability, &r.Difficulty, &r.Archived, &archivedAt); err != nil {
			return uuid.Nil, err
		}
		if archivedAt.Valid {
			r.ArchivedAt = &archivedAt.Int64
		}
		snapshot = append(snapshot, r)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, err
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal metadata: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, name, metadata, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id.String(), name, string(metadataJSON), string(snapshotJSON), time.Now().Unix(),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Restore reapplies a snapshot's lifecycle columns in one transaction.
// Memories created after the checkpoint are left untouched.
func (s *CheckpointStore) Restore(ctx context.Context, id uuid.UUID) error {
	var snapshotJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM checkpoints WHERE id = ?`, id.String(),
	).Scan(&snapshotJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var snapshot []checkpointRow
	if err := json.Unmarshal([]byte(snapshotJSON), &snapshot); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, r := range snapshot {
		var archivedAt any
		if r.ArchivedAt != nil {
			archivedAt = *r.ArchivedAt
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET tier = ?, stability = ?, difficulty = ?,
				archived = ?, archived_at = ?, updated_at = ?
			WHERE id = ?`,
			r.Tier, r.Stability, r.Difficulty, r.Archived, archivedAt, now, r.ID,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ domain.Checkpointer = (*CheckpointStore)(nil)
