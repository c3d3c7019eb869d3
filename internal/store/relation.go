package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/domain"
)

// RelationStore holds weak (from, to) memory relations. Relations never
// own the records they point at; a dangling edge is harmless and is
// skipped by lookups.
type RelationStore struct {
	db *DB
}

func NewRelationStore(db *DB) *RelationStore {
	return &RelationStore{db: db}
}

func (s *RelationStore) Link(ctx context.Context, from, to uuid.UUID) error {
	if from == to {
		return fmt.Errorf("cannot relate a memory to itself")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_relations (from_id, to_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (from_id, to_id) DO NOTHING`,
		from.String(), to.String(), time.Now().Unix(),
	)
	return err
}

func (s *RelationStore) Unlink(ctx context.Context, from, to uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_relations WHERE from_id = ? AND to_id = ?`,
		from.String(), to.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Related returns up to limit targets of a memory's outgoing relations,
// most recently linked first.
func (s *RelationStore) Related(ctx context.Context, id uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_id FROM memory_relations
		WHERE from_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		id.String(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var related []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		target, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		related = append(related, target)
	}
	return related, rows.Err()
}

var _ domain.RelationStore = (*RelationStore)(nil)
