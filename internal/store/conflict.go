package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/mnemo-dev/mnemo/internal/domain"
)

// ConflictStore is the append-only audit log for gate decisions. Rows are
// never updated or deleted.
type ConflictStore struct {
	db *DB
}

func NewConflictStore(db *DB) *ConflictStore {
	return &ConflictStore{db: db}
}

func (s *ConflictStore) Append(ctx context.Context, r *domain.ConflictRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	var existingID any
	if r.ExistingID != nil {
		existingID = r.ExistingID.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conflict_log (id, action, new_preview, existing_id, existing_preview,
			similarity, reason, contradiction, scope, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), string(r.Action), r.NewPreview, existingID, r.ExistingPreview,
		r.Similarity, r.Reason, boolInt(r.Contradiction), r.Scope, r.CreatedAt.Unix(),
	)
	return err
}

func (s *ConflictStore) ListRecent(ctx context.Context, limit int) ([]domain.ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, new_preview, existing_id, existing_preview,
			similarity, reason, contradiction, scope, created_at
		FROM conflict_log
		ORDER BY created_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ConflictRecord
	for rows.Next() {
		var (
			r             domain.ConflictRecord
			rawID, action string
			existingID    sql.NullString
			contradiction int
			createdAt     int64
		)
		err := rows.Scan(&rawID, &action, &r.NewPreview, &existingID, &r.ExistingPreview,
			&r.Similarity, &r.Reason, &contradiction, &r.Scope, &createdAt)
		if err != nil {
			return nil, err
		}
		r.ID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, err
		}
		if existingID.Valid {
			id, err := uuid.Parse(existingID.String)
			if err == nil {
				r.ExistingID = &id
			}
		}
		r.Action = domain.ConflictAction(action)
		r.Contradiction = contradiction != 0
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.ConflictStore = (*ConflictStore)(nil)
