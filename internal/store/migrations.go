package store

import "fmt"

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: durable memory records",
		SQL: `
CREATE TABLE memories (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    content         TEXT NOT NULL,
    summary         TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL CHECK (kind IN ('constitutional', 'critical', 'semantic', 'procedural', 'declarative', 'episodic', 'temporary')),
    tier            TEXT NOT NULL CHECK (tier IN ('constitutional', 'critical', 'important', 'normal', 'temporary', 'deprecated')),
    scope           TEXT NOT NULL DEFAULT '',

    stability       REAL NOT NULL DEFAULT 0,
    difficulty      REAL NOT NULL DEFAULT 5,
    half_life_days  REAL,
    retrievability  REAL,
    activation      REAL,

    last_reviewed   INTEGER,
    last_accessed   INTEGER,
    review_count    INTEGER NOT NULL DEFAULT 0,
    access_count    INTEGER NOT NULL DEFAULT 0,

    fingerprint     TEXT NOT NULL DEFAULT '',
    triggers        TEXT NOT NULL DEFAULT '[]',

    -- 0 = live, 1 = archived, 2 = soft-deleted
    archived        INTEGER NOT NULL DEFAULT 0,
    archived_at     INTEGER,

    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE INDEX idx_memories_tier        ON memories(tier);
CREATE INDEX idx_memories_kind        ON memories(kind);
CREATE INDEX idx_memories_archived    ON memories(archived);
CREATE INDEX idx_memories_fingerprint ON memories(fingerprint);
`,
	},
	{
		Version:     2,
		Description: "memory_relations: non-owning adjacency list for spreading activation",
		SQL: `
CREATE TABLE memory_relations (
    from_id    TEXT NOT NULL,
    to_id      TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (from_id, to_id)
);

CREATE INDEX idx_relations_from ON memory_relations(from_id);
`,
	},
	{
		Version:     3,
		Description: "working_memory: per-session activation table",
		SQL: `
CREATE TABLE working_memory (
    session_id TEXT NOT NULL,
    memory_id  TEXT NOT NULL,
    score      REAL NOT NULL CHECK (score >= 0 AND score <= 1),
    state      TEXT NOT NULL,
    last_turn  INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (session_id, memory_id)
);

CREATE INDEX idx_wm_session_score ON working_memory(session_id, score DESC);
CREATE INDEX idx_wm_updated       ON working_memory(updated_at);
`,
	},
	{
		Version:     4,
		Description: "conflict_log: append-only gate audit trail",
		SQL: `
CREATE TABLE conflict_log (
    id               TEXT PRIMARY KEY,
    action           TEXT NOT NULL,
    new_preview      TEXT NOT NULL,
    existing_id      TEXT,
    existing_preview TEXT NOT NULL DEFAULT '',
    similarity       REAL NOT NULL DEFAULT 0,
    reason           TEXT NOT NULL,
    contradiction    INTEGER NOT NULL DEFAULT 0,
    scope            TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_conflict_created ON conflict_log(created_at DESC);
`,
	},
	{
		Version:     5,
		Description: "checkpoints: pre-mutation snapshots of scheduling state",
		SQL: `
CREATE TABLE checkpoints (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    snapshot   TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
