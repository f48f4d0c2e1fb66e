package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaVersion is stored in PRAGMA user_version. Bump it together with a
// migration step when the persisted layout changes.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS collections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	dimension INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS embeddings_queue (
	seq_id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	operation INTEGER NOT NULL,
	topic TEXT NOT NULL,
	id TEXT NOT NULL,
	vector BLOB,
	encoding TEXT,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_embeddings_queue_topic_id ON embeddings_queue(topic, id);

CREATE TABLE IF NOT EXISTS embeddings_queue_config (
	id INTEGER PRIMARY KEY,
	config_json_str TEXT
);
`

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > schemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if version == schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// PRAGMA does not accept bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return tx.Commit()
}
