package store

import (
	"context"
	"fmt"
)

// PurgeLog removes log entries that are no longer needed to reconstruct
// current state: entries superseded by a newer entry for the same record,
// and tombstones whose whole history is gone. It runs in one transaction;
// on failure no entry has been removed.
//
// The surviving entries are verified before anything is deleted. A corrupt
// file or an undecodable surviving entry fails with a MaintenanceError and
// leaves the log untouched. Valid only in Maintenance.
func (s *Store) PurgeLog(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireMaintenance(); err != nil {
		return 0, err
	}

	var check string
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		return 0, newMaintenanceError("purge", err)
	}
	if check != "ok" {
		return 0, newMaintenanceError("purge", fmt.Errorf("integrity check failed: %s", check))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Everything the purge keeps must still decode, otherwise current state
	// would be unreconstructable afterwards.
	rows, err := tx.QueryContext(ctx, `
		SELECT q.seq_id, q.operation, q.vector, q.metadata
		FROM embeddings_queue q
		JOIN (
			SELECT topic, id, MAX(seq_id) AS max_seq
			FROM embeddings_queue
			GROUP BY topic, id
		) latest ON q.topic = latest.topic AND q.id = latest.id AND q.seq_id = latest.max_seq`)
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}

	for rows.Next() {
		var (
			seq       int64
			operation int
			vector    []byte
			meta      *string
		)
		if err := rows.Scan(&seq, &operation, &vector, &meta); err != nil {
			_ = rows.Close()
			return 0, newMaintenanceError("purge", err)
		}
		if operation == int(OperationDelete) {
			continue
		}
		if _, err := decodeVector(vector); err != nil {
			_ = rows.Close()
			return 0, newMaintenanceError("purge", fmt.Errorf("log entry %d: %w", seq, err))
		}
		if meta != nil {
			var p payload
			if err := s.codec.Unmarshal([]byte(*meta), &p); err != nil {
				_ = rows.Close()
				return 0, newMaintenanceError("purge", fmt.Errorf("log entry %d: %w", seq, err))
			}
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, newMaintenanceError("purge", err)
	}
	_ = rows.Close()

	superseded, err := tx.ExecContext(ctx, `
		DELETE FROM embeddings_queue
		WHERE seq_id NOT IN (
			SELECT MAX(seq_id) FROM embeddings_queue GROUP BY topic, id
		)`)
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}

	// Remaining delete entries are each the latest for their record; with
	// their history gone they carry no state.
	tombstones, err := tx.ExecContext(ctx,
		"DELETE FROM embeddings_queue WHERE operation = ?", int(OperationDelete))
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, newMaintenanceError("purge", err)
	}

	supersededN, err := superseded.RowsAffected()
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}
	tombstonesN, err := tombstones.RowsAffected()
	if err != nil {
		return 0, newMaintenanceError("purge", err)
	}

	removed := supersededN + tombstonesN
	s.logger.Infof("purged %d log entries", removed)

	return removed, nil
}

// Compact rewrites the backing file to its minimal footprint. SQLite's
// VACUUM is transactional: an interrupted compaction leaves either the old
// or the new file, never a torn hybrid. Valid only in Maintenance.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireMaintenance(); err != nil {
		return err
	}

	// VACUUM refuses to run inside a transaction; the single-connection
	// pool guarantees none is active here.
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return newMaintenanceError("compact", err)
	}

	// Fold the WAL back into the main file so the reclaimed space shows up
	// on disk, not just inside the page count.
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return newMaintenanceError("compact", err)
	}

	s.logger.Infof("compacted store at %s", s.path)

	return nil
}

// BackupInto writes a consistent single-file copy of the store to path
// using VACUUM INTO. The target must not exist. Valid only in Maintenance.
func (s *Store) BackupInto(ctx context.Context, path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireMaintenance(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return newMaintenanceError("backup", err)
	}
	return nil
}

// Size reports the backing file's logical size (page count times page
// size). Valid in Open and Maintenance states.
func (s *Store) Size(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == stateClosed {
		return 0, ErrClosed
	}

	var size int64
	err := s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("failed to read store size: %w", err)
	}
	return size, nil
}
