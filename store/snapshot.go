package store

import (
	"context"
	"fmt"

	"github.com/hupe1980/embedb/record"
	"github.com/hupe1980/embedb/where"
)

// Snapshot is an immutable point-in-time view of a collection's live
// records: the latest non-delete log entry per record ID, in sequence
// order. It is safe for any number of concurrent readers and never
// observes appends committed after it was taken.
type Snapshot struct {
	seq        uint64
	ids        []string
	embeddings [][]float32
	metas      []record.Metadata
	docs       []string
	uris       []string
	byID       map[string]uint32
}

var _ where.Snapshot = (*Snapshot)(nil)

// Snapshot materializes the current state of a collection in one read
// transaction.
func (s *Store) Snapshot(ctx context.Context, collectionID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	topic := topicName(collectionID)

	snap := &Snapshot{byID: make(map[string]uint32)}

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq_id), 0) FROM embeddings_queue WHERE topic = ?", topic,
	).Scan(&snap.seq)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot sequence: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT q.id, q.vector, q.metadata
		FROM embeddings_queue q
		JOIN (
			SELECT id, MAX(seq_id) AS max_seq
			FROM embeddings_queue
			WHERE topic = ?
			GROUP BY id
		) latest ON q.id = latest.id AND q.seq_id = latest.max_seq
		WHERE q.topic = ? AND q.operation != ?
		ORDER BY q.seq_id`,
		topic, topic, int(OperationDelete))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id     string
			vector []byte
			meta   *string
		)
		if err := rows.Scan(&id, &vector, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		embedding, err := decodeVector(vector)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", id, err)
		}

		var p payload
		if meta != nil {
			if err := s.codec.Unmarshal([]byte(*meta), &p); err != nil {
				return nil, fmt.Errorf("record %q: %w", id, err)
			}
		}

		snap.byID[id] = uint32(len(snap.ids))
		snap.ids = append(snap.ids, id)
		snap.embeddings = append(snap.embeddings, embedding)
		snap.metas = append(snap.metas, p.Metadata)
		snap.docs = append(snap.docs, p.Document)
		snap.uris = append(snap.uris, p.URI)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}

	return snap, nil
}

// Len returns the number of live records in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

// SeqID returns the latest sequence marker visible to the snapshot,
// including delete entries.
func (s *Snapshot) SeqID() uint64 { return s.seq }

// ID returns the record ID at a position.
func (s *Snapshot) ID(pos uint32) string { return s.ids[pos] }

// Embedding returns the embedding at a position. Callers must not mutate it.
func (s *Snapshot) Embedding(pos uint32) []float32 { return s.embeddings[pos] }

// Metadata returns the metadata at a position; nil if the record has none.
func (s *Snapshot) Metadata(pos uint32) record.Metadata { return s.metas[pos] }

// Document returns the document at a position; empty if the record has none.
func (s *Snapshot) Document(pos uint32) string { return s.docs[pos] }

// URI returns the URI at a position; empty if the record has none.
func (s *Snapshot) URI(pos uint32) string { return s.uris[pos] }

// Position resolves a record ID to its snapshot position.
func (s *Snapshot) Position(id string) (uint32, bool) {
	pos, ok := s.byID[id]
	return pos, ok
}
