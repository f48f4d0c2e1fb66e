package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/embedb/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func addEntry(id string, embedding []float32) LogEntry {
	return LogEntry{Operation: OperationAdd, ID: id, Embedding: embedding}
}

func logRowCount(t *testing.T, s *Store) int {
	t.Helper()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM embeddings_queue").Scan(&n))
	return n
}

func TestOpenCreatesBackingFile(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(context.Background(), dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, BackingFileName))
	assert.NoError(t, err)

	require.NoError(t, s.Close())

	// Close releases the directory; a reopen must succeed.
	s2, err := Open(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Count(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "docs", first.Name)
	assert.Zero(t, first.Dimension)

	second, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCollectionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Collection(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestCollectionsListed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"zeta", "alpha"} {
		_, err := s.EnsureCollection(ctx, name)
		require.NoError(t, err)
	}

	cols, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "alpha", cols[0].Name)
	assert.Equal(t, "zeta", cols[1].Name)
}

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	seq1, err := s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1, 2}),
		addEntry("b", []float32{3, 4}),
	})
	require.NoError(t, err)

	seq2, err := s.Append(ctx, col.ID, []LogEntry{
		addEntry("c", []float32{5, 6}),
	})
	require.NoError(t, err)

	assert.Greater(t, seq2, seq1)
}

func TestAppendEmptyBatchRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, nil)
	assert.Error(t, err)
}

func TestAppendUnknownCollection(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append(context.Background(), "no-such-id", []LogEntry{addEntry("a", []float32{1})})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestAppendFixesDimension(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{addEntry("a", []float32{1, 2, 3})})
	require.NoError(t, err)

	col, err = s.Collection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, col.Dimension)

	_, err = s.Append(ctx, col.ID, []LogEntry{addEntry("b", []float32{1, 2})})

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func TestAppendRequiresEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{{Operation: OperationAdd, ID: "a"}})
	assert.Error(t, err)

	// Deletes carry no embedding.
	_, err = s.Append(ctx, col.ID, []LogEntry{{Operation: OperationDelete, ID: "a"}})
	assert.NoError(t, err)
}

func TestAppendChunksLargeBatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	n := s.MaxBatchSize() + 20
	entries := make([]LogEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, addEntry(fmt.Sprintf("id-%04d", i), []float32{float32(i)}))
	}

	seq, err := s.Append(ctx, col.ID, entries)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), seq)

	count, err := s.Count(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestCountSkipsDeletedAndSuperseded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1}),
		addEntry("b", []float32{2}),
		addEntry("c", []float32{3}),
	})
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		{Operation: OperationUpdate, ID: "a", Embedding: []float32{9}},
		{Operation: OperationDelete, ID: "b"},
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSnapshotMaterializesLatestState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		{
			Operation: OperationAdd,
			ID:        "a",
			Embedding: []float32{1, 2},
			Metadata:  record.Metadata{"color": record.String("red")},
			Document:  "first document",
		},
		addEntry("b", []float32{3, 4}),
	})
	require.NoError(t, err)

	lastSeq, err := s.Append(ctx, col.ID, []LogEntry{
		{
			Operation: OperationUpsert,
			ID:        "a",
			Embedding: []float32{5, 6},
			Metadata:  record.Metadata{"color": record.String("blue")},
			Document:  "second document",
			URI:       "s3://bucket/a",
		},
		{Operation: OperationDelete, ID: "b"},
	})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx, col.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, lastSeq, snap.SeqID())

	pos, ok := snap.Position("a")
	require.True(t, ok)
	assert.Equal(t, "a", snap.ID(pos))
	assert.Equal(t, []float32{5, 6}, snap.Embedding(pos))
	assert.Equal(t, record.Metadata{"color": record.String("blue")}, snap.Metadata(pos))
	assert.Equal(t, "second document", snap.Document(pos))
	assert.Equal(t, "s3://bucket/a", snap.URI(pos))

	_, ok = snap.Position("b")
	assert.False(t, ok)
}

func TestEntriesTailsLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1}),
		addEntry("b", []float32{2}),
		addEntry("c", []float32{3}),
		{Operation: OperationDelete, ID: "a"},
	})
	require.NoError(t, err)

	entries, err := s.Entries(ctx, col.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, uint64(3), entries[0].SeqID)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, OperationAdd, entries[0].Operation)
	assert.Equal(t, []float32{3}, entries[0].Embedding)
	assert.False(t, entries[0].CreatedAt.IsZero())

	assert.Equal(t, uint64(4), entries[1].SeqID)
	assert.Equal(t, "a", entries[1].ID)
	assert.Equal(t, OperationDelete, entries[1].Operation)
	assert.Nil(t, entries[1].Embedding)

	limited, err := s.Entries(ctx, col.ID, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMaintenanceStateBlocksTraffic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)
	_, err = s.Append(ctx, col.ID, []LogEntry{addEntry("a", []float32{1})})
	require.NoError(t, err)

	// Maintenance ops are invalid while open.
	_, err = s.PurgeLog(ctx)
	assert.ErrorIs(t, err, ErrNotInMaintenance)
	assert.ErrorIs(t, s.Compact(ctx), ErrNotInMaintenance)

	require.NoError(t, s.BeginMaintenance())
	assert.ErrorIs(t, s.BeginMaintenance(), ErrInMaintenance)

	// Normal traffic is invalid while in maintenance.
	_, err = s.Append(ctx, col.ID, []LogEntry{addEntry("b", []float32{2})})
	assert.ErrorIs(t, err, ErrInMaintenance)
	_, err = s.Count(ctx, col.ID)
	assert.ErrorIs(t, err, ErrInMaintenance)
	_, err = s.Snapshot(ctx, col.ID)
	assert.ErrorIs(t, err, ErrInMaintenance)
	_, err = s.Collection(ctx, "docs")
	assert.ErrorIs(t, err, ErrInMaintenance)

	// Maintenance ops work now.
	_, err = s.PurgeLog(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Compact(ctx))

	s.EndMaintenance()

	_, err = s.Append(ctx, col.ID, []LogEntry{addEntry("b", []float32{2})})
	assert.NoError(t, err)
}

func TestConfigPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)

	cfg, err := s.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.AutomaticallyPrune)
	assert.Equal(t, "json", cfg.PayloadCodec)

	cfg.AutomaticallyPrune = false
	require.NoError(t, s.SetConfig(ctx, cfg))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	cfg2, err := s2.GetConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg2.AutomaticallyPrune)
}

func TestSetConfigRejectsUnknownCodec(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.SetConfig(ctx, Config{PayloadCodec: "msgpack"})
	assert.Error(t, err)
}

func TestMaxBatchSize(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, maxBindParameters/insertParams, s.MaxBatchSize())
}
