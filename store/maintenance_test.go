package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeLogRemovesSupersededEntries(t *testing.T) {
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

	require.Equal(t, 5, logRowCount(t, s))

	require.NoError(t, s.BeginMaintenance())
	removed, err := s.PurgeLog(ctx)
	require.NoError(t, err)
	s.EndMaintenance()

	// a's original add, b's add and b's tombstone are gone.
	assert.Equal(t, int64(3), removed)
	assert.Equal(t, 2, logRowCount(t, s))

	snap, err := s.Snapshot(ctx, col.ID)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())

	pos, ok := snap.Position("a")
	require.True(t, ok)
	assert.Equal(t, []float32{9}, snap.Embedding(pos))

	_, ok = snap.Position("b")
	assert.False(t, ok)
}

func TestPurgeLogKeepsSequenceMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	seqBefore, err := s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1}),
		{Operation: OperationDelete, ID: "a"},
	})
	require.NoError(t, err)

	require.NoError(t, s.BeginMaintenance())
	_, err = s.PurgeLog(ctx)
	require.NoError(t, err)
	s.EndMaintenance()

	// Pruning must not recycle sequence markers.
	seqAfter, err := s.Append(ctx, col.ID, []LogEntry{addEntry("b", []float32{2})})
	require.NoError(t, err)
	assert.Greater(t, seqAfter, seqBefore)
}

func TestPurgeLogCorruptEntryFailsWithoutTruncation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1}),
		{Operation: OperationUpdate, ID: "a", Embedding: []float32{2}},
	})
	require.NoError(t, err)

	// Corrupt the surviving entry: a vector blob that cannot decode.
	_, err = s.db.Exec("UPDATE embeddings_queue SET vector = X'0102' WHERE seq_id = 2")
	require.NoError(t, err)

	rowsBefore := logRowCount(t, s)

	require.NoError(t, s.BeginMaintenance())
	_, err = s.PurgeLog(ctx)
	s.EndMaintenance()

	var me *MaintenanceError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "purge", me.Op)

	// No partial truncation is observable.
	assert.Equal(t, rowsBefore, logRowCount(t, s))
}

func TestPurgeLogIgnoresCorruptSupersededEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	_, err = s.Append(ctx, col.ID, []LogEntry{
		addEntry("a", []float32{1}),
		{Operation: OperationUpdate, ID: "a", Embedding: []float32{2}},
	})
	require.NoError(t, err)

	// Corrupting a superseded entry is harmless: the purge drops it anyway.
	_, err = s.db.Exec("UPDATE embeddings_queue SET vector = X'0102' WHERE seq_id = 1")
	require.NoError(t, err)

	require.NoError(t, s.BeginMaintenance())
	removed, err := s.PurgeLog(ctx)
	require.NoError(t, err)
	s.EndMaintenance()

	assert.Equal(t, int64(1), removed)
}

func TestCompactNeverIncreasesSize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	col, err := s.EnsureCollection(ctx, "docs")
	require.NoError(t, err)

	// Grow the file, then make most of it garbage.
	entries := make([]LogEntry, 0, 128)
	vec := make([]float32, 256)
	for i := range vec {
		vec[i] = float32(i)
	}
	for i := 0; i < 128; i++ {
		entries = append(entries, LogEntry{
			Operation: OperationAdd,
			ID:        "rec",
			Embedding: vec,
			Document:  "padding padding padding padding padding",
		})
	}
	_, err = s.Append(ctx, col.ID, entries)
	require.NoError(t, err)

	require.NoError(t, s.BeginMaintenance())

	_, err = s.PurgeLog(ctx)
	require.NoError(t, err)

	sizeBefore, err := s.Size(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Compact(ctx))

	sizeAfter, err := s.Size(ctx)
	require.NoError(t, err)

	s.EndMaintenance()

	assert.LessOrEqual(t, sizeAfter, sizeBefore)
}

func TestSetConfigAllowedDuringMaintenance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.BeginMaintenance())
	defer s.EndMaintenance()

	cfg, err := s.GetConfig(ctx)
	require.NoError(t, err)

	cfg.AutomaticallyPrune = true
	assert.NoError(t, s.SetConfig(ctx, cfg))
}
