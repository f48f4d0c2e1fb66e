package embedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedb/maintenance"
	"github.com/hupe1980/embedb/record"
	"github.com/hupe1980/embedb/store"
)

func newTestDB(t *testing.T, optFns ...Option) *DB {
	t.Helper()

	db, err := Open(context.Background(), t.TempDir(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testCollection(t *testing.T, db *DB) *Collection {
	t.Helper()

	col, err := db.Collection(context.Background(), "articles")
	require.NoError(t, err)

	return col
}

// articleRecords is the shared seed batch: two records with metadata, one
// without.
func articleRecords() record.RecordSet {
	return record.RecordSet{
		IDs:        []string{"a", "b", "c"},
		Embeddings: [][]float32{{1, 0}, {0, 1}, {1, 1}},
		Metadatas: []record.Metadata{
			{"year": record.Int(2023)},
			{"year": record.Int(2024)},
			nil,
		},
		Documents: []string{"alpha doc", "beta doc", "gamma doc"},
	}
}

func TestOpen(t *testing.T) {
	t.Run("ReopenAfterClose", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		db, err := Open(ctx, dir)
		require.NoError(t, err)

		col, err := db.Collection(ctx, "articles")
		require.NoError(t, err)
		_, err = col.Add(ctx, articleRecords())
		require.NoError(t, err)
		require.NoError(t, db.Close())

		db, err = Open(ctx, dir)
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		col, err = db.Collection(ctx, "articles")
		require.NoError(t, err)

		n, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("ExclusiveDirectory", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		db, err := Open(ctx, dir)
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		_, err = Open(ctx, dir)
		require.Error(t, err)
	})

	t.Run("Heartbeat", func(t *testing.T) {
		db := newTestDB(t)

		first := db.Heartbeat()
		second := db.Heartbeat()
		assert.Positive(t, first)
		assert.GreaterOrEqual(t, second, first)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, t.TempDir())
	require.NoError(t, err)

	col, err := db.Collection(ctx, "articles")
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = col.Count(ctx)
	assert.ErrorIs(t, err, store.ErrClosed)

	_, err = db.Collection(ctx, "articles")
	assert.ErrorIs(t, err, store.ErrClosed)

	var nilDB *DB
	assert.NoError(t, nilDB.Close())
}

func TestCollection(t *testing.T) {
	t.Run("GetOrCreate", func(t *testing.T) {
		ctx := context.Background()
		db := newTestDB(t)

		col, err := db.Collection(ctx, "articles")
		require.NoError(t, err)
		assert.Equal(t, "articles", col.Name())
		assert.NotEmpty(t, col.ID())

		again, err := db.Collection(ctx, "articles")
		require.NoError(t, err)
		assert.Equal(t, col.ID(), again.ID())
	})

	t.Run("DimensionFixedByFirstAppend", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		dim, err := col.Dimension(ctx)
		require.NoError(t, err)
		assert.Zero(t, dim)

		_, err = col.Add(ctx, articleRecords())
		require.NoError(t, err)

		dim, err = col.Dimension(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, dim)
	})

	t.Run("RejectsInvalidNames", func(t *testing.T) {
		ctx := context.Background()
		db := newTestDB(t)

		for _, name := range []string{
			"ab",
			"-leading",
			"trailing-",
			"two..dots",
			"10.2.3.4",
			"has space",
		} {
			_, err := db.Collection(ctx, name)
			require.Error(t, err, "name %q", name)
			assert.True(t, IsKind(err, KindArgument), "name %q", name)
		}
	})

	t.Run("List", func(t *testing.T) {
		ctx := context.Background()
		db := newTestDB(t)

		_, err := db.Collection(ctx, "zeta")
		require.NoError(t, err)
		_, err = db.Collection(ctx, "alpha")
		require.NoError(t, err)

		cols, err := db.Collections(ctx)
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "alpha", cols[0].Name)
		assert.Equal(t, "zeta", cols[1].Name)
	})
}

func TestAdd(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		n, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("SkipsExistingIDs", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		n, err := col.Add(ctx, record.RecordSet{
			IDs:        []string{"b", "d"},
			Embeddings: [][]float32{{9, 9}, {2, 2}},
			Documents:  []string{"should not land", "delta doc"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := col.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, got.IDs)
		// The existing record kept its original document.
		assert.Equal(t, "beta doc", got.Documents[1])
	})

	t.Run("AllExistingIsNoOp", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		n, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ReportsAllDuplicateIDs", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		var (
			ids  []string
			embs [][]float32
		)
		for i := 0; i < 15; i++ {
			id := fmt.Sprintf("dup-%d", i)
			ids = append(ids, id, id)
			embs = append(embs, []float32{1}, []float32{1})
		}
		for i := 0; i < 15; i++ {
			ids = append(ids, fmt.Sprintf("uniq-%d", i))
			embs = append(embs, []float32{1})
		}

		_, err := col.Add(ctx, record.RecordSet{IDs: ids, Embeddings: embs})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindDuplicate))

		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 15, e.Count)
		assert.Contains(t, e.Error(), "found 15 duplicated IDs")
	})

	t.Run("RequiresEmbeddings", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, record.RecordSet{
			IDs:       []string{"a"},
			Documents: []string{"no vector"},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
	})

	t.Run("RejectsEmptyEmbedding", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, record.RecordSet{
			IDs:        []string{"a"},
			Embeddings: [][]float32{{}},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
	})

	t.Run("RejectsDimensionMismatch", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		_, err = col.Add(ctx, record.RecordSet{
			IDs:        []string{"d"},
			Embeddings: [][]float32{{1, 2, 3}},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
		assert.Contains(t, err.Error(), "dimension mismatch")
	})

	t.Run("RejectsImages", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, record.RecordSet{
			IDs:        []string{"a"},
			Embeddings: [][]float32{{1, 0}},
			Images:     [][]byte{{0x89, 0x50}},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindArgument))
	})

	t.Run("RejectsMismatchedLengths", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, record.RecordSet{
			IDs:        []string{"a", "b"},
			Embeddings: [][]float32{{1, 0}, {0, 1}},
			Documents:  []string{"only one"},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
	})

	t.Run("RejectsEmptyMetadata", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, record.RecordSet{
			IDs:        []string{"a"},
			Embeddings: [][]float32{{1, 0}},
			Metadatas:  []record.Metadata{{}},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
	})

	t.Run("RejectsOversizedBatch", func(t *testing.T) {
		ctx := context.Background()
		db := newTestDB(t)
		col := testCollection(t, db)

		n := db.MaxBatchSize() + 1
		ids := make([]string, n)
		embs := make([][]float32, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("id-%d", i)
			embs[i] = []float32{float32(i)}
		}

		_, err := col.Add(ctx, record.RecordSet{IDs: ids, Embeddings: embs})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindArgument))
		assert.Contains(t, err.Error(), "exceeds maximum batch size")
	})
}

func TestUpdate(t *testing.T) {
	t.Run("MergesProvidedFields", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		n, err := col.Update(ctx, record.RecordSet{
			IDs: []string{"b"},
			Metadatas: []record.Metadata{
				{"year": record.Int(2030), "tag": record.String("updated")},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.IDs = []string{"b"}
			o.Include = []string{"embeddings", "metadatas", "documents"}
		})
		require.NoError(t, err)
		require.Len(t, got.IDs, 1)

		// Untouched fields survive the rewrite.
		assert.Equal(t, []float32{0, 1}, got.Embeddings[0])
		assert.Equal(t, "beta doc", got.Documents[0])

		// Update keys overlay the stored document key by key.
		assert.Equal(t, record.Int(2030), got.Metadatas[0]["year"])
		assert.Equal(t, record.String("updated"), got.Metadatas[0]["tag"])
	})

	t.Run("ReplacesEmbedding", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		_, err = col.Update(ctx, record.RecordSet{
			IDs:        []string{"a"},
			Embeddings: [][]float32{{5, 5}},
		})
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.IDs = []string{"a"}
			o.Include = []string{"embeddings"}
		})
		require.NoError(t, err)
		assert.Equal(t, []float32{5, 5}, got.Embeddings[0])
	})

	t.Run("SkipsUnknownIDs", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		n, err := col.Update(ctx, record.RecordSet{
			IDs:       []string{"a", "zzz"},
			Documents: []string{"alpha doc v2", "never lands"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestUpsert(t *testing.T) {
	t.Run("InsertsAndUpdates", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		err = col.Upsert(ctx, record.RecordSet{
			IDs:        []string{"a", "d"},
			Embeddings: [][]float32{{7, 7}, {2, 2}},
			Documents:  []string{"", "delta doc"},
		})
		require.NoError(t, err)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, count)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.IDs = []string{"a", "d"}
			o.Include = []string{"embeddings", "documents"}
		})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "d"}, got.IDs)

		// Existing record: new embedding, document left alone.
		assert.Equal(t, []float32{7, 7}, got.Embeddings[0])
		assert.Equal(t, "alpha doc", got.Documents[0])

		// New record lands as given.
		assert.Equal(t, []float32{2, 2}, got.Embeddings[1])
		assert.Equal(t, "delta doc", got.Documents[1])
	})

	t.Run("RequiresEmbeddings", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		err := col.Upsert(ctx, record.RecordSet{
			IDs:       []string{"a"},
			Documents: []string{"no vector"},
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindShape))
	})
}

func TestDelete(t *testing.T) {
	t.Run("ByIDs", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		deleted, err := col.Delete(ctx, func(o *DeleteOptions) {
			o.IDs = []string{"b"}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, deleted)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ByWhere", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		deleted, err := col.Delete(ctx, func(o *DeleteOptions) {
			o.Where = map[string]any{"year": map[string]any{"$gte": 2024}}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, deleted)
	})

	t.Run("ByWhereDocument", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		deleted, err := col.Delete(ctx, func(o *DeleteOptions) {
			o.WhereDocument = map[string]any{"$contains": "gamma"}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, deleted)
	})

	t.Run("CombinedSelectorsIntersect", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		deleted, err := col.Delete(ctx, func(o *DeleteOptions) {
			o.IDs = []string{"a", "b"}
			o.Where = map[string]any{"year": map[string]any{"$lt": 2024}}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deleted)
	})

	t.Run("RequiresSelector", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Delete(ctx)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindArgument))
	})

	t.Run("UnknownIDsIgnored", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		deleted, err := col.Delete(ctx, func(o *DeleteOptions) {
			o.IDs = []string{"zzz"}
		})
		require.NoError(t, err)
		assert.Empty(t, deleted)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestGet(t *testing.T) {
	t.Run("DefaultInclude", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, got.IDs)
		assert.NotNil(t, got.Metadatas)
		assert.NotNil(t, got.Documents)
		assert.Nil(t, got.Embeddings)
		assert.Nil(t, got.URIs)

		// Record without metadata stays nil inside a materialized field.
		assert.Nil(t, got.Metadatas[2])
		assert.Equal(t, "gamma doc", got.Documents[2])
	})

	t.Run("IncludeEmbeddings", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.Include = []string{"embeddings"}
		})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 0}, {0, 1}, {1, 1}}, got.Embeddings)
		assert.Nil(t, got.Documents)
	})

	t.Run("WhereFilter", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.Where = map[string]any{"year": map[string]any{"$gte": 2024}}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, got.IDs)
	})

	t.Run("WhereDocumentFilter", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.WhereDocument = map[string]any{"$contains": "doc"}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, got.IDs)
	})

	t.Run("Paging", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.Offset = 1
			o.Limit = 1
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, got.IDs)

		got, err = col.Get(ctx, func(o *GetOptions) {
			o.Offset = 5
		})
		require.NoError(t, err)
		assert.Empty(t, got.IDs)
	})

	t.Run("UnknownIDsAbsent", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		got, err := col.Get(ctx, func(o *GetOptions) {
			o.IDs = []string{"a", "zzz"}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, got.IDs)
	})

	t.Run("RejectsBadInclude", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		for _, include := range [][]string{
			{},
			{"ids"},
			{"images"},
			{"distances"},
		} {
			_, err := col.Get(ctx, func(o *GetOptions) {
				o.Include = include
			})
			require.Error(t, err, "include %v", include)
			assert.True(t, IsKind(err, KindArgument), "include %v", include)
		}
	})

	t.Run("RejectsNegativePaging", func(t *testing.T) {
		ctx := context.Background()
		col := testCollection(t, newTestDB(t))

		_, err := col.Get(ctx, func(o *GetOptions) { o.Limit = -1 })
		require.Error(t, err)
		assert.True(t, IsKind(err, KindArgument))

		_, err = col.Get(ctx, func(o *GetOptions) { o.Offset = -1 })
		require.Error(t, err)
		assert.True(t, IsKind(err, KindArgument))
	})
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	collector := &BasicMetricsCollector{}
	db := newTestDB(t, WithMetricsCollector(collector))
	col := testCollection(t, db)

	_, err := col.Add(ctx, articleRecords())
	require.NoError(t, err)

	_, err = col.Add(ctx, record.RecordSet{IDs: []string{"x"}})
	require.Error(t, err)

	stats := collector.GetStats()
	assert.EqualValues(t, 1, stats.AppendCount)
	assert.EqualValues(t, 3, stats.AppendEntries)
	assert.EqualValues(t, 0, stats.AppendErrors)
	assert.EqualValues(t, 1, stats.ValidationErrors)

	_, err = db.RunMaintenance(ctx)
	require.NoError(t, err)

	stats = collector.GetStats()
	assert.EqualValues(t, 1, stats.PurgeCount)
	assert.EqualValues(t, 1, stats.CompactionCount)
}

type fakeIndex struct {
	mu      sync.Mutex
	applied []store.LogEntry
	fail    error
}

func (f *fakeIndex) Apply(_ context.Context, _ string, entries []store.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, entries...)
	return nil
}

func (f *fakeIndex) entries() []store.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]store.LogEntry, len(f.applied))
	copy(out, f.applied)
	return out
}

func TestVectorIndexFeed(t *testing.T) {
	t.Run("ReceivesCommittedEntries", func(t *testing.T) {
		ctx := context.Background()
		idx := &fakeIndex{}
		col := testCollection(t, newTestDB(t, WithVectorIndex(idx)))

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		_, err = col.Delete(ctx, func(o *DeleteOptions) { o.IDs = []string{"b"} })
		require.NoError(t, err)

		entries := idx.entries()
		require.Len(t, entries, 4)
		assert.Equal(t, store.OperationAdd, entries[0].Operation)
		assert.Equal(t, store.OperationDelete, entries[3].Operation)
		assert.Equal(t, "b", entries[3].ID)
	})

	t.Run("FailureSurfacesButDataIsDurable", func(t *testing.T) {
		ctx := context.Background()
		idx := &fakeIndex{fail: errors.New("index unavailable")}
		col := testCollection(t, newTestDB(t, WithVectorIndex(idx)))

		_, err := col.Add(ctx, articleRecords())
		require.Error(t, err)

		// The append committed before the feed failed.
		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestRunMaintenance(t *testing.T) {
	t.Run("PrunesAndCompacts", func(t *testing.T) {
		ctx := context.Background()
		db := newTestDB(t)
		col := testCollection(t, db)

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)
		_, err = col.Update(ctx, record.RecordSet{
			IDs:       []string{"a"},
			Documents: []string{"alpha doc v2"},
		})
		require.NoError(t, err)
		_, err = col.Delete(ctx, func(o *DeleteOptions) { o.IDs = []string{"b"} })
		require.NoError(t, err)

		// Log: three adds, one update, one tombstone. Live: a and c.
		res, err := db.RunMaintenance(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, res.EntriesPurged)
		assert.Positive(t, res.SizeBefore)
		assert.Positive(t, res.SizeAfter)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		got, err := col.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, got.IDs)
		assert.Equal(t, []string{"alpha doc v2", "gamma doc"}, got.Documents)
	})

	t.Run("ShipsBackupFirst", func(t *testing.T) {
		ctx := context.Background()
		sink := &fakeBackuper{location: "mem://backups/1"}
		db := newTestDB(t, WithBackup(sink))
		col := testCollection(t, db)

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)

		res, err := db.RunMaintenance(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mem://backups/1", res.BackupLocation)
		assert.True(t, sink.called)
	})

	t.Run("BackupFailureAborts", func(t *testing.T) {
		ctx := context.Background()
		sink := &fakeBackuper{fail: errors.New("sink offline")}
		collector := &BasicMetricsCollector{}
		db := newTestDB(t, WithBackup(sink), WithMetricsCollector(collector))
		col := testCollection(t, db)

		_, err := col.Add(ctx, articleRecords())
		require.NoError(t, err)
		_, err = col.Update(ctx, record.RecordSet{
			IDs:       []string{"a"},
			Documents: []string{"alpha doc v2"},
		})
		require.NoError(t, err)

		_, err = db.RunMaintenance(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, maintenance.ErrBackupFailed)
		assert.EqualValues(t, 1, collector.GetStats().BackupErrors)

		// Nothing was pruned: the superseded entry is still in the log.
		entries, err := db.store.Entries(ctx, col.ID(), 0, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})
}

type fakeBackuper struct {
	location string
	fail     error
	called   bool
}

func (f *fakeBackuper) Backup(_ context.Context, path string) (string, error) {
	f.called = true
	if f.fail != nil {
		return "", f.fail
	}
	if path == "" {
		return "", errors.New("empty snapshot path")
	}
	return f.location, nil
}
