// Package embedb provides an embedded embedding database for Go.
//
// Embedb stores record batches (ids, embeddings, metadatas, documents, uris)
// in an append-only log backed by a single SQLite file, with:
//
//   - A strict validation gate in front of every mutation
//   - Last-writer-wins snapshots for reads and metadata filtering
//   - Where / where-document filters evaluated over Roaring Bitmaps
//   - An exclusive maintenance window (prune + compact + optional backup)
//   - Pluggable backup sinks (filesystem, S3, MinIO, fan-out)
//
// # Quick Start
//
// Open a database directory and write to a collection:
//
//	ctx := context.Background()
//	db, err := embedb.Open(ctx, "./data")
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	col, _ := db.Collection(ctx, "articles")
//	_, _ = col.Add(ctx, record.RecordSet{
//	    IDs:        []string{"a", "b"},
//	    Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
//	    Documents:  []string{"first article", "second article"},
//	})
//
// Read records back with metadata filters:
//
//	got, _ := col.Get(ctx, func(o *embedb.GetOptions) {
//	    o.Where = map[string]any{"year": map[string]any{"$gte": 2024}}
//	    o.Include = []string{"documents", "metadatas"}
//	})
//
// # Maintenance
//
// The log grows with every mutation. RunMaintenance prunes it down to the
// latest entry per record and compacts the backing file, holding the store
// exclusively for the duration:
//
//	res, err := db.RunMaintenance(ctx)
//	if err == nil {
//	    fmt.Printf("reclaimed %d bytes\n", res.BytesReclaimed)
//	}
//
// Configure a backup sink to ship a consistent snapshot before anything is
// pruned:
//
//	db, _ := embedb.Open(ctx, "./data", embedb.WithBackup(sink))
//
// # Observability
//
// Logging and metrics are opt-in:
//
//	db, _ := embedb.Open(ctx, "./data",
//	    embedb.WithLogger(embedb.NewJSONLogger(slog.LevelInfo)),
//	    embedb.WithMetricsCollector(collector),
//	)
package embedb

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/embedb/maintenance"
	"github.com/hupe1980/embedb/record"
	"github.com/hupe1980/embedb/resource"
	"github.com/hupe1980/embedb/store"
)

// DB is an embedded embedding database rooted at one data directory. All
// methods are safe for concurrent use; RunMaintenance drains in-flight work
// and holds the store exclusively until it returns.
type DB struct {
	store   *store.Store
	metrics MetricsCollector
	logger  *Logger
	index   VectorIndex
	backup  maintenance.Backuper
	rc      *resource.Controller
}

// Open opens (or creates) the database rooted at dir. The directory is
// exclusively owned: a second open of the same directory fails until the
// first database is closed.
func Open(ctx context.Context, dir string, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	s, err := store.Open(ctx, dir, func(o *store.Options) {
		o.Logger = opts.logger
		if opts.codec != nil {
			o.Codec = opts.codec
		}
	})
	if err != nil {
		return nil, translateError(err)
	}

	return &DB{
		store:   s,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
		index:   opts.index,
		backup:  opts.backup,
		rc:      opts.controller,
	}, nil
}

// Heartbeat returns the current time in nanoseconds since the Unix epoch.
// It touches no store state; a successful call proves only that the
// database handle is alive.
func (db *DB) Heartbeat() int64 {
	return time.Now().UnixNano()
}

// MaxBatchSize returns the largest record batch a single mutation accepts.
func (db *DB) MaxBatchSize() int {
	return db.store.MaxBatchSize()
}

// Dir returns the data directory this database is rooted at.
func (db *DB) Dir() string {
	return db.store.Dir()
}

// Collection returns a handle on the named collection, creating the
// collection if it does not exist. The name is validated against the
// collection naming rules before it reaches the store.
func (db *DB) Collection(ctx context.Context, name string) (*Collection, error) {
	if err := record.ValidateCollectionName(name); err != nil {
		err = translateError(err)
		db.metrics.OnValidationError(kindOf(err))
		db.logger.LogValidation(ctx, "collection", err)
		return nil, err
	}

	meta, err := db.store.EnsureCollection(ctx, name)
	if err != nil {
		return nil, translateError(err)
	}

	return &Collection{db: db, meta: meta}, nil
}

// Collections lists all collections in name order.
func (db *DB) Collections(ctx context.Context) ([]store.Collection, error) {
	cols, err := db.store.Collections(ctx)
	return cols, translateError(err)
}

// RunMaintenance executes the exclusive maintenance sequence: drain
// traffic, back up if a sink is configured, prune the log down to the
// latest entry per record, compact the backing file and enable automatic
// pruning from then on.
//
// Reads and writes arriving during the run fail with a KindMaintenance
// error instead of blocking.
func (db *DB) RunMaintenance(ctx context.Context) (*maintenance.Result, error) {
	runner := maintenance.New(db.store, func(o *maintenance.Options) {
		o.Logger = db.logger
		o.Backup = db.backup
		o.Controller = db.rc
	})

	res, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, maintenance.ErrBackupFailed) {
			db.metrics.OnBackup(0, err)
			db.logger.LogBackup(ctx, "", err)
		}
		err = translateError(err)
		db.logger.LogMaintenance(ctx, 0, 0, err)
		return nil, err
	}

	db.metrics.OnPurge(res.EntriesPurged, res.Duration)
	db.metrics.OnCompaction(res.BytesReclaimed, res.Duration)
	if res.BackupLocation != "" {
		db.metrics.OnBackup(res.Duration, nil)
		db.logger.LogBackup(ctx, res.BackupLocation, nil)
	}
	db.logger.LogMaintenance(ctx, res.EntriesPurged, res.BytesReclaimed, nil)

	return res, nil
}
