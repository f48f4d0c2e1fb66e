// Package maintenance coordinates the exclusive vacuum sequence against a
// store: drain traffic, optionally back up, prune the log, compact the
// backing file, persist the resulting policy, reopen.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hupe1980/embedb/resource"
	"github.com/hupe1980/embedb/store"
)

// ErrBackupFailed marks a run that aborted because the configured Backuper
// could not ship the pre-maintenance snapshot. The underlying cause is
// wrapped.
var ErrBackupFailed = errors.New("backup failed")

// Logger is a simple interface for logging.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Infof(format string, args ...interface{})  {}
func (l *noopLogger) Warnf(format string, args ...interface{})  {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

// Backuper ships a consistent snapshot file to durable storage and returns
// its final location.
type Backuper interface {
	Backup(ctx context.Context, path string) (string, error)
}

// Options configure a Runner.
type Options struct {
	// Logger receives progress and anomaly output. Defaults to a no-op
	// logger.
	Logger Logger

	// Backup, if set, receives a consistent snapshot of the store before
	// any entry is pruned. A failed backup aborts the run.
	Backup Backuper

	// Controller throttles the run against other background work. Optional.
	Controller *resource.Controller
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	Logger: &noopLogger{},
}

// Result reports one completed maintenance run.
type Result struct {
	// SizeBefore and SizeAfter are the backing file sizes in bytes around
	// the run.
	SizeBefore int64
	SizeAfter  int64

	// BytesReclaimed is SizeBefore minus SizeAfter, never negative. A
	// store that grows during maintenance is logged as an anomaly and
	// reported as zero.
	BytesReclaimed int64

	// EntriesPurged is the number of log entries the prune removed.
	EntriesPurged int64

	// BackupLocation is where the pre-maintenance snapshot was stored, if
	// a Backuper was configured.
	BackupLocation string

	Duration time.Duration
}

// Runner executes the maintenance sequence. One run owns the store
// exclusively from begin to end; no read or write interleaves with it.
type Runner struct {
	store  *store.Store
	logger Logger
	backup Backuper
	rc     *resource.Controller
}

// New creates a Runner for the given store.
func New(s *store.Store, optFns ...func(o *Options)) *Runner {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = &noopLogger{}
	}

	return &Runner{
		store:  s,
		logger: opts.Logger,
		backup: opts.Backup,
		rc:     opts.Controller,
	}
}

// Run executes backup (optional), prune, compact and config persistence as
// one exclusive sequence. If the prune fails the compaction does not run.
// Cancellation is honored between units; a unit that has started always
// completes its atomic commit or rollback.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.rc.AcquireBackground(ctx); err != nil {
		return nil, err
	}
	defer r.rc.ReleaseBackground()

	if err := r.store.BeginMaintenance(); err != nil {
		return nil, err
	}
	defer r.store.EndMaintenance()

	start := time.Now()

	sizeBefore, err := r.store.Size(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{SizeBefore: sizeBefore}

	if r.backup != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := r.runBackup(ctx)
		if err != nil {
			r.logger.Errorf("backup failed, aborting maintenance: %v", err)
			return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
		}
		res.BackupLocation = loc
		r.logger.Infof("backup stored at %s", loc)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	purged, err := r.store.PurgeLog(ctx)
	if err != nil {
		r.logger.Errorf("log prune failed, skipping compaction: %v", err)
		return nil, err
	}
	res.EntriesPurged = purged

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.store.Compact(ctx); err != nil {
		r.logger.Errorf("compaction failed: %v", err)
		return nil, err
	}

	cfg, err := r.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg.AutomaticallyPrune = true
	if err := r.store.SetConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to persist maintenance config: %w", err)
	}

	sizeAfter, err := r.store.Size(ctx)
	if err != nil {
		return nil, err
	}
	res.SizeAfter = sizeAfter

	res.BytesReclaimed = sizeBefore - sizeAfter
	if res.BytesReclaimed < 0 {
		// Reclaim can never be negative; report it and clamp rather than
		// surfacing a nonsense number.
		r.logger.Warnf("store grew during maintenance: before=%d after=%d", sizeBefore, sizeAfter)
		res.BytesReclaimed = 0
	}

	res.Duration = time.Since(start)

	r.logger.Infof("maintenance complete: purged %d entries, reclaimed %d bytes in %s",
		res.EntriesPurged, res.BytesReclaimed, res.Duration)

	return res, nil
}

// runBackup snapshots the store into a temporary file next to the backing
// file and ships it through the configured Backuper.
func (r *Runner) runBackup(ctx context.Context) (string, error) {
	tmp := fmt.Sprintf("%s.backup.%d", r.store.Path(), time.Now().UnixNano())
	defer func() { _ = os.Remove(tmp) }()

	if err := r.store.BackupInto(ctx, tmp); err != nil {
		return "", err
	}

	return r.backup.Backup(ctx, tmp)
}
