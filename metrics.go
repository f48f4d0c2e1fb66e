package embedb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    appendCounter    prometheus.Counter
//	    appendHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) OnAppend(count int, duration time.Duration, err error) {
//	    p.appendCounter.Add(float64(count))
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// OnAppend is called after each write batch reaches the log.
	// count is the number of entries appended, err is nil if successful.
	OnAppend(count int, duration time.Duration, err error)

	// OnPurge is called after a log prune with the number of entries
	// removed.
	OnPurge(entries int64, duration time.Duration)

	// OnCompaction is called after a completed maintenance run with the
	// bytes reclaimed by the rewrite.
	OnCompaction(bytesReclaimed int64, duration time.Duration)

	// OnValidationError is called when the gate rejects a batch.
	OnValidationError(kind Kind)

	// OnBackup is called after a snapshot was shipped (or failed to ship).
	OnBackup(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) OnAppend(int, time.Duration, error) {}
func (NoopMetricsCollector) OnPurge(int64, time.Duration)       {}
func (NoopMetricsCollector) OnCompaction(int64, time.Duration)  {}
func (NoopMetricsCollector) OnValidationError(Kind)             {}
func (NoopMetricsCollector) OnBackup(time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendEntries    atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	PurgeCount       atomic.Int64
	PurgedEntries    atomic.Int64
	CompactionCount  atomic.Int64
	ReclaimedBytes   atomic.Int64
	ValidationErrors atomic.Int64
	BackupCount      atomic.Int64
	BackupErrors     atomic.Int64
}

// OnAppend implements MetricsCollector.
func (b *BasicMetricsCollector) OnAppend(count int, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendEntries.Add(int64(count))
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// OnPurge implements MetricsCollector.
func (b *BasicMetricsCollector) OnPurge(entries int64, duration time.Duration) {
	b.PurgeCount.Add(1)
	b.PurgedEntries.Add(entries)
}

// OnCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) OnCompaction(bytesReclaimed int64, duration time.Duration) {
	b.CompactionCount.Add(1)
	b.ReclaimedBytes.Add(bytesReclaimed)
}

// OnValidationError implements MetricsCollector.
func (b *BasicMetricsCollector) OnValidationError(kind Kind) {
	b.ValidationErrors.Add(1)
}

// OnBackup implements MetricsCollector.
func (b *BasicMetricsCollector) OnBackup(duration time.Duration, err error) {
	b.BackupCount.Add(1)
	if err != nil {
		b.BackupErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AppendCount:      b.AppendCount.Load(),
		AppendEntries:    b.AppendEntries.Load(),
		AppendErrors:     b.AppendErrors.Load(),
		AppendAvgNanos:   b.getAvgAppendNanos(),
		PurgeCount:       b.PurgeCount.Load(),
		PurgedEntries:    b.PurgedEntries.Load(),
		CompactionCount:  b.CompactionCount.Load(),
		ReclaimedBytes:   b.ReclaimedBytes.Load(),
		ValidationErrors: b.ValidationErrors.Load(),
		BackupCount:      b.BackupCount.Load(),
		BackupErrors:     b.BackupErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAppendNanos() int64 {
	count := b.AppendCount.Load()
	if count == 0 {
		return 0
	}
	return b.AppendTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AppendCount      int64
	AppendEntries    int64
	AppendErrors     int64
	AppendAvgNanos   int64
	PurgeCount       int64
	PurgedEntries    int64
	CompactionCount  int64
	ReclaimedBytes   int64
	ValidationErrors int64
	BackupCount      int64
	BackupErrors     int64
}
