package embedb

import (
	"log/slog"

	"github.com/hupe1980/embedb/codec"
	"github.com/hupe1980/embedb/maintenance"
	"github.com/hupe1980/embedb/resource"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	index            VectorIndex
	backup           maintenance.Backuper
	controller       *resource.Controller
}

// Option configures Open behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec used for log payloads of stores created
// by this open. Existing stores keep the codec recorded in their config.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &embedb.BasicMetricsCollector{}
//	db, _ := embedb.Open(ctx, dir, embedb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Appends: %d, Avg latency: %dns\n", stats.AppendCount, stats.AppendAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := embedb.NewJSONLogger(slog.LevelInfo)
//	db, _ := embedb.Open(ctx, dir, embedb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithVectorIndex attaches an external ANN index that is fed every
// committed log entry.
func WithVectorIndex(idx VectorIndex) Option {
	return func(o *options) {
		o.index = idx
	}
}

// WithBackup configures a pre-maintenance snapshot destination. When set,
// RunMaintenance ships a consistent snapshot before any entry is pruned;
// a failed backup aborts the run.
func WithBackup(b maintenance.Backuper) Option {
	return func(o *options) {
		o.backup = b
	}
}

// WithResourceController throttles maintenance and backup I/O through the
// given controller so background work cannot saturate the host.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	// Nil means disabled, which the no-op implementations express without
	// forcing call sites to check.
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}

	return o
}
