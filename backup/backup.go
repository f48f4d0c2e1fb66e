// Package backup ships consistent store snapshots to durable sinks.
//
// The maintenance runner produces a single-file snapshot of the store; a
// Manager compresses and throttles the byte stream and hands it to a Sink
// (local directory, S3, MinIO). Restore is deliberately manual: an artifact
// is a plain SQLite file, optionally compressed, that replaces the backing
// file while the store is closed.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/embedb/resource"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Sink stores named backup artifacts.
type Sink interface {
	// Store uploads one artifact and returns its final location (a path
	// or URL a human can act on).
	Store(ctx context.Context, name string, r io.Reader) (string, error)
}

// Compression selects the stream compression applied to artifacts.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

func (c Compression) ext() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Options configure a Manager.
type Options struct {
	// Compression applied to the artifact stream. Defaults to zstd.
	Compression Compression

	// Controller rate-limits the artifact read against other background
	// IO. Optional.
	Controller *resource.Controller
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	Compression: CompressionZstd,
}

// Manager streams snapshot files into a Sink.
type Manager struct {
	sink        Sink
	compression Compression
	rc          *resource.Controller
}

// New creates a Manager shipping to the given sink.
func New(sink Sink, optFns ...func(o *Options)) *Manager {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Compression == "" {
		opts.Compression = CompressionZstd
	}

	return &Manager{
		sink:        sink,
		compression: opts.Compression,
		rc:          opts.Controller,
	}
}

// Backup streams the snapshot file at path into the sink and returns the
// artifact's location. The artifact name carries a UTC timestamp and the
// compression extension.
func (m *Manager) Backup(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Path is produced by the store
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := fmt.Sprintf("chroma-%s.sqlite3%s",
		time.Now().UTC().Format("20060102T150405Z"), m.compression.ext())

	var r io.Reader = resource.NewRateLimitedReader(ctx, f, m.rc)
	r, err = compressReader(r, m.compression)
	if err != nil {
		return "", err
	}

	loc, err := m.sink.Store(ctx, name, r)
	if err != nil {
		return "", fmt.Errorf("failed to store backup: %w", err)
	}
	return loc, nil
}

// compressReader wraps r so the returned reader yields the compressed
// stream. The encoder runs in a pump goroutine feeding a pipe; encoder
// errors surface through the pipe's read side.
func compressReader(r io.Reader, c Compression) (io.Reader, error) {
	switch c {
	case CompressionNone:
		return r, nil

	case CompressionZstd:
		pr, pw := io.Pipe()
		enc, err := zstd.NewWriter(pw)
		if err != nil {
			return nil, fmt.Errorf("failed to create compressor: %w", err)
		}
		go func() {
			_, copyErr := io.Copy(enc, r)
			closeErr := enc.Close()
			_ = pw.CloseWithError(errors.Join(copyErr, closeErr))
		}()
		return pr, nil

	case CompressionLZ4:
		pr, pw := io.Pipe()
		enc := lz4.NewWriter(pw)
		go func() {
			_, copyErr := io.Copy(enc, r)
			closeErr := enc.Close()
			_ = pw.CloseWithError(errors.Join(copyErr, closeErr))
		}()
		return pr, nil

	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
