package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/embedb/internal/fs"
)

// Local is a Sink that stores artifacts in a directory on the local file
// system. Artifacts land under a temp name and are renamed into place once
// fully synced, so a crash mid-write never leaves a truncated artifact
// under its final name.
type Local struct {
	dir string
	fs  fs.FileSystem
}

// NewLocal creates a Local sink rooted at dir. The directory is created on
// first Store.
func NewLocal(dir string) *Local {
	return &Local{dir: dir, fs: fs.Default}
}

// Store writes the artifact and returns its path.
func (l *Local) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := l.fs.MkdirAll(l.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(l.dir, name)
	tmpPath := path + ".tmp"

	f, err := l.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(tmpPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = l.fs.Remove(tmpPath)
		return "", err
	}

	if err := l.fs.Rename(tmpPath, path); err != nil {
		_ = l.fs.Remove(tmpPath)
		return "", err
	}

	return path, nil
}
