// Package flock provides an advisory file lock used to enforce single-process
// ownership of a data directory.
package flock

import (
	"fmt"
	"os"
)

// Lock holds an acquired advisory lock. Release it with Release.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive, non-blocking lock on path, creating the file if
// needed. It fails immediately if another process holds the lock.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) //nolint:gosec // G304: Path is configurable
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in place;
// the lock is tied to the open descriptor, not the file's existence.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unlockFile(l.f); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
