// Package fs narrows filesystem access to the operations the store layout
// and backup sinks perform, behind an injectable interface so tests can
// fail writes at the boundaries that matter for crash safety: write, sync,
// close, and the final rename into place.
package fs

import (
	"io"
	"os"
)

// File is an open file handle. Durable writers must Sync before Close.
type File interface {
	io.ReadWriteCloser
	Sync() error
}

// FileSystem lays out data directories and writes artifacts.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
}

// LocalFS implements FileSystem on the host filesystem.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm) //nolint:gosec // G304: callers pass store-derived paths
}

func (LocalFS) Remove(name string) error              { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error  { return os.Rename(oldpath, newpath) }
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (LocalFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Default is the FileSystem used outside tests.
var Default FileSystem = LocalFS{}
