package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by injected faults that carry no error of their own.
var ErrInjected = errors.New("injected fault")

// Fault describes the failure behavior applied to matching files. The zero
// value injects nothing.
type Fault struct {
	// FailWrites fails any Write that would push the file past AfterBytes.
	FailWrites bool
	AfterBytes int64

	FailOnSync  bool
	FailOnClose bool

	// Err overrides ErrInjected when set.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects faults into files whose path
// contains a registered substring. Everything else passes through.
type FaultyFS struct {
	base FileSystem

	mu        sync.Mutex
	rules     map[string]Fault
	renameErr error
}

// NewFaultyFS wraps base, or Default when base is nil.
func NewFaultyFS(base FileSystem) *FaultyFS {
	if base == nil {
		base = Default
	}
	return &FaultyFS{base: base, rules: make(map[string]Fault)}
}

// AddRule applies fault to every file subsequently opened whose path
// contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// FailRenames makes every Rename return err. Pass nil to restore.
func (f *FaultyFS) FailRenames(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameErr = err
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.base.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, fault := range f.rules {
		if strings.Contains(name, pattern) {
			return &faultyFile{File: file, fault: fault}, nil
		}
	}
	return file, nil
}

func (f *FaultyFS) Remove(name string) error { return f.base.Remove(name) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	err := f.renameErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.base.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.base.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.base.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailWrites && ff.written+int64(len(p)) > ff.fault.AfterBytes {
		return 0, ff.fault.err()
	}

	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
