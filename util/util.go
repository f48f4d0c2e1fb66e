// Package util provides small helpers shared by the CLI and server.
package util

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// DirSize returns the total size in bytes of all regular files under dir,
// recursively. Files that vanish mid-walk are skipped rather than failing
// the walk; a live store rotates WAL files underneath us.
func DirSize(dir string) (int64, error) {
	var total int64

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}
