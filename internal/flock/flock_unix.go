//go:build unix

package flock

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive flock on f without blocking. The kernel releases
// the lock automatically if the process dies, so stale lock files are harmless.
func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
