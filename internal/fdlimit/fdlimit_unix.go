//go:build !windows

// Package fdlimit raises the process file descriptor limit toward a hint.
// A store under load holds the backing file, its WAL side files, the lock
// file and one descriptor per connection; default soft limits on some
// distributions are too low for that.
package fdlimit

import (
	"golang.org/x/sys/unix"
)

// Raise lifts the soft RLIMIT_NOFILE toward hint, capped at the hard limit.
// It returns the soft limit now in effect. A zero hint, or a hint at or
// below the current limit, leaves the limit untouched. Raise never lowers
// the limit.
func Raise(hint uint64) (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}

	if hint == 0 || limit.Cur >= hint {
		return limit.Cur, nil
	}

	limit.Cur = hint
	if limit.Cur > limit.Max {
		limit.Cur = limit.Max
	}

	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}

	return limit.Cur, nil
}
