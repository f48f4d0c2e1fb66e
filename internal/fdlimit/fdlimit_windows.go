//go:build windows

// Package fdlimit raises the process file descriptor limit toward a hint.
package fdlimit

// Raise is a no-op on Windows, which has no rlimits. It reports the hint as
// the limit in effect.
func Raise(hint uint64) (uint64, error) {
	return hint, nil
}
