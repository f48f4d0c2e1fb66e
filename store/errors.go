package store

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrInMaintenance is returned when a read or write arrives while the
	// store is in its exclusive maintenance window.
	ErrInMaintenance = errors.New("store is in maintenance")

	// ErrNotInMaintenance is returned when a maintenance operation is
	// attempted outside a maintenance window.
	ErrNotInMaintenance = errors.New("store is not in maintenance")

	// ErrCollectionNotFound is returned when a collection name or ID does
	// not resolve.
	ErrCollectionNotFound = errors.New("collection not found")
)

// ErrDimensionMismatch indicates an embedding whose dimensionality does not
// match the owning collection.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// MaintenanceError reports a failed maintenance unit (log pruning, file
// compaction, config persistence). The store is left in its last consistent
// state; the failed invocation is not retried automatically.
type MaintenanceError struct {
	Op    string
	cause error
}

func (e *MaintenanceError) Error() string {
	return fmt.Sprintf("maintenance %s failed: %v", e.Op, e.cause)
}

func (e *MaintenanceError) Unwrap() error { return e.cause }

func newMaintenanceError(op string, cause error) *MaintenanceError {
	return &MaintenanceError{Op: op, cause: cause}
}
