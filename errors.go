package embedb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/embedb/record"
	"github.com/hupe1980/embedb/store"
)

// Kind classifies a failure so callers can branch on what went wrong
// without matching on message text or on the concrete error type of the
// subsystem that produced it.
type Kind uint8

const (
	// KindUnknown marks errors outside the taxonomy, e.g. I/O failures.
	KindUnknown Kind = iota

	// KindType reports a value whose type cannot serve the field, such as
	// a boolean inside an embedding.
	KindType

	// KindShape reports input that is empty where content is required, or
	// parallel sequences whose lengths disagree.
	KindShape

	// KindArgument reports an invalid argument combination, such as an
	// empty include list or an oversized batch.
	KindArgument

	// KindDuplicate reports duplicated identifiers in a batch.
	KindDuplicate

	// KindMaintenance reports a failed maintenance unit. The store is left
	// in its last consistent state; the failed run is not retried.
	KindMaintenance
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindShape:
		return "shape"
	case KindArgument:
		return "argument"
	case KindDuplicate:
		return "duplicate"
	case KindMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message carries the caller-facing text
// verbatim; the error that triggered the classification (if any) can be
// accessed via errors.Unwrap.
type Error struct {
	Kind    Kind
	Message string

	// Count is the surplus occurrence count on KindDuplicate errors, zero
	// otherwise.
	Count int

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// IsKind reports whether err, anywhere in its chain, is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// kindOf extracts the classification of a translated error, KindUnknown
// for anything outside the taxonomy.
func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewTypeError builds a KindType error.
func NewTypeError(format string, args ...any) *Error {
	return &Error{Kind: KindType, Message: fmt.Sprintf(format, args...)}
}

// NewShapeError builds a KindShape error.
func NewShapeError(format string, args ...any) *Error {
	return &Error{Kind: KindShape, Message: fmt.Sprintf(format, args...)}
}

// NewArgumentError builds a KindArgument error.
func NewArgumentError(format string, args ...any) *Error {
	return &Error{Kind: KindArgument, Message: fmt.Sprintf(format, args...)}
}

// NewDuplicateError builds a KindDuplicate error carrying the surplus count.
func NewDuplicateError(count int, format string, args ...any) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...), Count: count}
}

// NewMaintenanceError builds a KindMaintenance error around its cause.
func NewMaintenanceError(cause error) *Error {
	return &Error{Kind: KindMaintenance, Message: cause.Error(), cause: cause}
}

// translateError lifts subsystem errors into the kind taxonomy. Messages
// pass through verbatim; errors with no classification are returned as-is.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	var typeErr *record.TypeError
	if errors.As(err, &typeErr) {
		return &Error{Kind: KindType, Message: typeErr.Msg, cause: err}
	}

	var shapeErr *record.ShapeError
	if errors.As(err, &shapeErr) {
		return &Error{Kind: KindShape, Message: shapeErr.Msg, cause: err}
	}

	var dimErr *store.ErrDimensionMismatch
	if errors.As(err, &dimErr) {
		return &Error{Kind: KindShape, Message: dimErr.Error(), cause: err}
	}

	var argErr *record.ArgumentError
	if errors.As(err, &argErr) {
		return &Error{Kind: KindArgument, Message: argErr.Msg, cause: err}
	}

	var dupErr *record.DuplicateError
	if errors.As(err, &dupErr) {
		return &Error{Kind: KindDuplicate, Message: dupErr.Error(), Count: dupErr.Count, cause: err}
	}

	var maintErr *store.MaintenanceError
	if errors.As(err, &maintErr) {
		return &Error{Kind: KindMaintenance, Message: maintErr.Error(), cause: err}
	}

	if errors.Is(err, store.ErrInMaintenance) || errors.Is(err, store.ErrNotInMaintenance) {
		return &Error{Kind: KindMaintenance, Message: err.Error(), cause: err}
	}

	return err
}
