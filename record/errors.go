package record

import (
	"fmt"
	"strings"
)

// DuplicateSampleLimit caps how many duplicated values a
// DuplicateError reports verbatim; the rest are elided.
const DuplicateSampleLimit = 5

// TypeError reports input of the wrong type, e.g. a string where a
// list was expected or a boolean inside an embedding.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// ShapeError reports input that is empty where content is required, or
// parallel sequences whose lengths disagree.
type ShapeError struct {
	Msg string
}

func (e *ShapeError) Error() string { return e.Msg }

// ArgumentError reports an invalid argument combination, e.g. an empty
// include list or an unrecognized field name.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

// DuplicateError reports duplicated identifiers in a batch.
//
// Count is the total number of surplus occurrences, computed as
// len(ids) minus the number of unique ids. Samples holds the distinct
// duplicated values in first-seen order, truncated at
// DuplicateSampleLimit; Elided is true when values were cut off.
type DuplicateError struct {
	Count   int
	Samples []string
	Elided  bool
}

func (e *DuplicateError) Error() string {
	samples := strings.Join(e.Samples, ", ")
	if e.Elided {
		samples += ", ..."
	}
	return fmt.Sprintf("Expected IDs to be unique, found %d duplicated IDs: %s", e.Count, samples)
}

func newTypeErrorf(format string, args ...any) *TypeError {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}

func newShapeErrorf(format string, args ...any) *ShapeError {
	return &ShapeError{Msg: fmt.Sprintf(format, args...)}
}

func newArgumentErrorf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

func newDuplicateError(count int, dups []string) *DuplicateError {
	e := &DuplicateError{Count: count, Samples: dups}
	if len(dups) > DuplicateSampleLimit {
		e.Samples = dups[:DuplicateSampleLimit]
		e.Elided = true
	}
	return e
}
