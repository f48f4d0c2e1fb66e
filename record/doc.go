// Package record defines the typed data model for submitted batches
// and the validation gate every write must pass before it reaches the
// store.
//
// A RecordSet carries parallel optional sequences (ids, embeddings,
// metadatas, documents, images, uris). A nil sequence means the caller
// did not provide the field; an empty non-nil sequence is a caller
// error wherever the distinction matters.
//
// Validation failures are reported through a small closed taxonomy of
// error types (TypeError, ShapeError, ArgumentError, DuplicateError)
// with literal, stable messages so callers and tests can pattern-match
// them.
package record
