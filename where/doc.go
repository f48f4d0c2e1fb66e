// Package where implements the recursive predicate filter algebra used
// for read-time selection.
//
// A filter is a tree: leaves compare one metadata field (or the
// document text) against a literal, internal nodes combine children
// with $and / $or. Trees are built by Parse / ParseDocument from the
// map form used on the wire, and malformed filters are rejected at
// parse time, never silently evaluated to false. Evaluation is pure
// and safe for any number of concurrent callers against an immutable
// snapshot.
package where
