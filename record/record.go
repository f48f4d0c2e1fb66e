package record

import (
	"fmt"
	"strings"
)

// Field enumerates the recognized record set fields. The enumeration
// is closed: every field a record set can carry is listed here, and
// lookups by wire name go through FieldByName.
type Field uint8

const (
	// FieldIDs is the caller-assigned identifier sequence.
	FieldIDs Field = iota
	// FieldEmbeddings is the vector sequence.
	FieldEmbeddings
	// FieldMetadatas is the metadata document sequence.
	FieldMetadatas
	// FieldDocuments is the document text sequence.
	FieldDocuments
	// FieldImages is the opaque image payload sequence.
	FieldImages
	// FieldURIs is the opaque reference sequence.
	FieldURIs

	numFields
)

var fieldNames = [numFields]string{"ids", "embeddings", "metadatas", "documents", "images", "uris"}

// String returns the wire name of the field.
func (f Field) String() string {
	if f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Fields returns every recognized field in declaration order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// FieldByName resolves a wire name to its Field. The second return is
// false for names outside the closed enumeration.
func FieldByName(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// RecordSet is a batch of records expressed as parallel optional
// sequences keyed by field.
//
// A nil sequence means the field was not provided. An empty non-nil
// sequence is never treated as absent: it is rejected as a caller
// error wherever presence is asked for, since the two cases are
// indistinguishable to downstream consumers.
type RecordSet struct {
	IDs        []string
	Embeddings [][]float32
	Metadatas  []Metadata
	Documents  []string
	Images     [][]byte
	URIs       []string
}

// Present reports whether the field carries a sequence, empty or not.
func (rs *RecordSet) Present(f Field) bool {
	switch f {
	case FieldIDs:
		return rs.IDs != nil
	case FieldEmbeddings:
		return rs.Embeddings != nil
	case FieldMetadatas:
		return rs.Metadatas != nil
	case FieldDocuments:
		return rs.Documents != nil
	case FieldImages:
		return rs.Images != nil
	case FieldURIs:
		return rs.URIs != nil
	default:
		return false
	}
}

// FieldLen returns the sequence length of a field; 0 when absent.
func (rs *RecordSet) FieldLen(f Field) int {
	switch f {
	case FieldIDs:
		return len(rs.IDs)
	case FieldEmbeddings:
		return len(rs.Embeddings)
	case FieldMetadatas:
		return len(rs.Metadatas)
	case FieldDocuments:
		return len(rs.Documents)
	case FieldImages:
		return len(rs.Images)
	case FieldURIs:
		return len(rs.URIs)
	default:
		return 0
	}
}

// Len returns the batch length: the length of the first provided
// field, 0 if nothing is provided.
func (rs *RecordSet) Len() int {
	for _, f := range Fields() {
		if rs.Present(f) {
			return rs.FieldLen(f)
		}
	}
	return 0
}

// Validate checks the parallel-sequence invariant: every provided
// field must have the same length. It returns a ShapeError naming the
// offending fields otherwise.
func (rs *RecordSet) Validate() error {
	n := -1
	var mismatched []string
	for _, f := range Fields() {
		if !rs.Present(f) {
			continue
		}
		l := rs.FieldLen(f)
		if n == -1 {
			n = l
			continue
		}
		if l != n {
			mismatched = append(mismatched, fmt.Sprintf("%s (%d)", f, l))
		}
	}
	if len(mismatched) > 0 {
		return newShapeErrorf("Expected all provided fields to have the same length, got %d and %s", n, strings.Join(mismatched, ", "))
	}
	return nil
}

// ContainsData reports whether at least one of the requested fields is
// provided and non-empty.
//
// The include names are validated first: an empty include list or an
// unrecognized name is an ArgumentError, and a requested field that is
// present but empty is a ShapeError, because an empty sequence is
// ambiguous with "not provided" and therefore a caller error.
func (rs *RecordSet) ContainsData(include []string) (bool, error) {
	if len(include) == 0 {
		return false, newArgumentErrorf("Expected include to be a non-empty list")
	}

	fields := make([]Field, len(include))
	for i, name := range include {
		f, ok := FieldByName(name)
		if !ok {
			return false, newArgumentErrorf("Expected include key to be a a known field of RecordSet, got %s", name)
		}
		fields[i] = f
	}

	for i, f := range fields {
		if rs.Present(f) && rs.FieldLen(f) == 0 {
			return false, newShapeErrorf("Expected %s to be a non-empty list", include[i])
		}
	}

	for _, f := range fields {
		if rs.Present(f) && rs.FieldLen(f) > 0 {
			return true, nil
		}
	}
	return false, nil
}
