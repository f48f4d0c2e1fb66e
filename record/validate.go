package record

import (
	"net"
	"regexp"
	"strings"
)

// ValidateEmbeddings checks a candidate embeddings batch before it may
// enter the store: the value must be a sequence of non-empty numeric
// sequences. Booleans are rejected even though they are
// integer-representable, since a boolean inside an embedding indicates
// a caller type error rather than intentional 0/1 encoding.
//
// Validation is a gate, not a transform: on success the embeddings are
// returned unchanged in canonical [][]float32 form.
func ValidateEmbeddings(value any) ([][]float32, error) {
	switch v := value.(type) {
	case [][]float32:
		if err := checkEmbeddingShape(len(v)); err != nil {
			return nil, err
		}
		for _, e := range v {
			if len(e) == 0 {
				return nil, errEmptyEmbedding()
			}
		}
		return v, nil
	case [][]float64:
		if err := checkEmbeddingShape(len(v)); err != nil {
			return nil, err
		}
		out := make([][]float32, len(v))
		for i, e := range v {
			if len(e) == 0 {
				return nil, errEmptyEmbedding()
			}
			out[i] = make([]float32, len(e))
			for j, x := range e {
				out[i][j] = float32(x)
			}
		}
		return out, nil
	case []any:
		if err := checkEmbeddingShape(len(v)); err != nil {
			return nil, err
		}
		out := make([][]float32, len(v))
		for i, e := range v {
			emb, err := embeddingFromAny(e)
			if err != nil {
				return nil, err
			}
			out[i] = emb
		}
		return out, nil
	default:
		return nil, newTypeErrorf("Expected embeddings to be a list, got %s", typeName(value))
	}
}

func checkEmbeddingShape(n int) error {
	if n == 0 {
		return newShapeErrorf("Expected embeddings to be a non-empty list")
	}
	return nil
}

func errEmptyEmbedding() *ShapeError {
	return newShapeErrorf("Expected each embedding in the embeddings to be a non-empty list")
}

// embeddingFromAny converts one untyped embedding to []float32,
// enforcing strict numeric elements.
func embeddingFromAny(e any) ([]float32, error) {
	switch emb := e.(type) {
	case []float32:
		if len(emb) == 0 {
			return nil, errEmptyEmbedding()
		}
		return emb, nil
	case []float64:
		if len(emb) == 0 {
			return nil, errEmptyEmbedding()
		}
		out := make([]float32, len(emb))
		for i, x := range emb {
			out[i] = float32(x)
		}
		return out, nil
	case []int:
		if len(emb) == 0 {
			return nil, errEmptyEmbedding()
		}
		out := make([]float32, len(emb))
		for i, x := range emb {
			out[i] = float32(x)
		}
		return out, nil
	case []any:
		if len(emb) == 0 {
			return nil, errEmptyEmbedding()
		}
		out := make([]float32, len(emb))
		for i, x := range emb {
			f, ok := numericValue(x)
			if !ok {
				return nil, newTypeErrorf("Expected each value in the embedding to be a int or float, got %v which is a %s", x, typeName(x))
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, newTypeErrorf("Expected each embedding in the embeddings to be a list, got %s", typeName(e))
	}
}

// numericValue accepts ints and floats; bool is explicitly not numeric.
func numericValue(x any) (float32, bool) {
	switch n := x.(type) {
	case int:
		return float32(n), true
	case int8:
		return float32(n), true
	case int16:
		return float32(n), true
	case int32:
		return float32(n), true
	case int64:
		return float32(n), true
	case uint:
		return float32(n), true
	case uint8:
		return float32(n), true
	case uint16:
		return float32(n), true
	case uint32:
		return float32(n), true
	case uint64:
		return float32(n), true
	case float32:
		return n, true
	case float64:
		return float32(n), true
	default:
		return 0, false
	}
}

// ValidateIDs checks a candidate identifier sequence: it must be a
// non-empty list of strings with no repeated values.
//
// Duplicate detection identifies all duplicated values, not just the
// first. The resulting DuplicateError reports the exact surplus count
// (len(ids) minus unique count) and elides samples beyond
// DuplicateSampleLimit. On success the input is returned unchanged.
func ValidateIDs(value any) ([]string, error) {
	var ids []string
	switch v := value.(type) {
	case []string:
		ids = v
	case []any:
		ids = make([]string, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, newTypeErrorf("Expected ID to be a str, got %v which is a %s", x, typeName(x))
			}
			ids[i] = s
		}
	default:
		return nil, newTypeErrorf("Expected IDs to be a list, got %s", typeName(value))
	}

	if len(ids) == 0 {
		return nil, newShapeErrorf("Expected IDs to be a non-empty list")
	}

	seen := make(map[string]struct{}, len(ids))
	dupSeen := make(map[string]struct{})
	var dups []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			if _, ok := dupSeen[id]; !ok {
				dupSeen[id] = struct{}{}
				dups = append(dups, id)
			}
			continue
		}
		seen[id] = struct{}{}
	}
	if count := len(ids) - len(seen); count > 0 {
		return nil, newDuplicateError(count, dups)
	}

	if v, ok := value.([]string); ok {
		return v, nil
	}
	return ids, nil
}

// ValidateMetadata checks one metadata document: it must be non-empty
// and every value must be a string, int, float or bool. The converted
// typed document is returned.
func ValidateMetadata(md map[string]any) (Metadata, error) {
	if len(md) == 0 {
		return nil, newShapeErrorf("Expected metadata to be a non-empty dict, got {}")
	}
	return MetadataFromAny(md)
}

var collectionNameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*[a-zA-Z0-9]$`)

// ValidateCollectionName enforces the collection naming rules: 3-63
// characters, alphanumeric at both ends, interior limited to
// alphanumerics plus [._-], no consecutive periods, and not an IPv4
// address.
func ValidateCollectionName(name string) error {
	ok := len(name) >= 3 && len(name) <= 63 &&
		collectionNameRE.MatchString(name) &&
		!strings.Contains(name, "..") &&
		net.ParseIP(name).To4() == nil
	if !ok {
		return newArgumentErrorf("Expected collection name that (1) contains 3-63 characters, (2) starts and ends with an alphanumeric character, (3) otherwise contains only alphanumeric characters, underscores or hyphens (-), (4) contains no two consecutive periods (..) and (5) is not a valid IPv4 address, got %s", name)
	}
	return nil
}

// ValidateBatchSize rejects batches larger than the store's configured
// maximum.
func ValidateBatchSize(batchSize, maxBatchSize int) error {
	if batchSize > maxBatchSize {
		return newArgumentErrorf("Batch size %d exceeds maximum batch size %d", batchSize, maxBatchSize)
	}
	return nil
}
