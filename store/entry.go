package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/embedb/record"
)

// Operation is the mutation kind of a log entry. The numeric codes are part
// of the persisted format and must not be reordered.
type Operation uint8

const (
	OperationAdd Operation = iota
	OperationUpdate
	OperationUpsert
	OperationDelete
)

func (o Operation) String() string {
	switch o {
	case OperationAdd:
		return "add"
	case OperationUpdate:
		return "update"
	case OperationUpsert:
		return "upsert"
	case OperationDelete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

// encodingFloat32 is the scalar encoding recorded alongside each vector blob.
const encodingFloat32 = "FLOAT32"

// LogEntry is one mutation in the append-only log. SeqID and CreatedAt are
// assigned by the store on append; callers leave them zero.
type LogEntry struct {
	SeqID     uint64
	CreatedAt time.Time
	Operation Operation
	ID        string
	Embedding []float32
	Metadata  record.Metadata
	Document  string
	URI       string
}

// payload is the JSON document persisted in the log's metadata column.
type payload struct {
	Metadata record.Metadata `json:"metadata,omitempty"`
	Document string          `json:"document,omitempty"`
	URI      string          `json:"uri,omitempty"`
}

// createdAtLayout matches SQLite's CURRENT_TIMESTAMP rendering, always UTC.
const createdAtLayout = "2006-01-02 15:04:05"

func parseCreatedAt(s string) (time.Time, error) {
	t, err := time.ParseInLocation(createdAtLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q: %w", s, err)
	}
	return t, nil
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
