package embedb

import (
	"context"

	"github.com/hupe1980/embedb/store"
)

// VectorIndex consumes committed log entries so an external ANN structure
// can track the store. The DB never queries the index; it only feeds it,
// in commit order, after each successful append. Implementations decide
// how (and whether) to index each operation.
//
// Feeding is synchronous with the mutation that produced the entries: an
// Apply error fails the mutation from the caller's point of view, but the
// entries are already durable in the log, so a restarted index can rebuild
// from Entries.
type VectorIndex interface {
	Apply(ctx context.Context, collectionID string, entries []store.LogEntry) error
}
