// Package store implements the log-structured persistence layer.
//
// All mutations are appended to a write-ahead log table inside a single
// SQLite file (chroma.sqlite3) and tagged with a monotonically increasing
// sequence number. Current state is derived from the log: for every record
// ID only the latest entry counts, and a trailing delete means the record
// does not exist.
//
// The store is a small state machine. In the Open state it accepts
// concurrent reads and writes. Maintenance (log pruning and file
// compaction) runs in an exclusive Maintenance state that no read or write
// may overlap with; BeginMaintenance drains in-flight operations before it
// returns. One process owns a data directory at a time, enforced with an
// advisory file lock next to the database file.
package store
