package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/embedb/codec"
	"github.com/hupe1980/embedb/internal/flock"
	"github.com/hupe1980/embedb/internal/fs"
	_ "modernc.org/sqlite" // SQLite driver
)

// BackingFileName is the literal name of the SQLite file inside a data
// directory. Its presence marks a directory as a store.
const BackingFileName = "chroma.sqlite3"

const lockFileName = "LOCK"

const (
	// maxBindParameters is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
	maxBindParameters = 999
	// insertParams is the number of bind parameters per appended log row.
	insertParams = 6
)

type state uint8

const (
	stateOpen state = iota
	stateMaintenance
	stateClosed
)

// Logger is a simple interface for logging.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Infof(format string, args ...interface{})  {}
func (l *noopLogger) Warnf(format string, args ...interface{})  {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

// Options configure a Store.
type Options struct {
	// Logger receives store-level log output. Defaults to a no-op logger.
	Logger Logger

	// Codec encodes log payloads for stores created by this open. Existing
	// stores resolve their codec from the persisted config instead.
	Codec codec.Codec
}

// DefaultOptions are the defaults used by Open.
var DefaultOptions = Options{
	Logger: &noopLogger{},
	Codec:  codec.Default,
}

// Collection identifies one named vector collection. Dimension is zero
// until the first embedding is appended and fixed from then on.
type Collection struct {
	ID        string
	Name      string
	Dimension int
}

// Store is a log-structured store backed by a single SQLite file.
//
// Normal operations hold a read lock for their full duration and check the
// state under it, so BeginMaintenance's write lock drains all in-flight
// work before the maintenance window opens.
type Store struct {
	mu     sync.RWMutex
	state  state
	db     *sql.DB
	dir    string
	path   string
	lock   *flock.Lock
	codec  codec.Codec
	logger Logger
}

// Open opens (or creates) the store rooted at dir. The data directory is
// exclusively owned: a second open of the same directory fails until the
// first store is closed.
func Open(ctx context.Context, dir string, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = &noopLogger{}
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if err := fs.Default.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock, err := flock.Acquire(filepath.Join(dir, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("data directory %s is locked by another process: %w", dir, err)
	}

	path := filepath.Join(dir, BackingFileName)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		state:  stateOpen,
		db:     db,
		dir:    dir,
		path:   path,
		lock:   lock,
		logger: opts.Logger,
	}

	if err := s.init(ctx, opts.Codec); err != nil {
		_ = db.Close()
		_ = lock.Release()
		return nil, err
	}

	s.logger.Infof("opened store at %s (codec=%s)", path, s.codec.Name())

	return s, nil
}

func (s *Store) init(ctx context.Context, defaultCodec codec.Codec) error {
	// A single connection keeps pragma scope predictable and guarantees
	// VACUUM never races another transaction in this process.
	s.db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(ctx, s.db); err != nil {
		return err
	}

	if err := s.ensureConfig(ctx, defaultCodec); err != nil {
		return err
	}

	cfg, err := s.readConfig(ctx)
	if err != nil {
		return err
	}

	name := cfg.PayloadCodec
	if name == "" {
		name = defaultCodec.Name()
	}
	c, ok := codec.ByName(name)
	if !ok {
		return fmt.Errorf("unknown payload codec %q", name)
	}
	s.codec = c

	return nil
}

// ensureConfig writes the default config row on first initialization.
func (s *Store) ensureConfig(ctx context.Context, defaultCodec codec.Codec) error {
	cfg := DefaultConfig()
	cfg.PayloadCodec = defaultCodec.Name()

	raw, err := configCodec.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO embeddings_queue_config (id, config_json_str) VALUES (?, ?)",
		configRowID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	return nil
}

// Path returns the location of the backing SQLite file.
func (s *Store) Path() string { return s.path }

// Dir returns the data directory the store owns.
func (s *Store) Dir() string { return s.dir }

// MaxBatchSize returns the largest number of entries a single append may
// carry, derived from SQLite's bind parameter limit.
func (s *Store) MaxBatchSize() int { return maxBindParameters / insertParams }

// Close releases the database handle and the directory lock. Operations
// after Close return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed

	return errors.Join(s.db.Close(), s.lock.Release())
}

// callers hold s.mu.
func (s *Store) requireOpen() error {
	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateMaintenance:
		return ErrInMaintenance
	default:
		return nil
	}
}

// callers hold s.mu.
func (s *Store) requireMaintenance() error {
	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateOpen:
		return ErrNotInMaintenance
	default:
		return nil
	}
}

// BeginMaintenance transitions the store into its exclusive maintenance
// window. It blocks until every in-flight read and write has drained; from
// then on normal operations fail with ErrInMaintenance until
// EndMaintenance.
func (s *Store) BeginMaintenance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrClosed
	case stateMaintenance:
		return ErrInMaintenance
	}

	s.state = stateMaintenance
	return nil
}

// EndMaintenance reopens the store for normal traffic.
func (s *Store) EndMaintenance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateMaintenance {
		s.state = stateOpen
	}
}

// EnsureCollection returns the collection with the given name, creating it
// if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return Collection{}, err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (id, name, dimension) VALUES (?, ?, 0)",
		uuid.NewString(), name,
	)
	if err != nil {
		return Collection{}, fmt.Errorf("failed to create collection: %w", err)
	}

	return s.collectionByName(ctx, name)
}

// Collection looks up a collection by name.
func (s *Store) Collection(ctx context.Context, name string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return Collection{}, err
	}

	return s.collectionByName(ctx, name)
}

// Collections lists all collections in name order.
func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, dimension FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Dimension); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *Store) collectionByName(ctx context.Context, name string) (Collection, error) {
	var c Collection
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, dimension FROM collections WHERE name = ?", name,
	).Scan(&c.ID, &c.Name, &c.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("failed to look up collection: %w", err)
	}
	return c, nil
}

// Append writes entries to the log tail in one transaction and returns the
// sequence marker of the last entry. Prior entries are never rewritten;
// sequence markers are monotonic even across prunes.
//
// Every non-delete entry must carry the record's complete state, including
// its embedding. Partial updates are merged by the caller before they reach
// the log, so reconstructing current state needs only the latest entry per
// record.
func (s *Store) Append(ctx context.Context, collectionID string, entries []LogEntry) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("no entries to append")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var dim int
	err = tx.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE id = ?", collectionID).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up collection: %w", err)
	}

	dimChanged := false
	for i := range entries {
		e := &entries[i]
		if e.Operation == OperationDelete {
			continue
		}
		if len(e.Embedding) == 0 {
			return 0, fmt.Errorf("entry %d: %s requires an embedding", i, e.Operation)
		}
		if dim == 0 {
			dim = len(e.Embedding)
			dimChanged = true
		} else if len(e.Embedding) != dim {
			return 0, &ErrDimensionMismatch{Expected: dim, Actual: len(e.Embedding)}
		}
	}

	topic := topicName(collectionID)
	lastSeq := int64(0)

	chunkSize := s.MaxBatchSize()
	for start := 0; start < len(entries); start += chunkSize {
		end := min(start+chunkSize, len(entries))
		seq, err := s.insertChunk(ctx, tx, topic, entries[start:end])
		if err != nil {
			return 0, err
		}
		lastSeq = seq
	}

	if dimChanged {
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET dimension = ? WHERE id = ?", dim, collectionID,
		); err != nil {
			return 0, fmt.Errorf("failed to set collection dimension: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit append: %w", err)
	}

	return uint64(lastSeq), nil
}

// insertChunk writes one multi-row INSERT sized to stay under SQLite's bind
// parameter limit and returns the sequence of its last row.
func (s *Store) insertChunk(ctx context.Context, tx *sql.Tx, topic string, chunk []LogEntry) (int64, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO embeddings_queue (operation, topic, id, vector, encoding, metadata) VALUES ")

	args := make([]any, 0, len(chunk)*insertParams)
	for i := range chunk {
		e := &chunk[i]

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")

		var vector []byte
		var encoding any
		if len(e.Embedding) > 0 {
			vector = encodeVector(e.Embedding)
			encoding = encodingFloat32
		}

		var meta any
		if len(e.Metadata) > 0 || e.Document != "" || e.URI != "" {
			raw, err := s.codec.Marshal(payload{
				Metadata: e.Metadata,
				Document: e.Document,
				URI:      e.URI,
			})
			if err != nil {
				return 0, fmt.Errorf("failed to encode payload for %q: %w", e.ID, err)
			}
			meta = string(raw)
		}

		args = append(args, int(e.Operation), topic, e.ID, vector, encoding, meta)
	}

	res, err := tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to append entries: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence marker: %w", err)
	}
	return seq, nil
}

// Entries returns log entries with sequence markers greater than afterSeq,
// oldest first, up to limit (0 means no limit). Consumers such as an
// external vector index tail the log with it.
func (s *Store) Entries(ctx context.Context, collectionID string, afterSeq uint64, limit int) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT seq_id, created_at, operation, id, vector, metadata
		FROM embeddings_queue
		WHERE topic = ? AND seq_id > ?
		ORDER BY seq_id`
	args := []any{topicName(collectionID), int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []LogEntry
	for rows.Next() {
		var (
			seq       int64
			createdAt string
			operation int
			id        string
			vector    []byte
			meta      *string
		)
		if err := rows.Scan(&seq, &createdAt, &operation, &id, &vector, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		e := LogEntry{
			SeqID:     uint64(seq),
			Operation: Operation(operation),
			ID:        id,
		}
		if e.CreatedAt, err = parseCreatedAt(createdAt); err != nil {
			return nil, fmt.Errorf("log entry %d: %w", seq, err)
		}
		if e.Embedding, err = decodeVector(vector); err != nil {
			return nil, fmt.Errorf("log entry %d: %w", seq, err)
		}
		if meta != nil {
			var p payload
			if err := s.codec.Unmarshal([]byte(*meta), &p); err != nil {
				return nil, fmt.Errorf("log entry %d: %w", seq, err)
			}
			e.Metadata = p.Metadata
			e.Document = p.Document
			e.URI = p.URI
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of live records in a collection, i.e. records
// whose latest log entry is not a delete.
func (s *Store) Count(ctx context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM embeddings_queue q
		JOIN (
			SELECT id, MAX(seq_id) AS max_seq
			FROM embeddings_queue
			WHERE topic = ?
			GROUP BY id
		) latest ON q.id = latest.id AND q.seq_id = latest.max_seq
		WHERE q.topic = ? AND q.operation != ?`,
		topicName(collectionID), topicName(collectionID), int(OperationDelete),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// topicName renders the log topic of a collection. One topic per collection.
func topicName(collectionID string) string {
	return fmt.Sprintf("persistent://local/default/%s", collectionID)
}
