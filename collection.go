package embedb

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/embedb/record"
	"github.com/hupe1980/embedb/store"
	"github.com/hupe1980/embedb/where"
)

// Collection is a handle on one named collection of a DB. Handles are
// cheap and stateless; any number may exist for the same collection.
//
// Record batches are expressed as record.RecordSet parallel sequences. A
// nil sequence means the field is not provided for the whole batch. Within
// a provided sequence, a nil metadata entry, a nil embedding entry (update
// only) or an empty document/uri string leaves that record's field alone
// on update and absent on add.
type Collection struct {
	db   *DB
	meta store.Collection
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.meta.Name }

// ID returns the stable collection identifier.
func (c *Collection) ID() string { return c.meta.ID }

// Dimension returns the collection's embedding dimensionality, zero while
// no embedding has been appended yet.
func (c *Collection) Dimension(ctx context.Context) (int, error) {
	meta, err := c.db.store.Collection(ctx, c.meta.Name)
	if err != nil {
		return 0, translateError(err)
	}
	return meta.Dimension, nil
}

// Count returns the number of live records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.db.store.Count(ctx, c.meta.ID)
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

// Add appends new records to the collection and returns how many were
// written. Every record needs an embedding. Records whose ID is already
// live are skipped with a warning rather than rejected, so a partially
// retried batch converges instead of failing.
func (c *Collection) Add(ctx context.Context, rs record.RecordSet) (int, error) {
	start := time.Now()

	if err := c.validateMutation(&rs, true); err != nil {
		err = translateError(err)
		c.db.metrics.OnValidationError(kindOf(err))
		c.db.logger.LogValidation(ctx, "add", err)
		return 0, err
	}

	snap, err := c.db.store.Snapshot(ctx, c.meta.ID)
	if err != nil {
		err = translateError(err)
		c.db.logger.LogMutation(ctx, "add", c.meta.Name, 0, err)
		return 0, err
	}

	entries := make([]store.LogEntry, 0, len(rs.IDs))
	var skipped []string
	for i, id := range rs.IDs {
		if _, ok := snap.Position(id); ok {
			skipped = append(skipped, id)
			continue
		}
		entries = append(entries, entryAt(&rs, i, store.OperationAdd))
	}
	if len(skipped) > 0 {
		c.db.logger.LogSkippedIDs(ctx, "add", c.meta.Name, skipped)
	}

	return c.commit(ctx, "add", entries, start)
}

// Update overlays the provided fields onto existing records and returns
// how many were written. IDs that are not live are skipped with a warning.
// Fields the batch does not provide keep their stored value; provided
// metadata merges key by key into the stored document.
func (c *Collection) Update(ctx context.Context, rs record.RecordSet) (int, error) {
	start := time.Now()

	if err := c.validateMutation(&rs, false); err != nil {
		err = translateError(err)
		c.db.metrics.OnValidationError(kindOf(err))
		c.db.logger.LogValidation(ctx, "update", err)
		return 0, err
	}

	snap, err := c.db.store.Snapshot(ctx, c.meta.ID)
	if err != nil {
		err = translateError(err)
		c.db.logger.LogMutation(ctx, "update", c.meta.Name, 0, err)
		return 0, err
	}

	entries := make([]store.LogEntry, 0, len(rs.IDs))
	var skipped []string
	for i, id := range rs.IDs {
		pos, ok := snap.Position(id)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		entries = append(entries, mergedEntry(snap, pos, &rs, i, store.OperationUpdate))
	}
	if len(skipped) > 0 {
		c.db.logger.LogSkippedIDs(ctx, "update", c.meta.Name, skipped)
	}

	return c.commit(ctx, "update", entries, start)
}

// Upsert writes every record in the batch: live IDs are updated with the
// merge semantics of Update, unknown IDs are inserted. Every record needs
// an embedding, whether or not its ID is live.
func (c *Collection) Upsert(ctx context.Context, rs record.RecordSet) error {
	start := time.Now()

	if err := c.validateMutation(&rs, true); err != nil {
		err = translateError(err)
		c.db.metrics.OnValidationError(kindOf(err))
		c.db.logger.LogValidation(ctx, "upsert", err)
		return err
	}

	snap, err := c.db.store.Snapshot(ctx, c.meta.ID)
	if err != nil {
		err = translateError(err)
		c.db.logger.LogMutation(ctx, "upsert", c.meta.Name, 0, err)
		return err
	}

	entries := make([]store.LogEntry, 0, len(rs.IDs))
	for i, id := range rs.IDs {
		if pos, ok := snap.Position(id); ok {
			entries = append(entries, mergedEntry(snap, pos, &rs, i, store.OperationUpsert))
		} else {
			entries = append(entries, entryAt(&rs, i, store.OperationUpsert))
		}
	}

	_, err = c.commit(ctx, "upsert", entries, start)
	return err
}

// DeleteOptions select the records a Delete removes. At least one of the
// three selectors must be provided; when several are, a record must match
// all of them.
type DeleteOptions struct {
	// IDs restricts the delete to these identifiers.
	IDs []string

	// Where restricts the delete to records whose metadata matches.
	Where map[string]any

	// WhereDocument restricts the delete to records whose document matches.
	WhereDocument map[string]any
}

// Delete removes the selected records and returns the IDs that were
// actually deleted. Selected IDs that are not live are ignored, so deletes
// are idempotent.
func (c *Collection) Delete(ctx context.Context, optFns ...func(o *DeleteOptions)) ([]string, error) {
	start := time.Now()

	opts := DeleteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	sel, err := parseSelector(opts.IDs, opts.Where, opts.WhereDocument, true)
	if err != nil {
		err = translateError(err)
		c.db.metrics.OnValidationError(kindOf(err))
		c.db.logger.LogValidation(ctx, "delete", err)
		return nil, err
	}

	snap, err := c.db.store.Snapshot(ctx, c.meta.ID)
	if err != nil {
		err = translateError(err)
		c.db.logger.LogMutation(ctx, "delete", c.meta.Name, 0, err)
		return nil, err
	}

	positions := matchedPositions(snap, sel)
	deleted := make([]string, 0, len(positions))
	entries := make([]store.LogEntry, 0, len(positions))
	for _, pos := range positions {
		id := snap.ID(pos)
		deleted = append(deleted, id)
		entries = append(entries, store.LogEntry{Operation: store.OperationDelete, ID: id})
	}

	if _, err := c.commit(ctx, "delete", entries, start); err != nil {
		return nil, err
	}
	return deleted, nil
}

// GetOptions select and shape the records a Get returns.
type GetOptions struct {
	// IDs restricts the result to these identifiers. Unknown IDs are
	// silently absent from the result.
	IDs []string

	// Where restricts the result to records whose metadata matches.
	Where map[string]any

	// WhereDocument restricts the result to records whose document matches.
	WhereDocument map[string]any

	// Limit caps the number of returned records; zero means no cap.
	Limit int

	// Offset skips that many matched records before the limit applies.
	Offset int

	// Include names the fields to materialize alongside the IDs. Valid
	// names are embeddings, metadatas, documents and uris. Defaults to
	// metadatas and documents.
	Include []string
}

// Get returns the selected records in log order: IDs always, other fields
// as requested through Include. Fields not included stay nil in the
// returned set.
func (c *Collection) Get(ctx context.Context, optFns ...func(o *GetOptions)) (*record.RecordSet, error) {
	opts := GetOptions{
		Include: []string{"metadatas", "documents"},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	sel, fields, err := c.validateGet(&opts)
	if err != nil {
		err = translateError(err)
		c.db.metrics.OnValidationError(kindOf(err))
		c.db.logger.LogValidation(ctx, "get", err)
		return nil, err
	}

	snap, err := c.db.store.Snapshot(ctx, c.meta.ID)
	if err != nil {
		err = translateError(err)
		c.db.logger.LogGet(ctx, c.meta.Name, 0, err)
		return nil, err
	}

	positions := page(matchedPositions(snap, sel), opts.Offset, opts.Limit)

	out := &record.RecordSet{IDs: make([]string, len(positions))}
	for _, f := range fields {
		switch f {
		case record.FieldEmbeddings:
			out.Embeddings = make([][]float32, len(positions))
		case record.FieldMetadatas:
			out.Metadatas = make([]record.Metadata, len(positions))
		case record.FieldDocuments:
			out.Documents = make([]string, len(positions))
		case record.FieldURIs:
			out.URIs = make([]string, len(positions))
		}
	}
	for i, pos := range positions {
		out.IDs[i] = snap.ID(pos)
		if out.Embeddings != nil {
			out.Embeddings[i] = snap.Embedding(pos)
		}
		if out.Metadatas != nil {
			out.Metadatas[i] = snap.Metadata(pos)
		}
		if out.Documents != nil {
			out.Documents[i] = snap.Document(pos)
		}
		if out.URIs != nil {
			out.URIs[i] = snap.URI(pos)
		}
	}

	c.db.logger.LogGet(ctx, c.meta.Name, len(positions), nil)
	return out, nil
}

// commit appends the prepared entries, feeds the vector index and records
// the outcome. An empty batch is a successful no-op; validation upstream
// already decided it has nothing to write.
func (c *Collection) commit(ctx context.Context, op string, entries []store.LogEntry, start time.Time) (int, error) {
	if len(entries) == 0 {
		c.db.logger.LogMutation(ctx, op, c.meta.Name, 0, nil)
		return 0, nil
	}

	_, err := c.db.store.Append(ctx, c.meta.ID, entries)
	if err == nil && c.db.index != nil {
		err = c.db.index.Apply(ctx, c.meta.ID, entries)
	}

	duration := time.Since(start)
	err = translateError(err)
	c.db.metrics.OnAppend(len(entries), duration, err)
	c.db.logger.LogMutation(ctx, op, c.meta.Name, len(entries), err)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// validateMutation runs the input gate shared by Add, Update and Upsert.
// Embeddings are required for add and upsert; an update without them
// keeps the stored vectors.
func (c *Collection) validateMutation(rs *record.RecordSet, needEmbeddings bool) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	if _, err := record.ValidateIDs(rs.IDs); err != nil {
		return err
	}
	if needEmbeddings || rs.Present(record.FieldEmbeddings) {
		if _, err := record.ValidateEmbeddings(rs.Embeddings); err != nil {
			return err
		}
	}
	if err := validateMetadatas(rs.Metadatas); err != nil {
		return err
	}
	if rs.Present(record.FieldImages) {
		return NewArgumentError("Expected images to be embedded before they reach the store, got %d images", len(rs.Images))
	}
	return record.ValidateBatchSize(rs.Len(), c.db.store.MaxBatchSize())
}

func (c *Collection) validateGet(opts *GetOptions) (selector, []record.Field, error) {
	sel, err := parseSelector(opts.IDs, opts.Where, opts.WhereDocument, false)
	if err != nil {
		return selector{}, nil, err
	}

	fields, err := validateInclude(opts.Include)
	if err != nil {
		return selector{}, nil, err
	}

	if opts.Limit < 0 {
		return selector{}, nil, NewArgumentError("Expected limit to be a non-negative int, got %d", opts.Limit)
	}
	if opts.Offset < 0 {
		return selector{}, nil, NewArgumentError("Expected offset to be a non-negative int, got %d", opts.Offset)
	}

	return sel, fields, nil
}

// validateMetadatas rejects explicitly empty metadata documents. A nil
// entry means the record has no metadata and is fine.
func validateMetadatas(metas []record.Metadata) error {
	for _, md := range metas {
		if md != nil && len(md) == 0 {
			return NewShapeError("Expected metadata to be a non-empty dict, got {}")
		}
	}
	return nil
}

func validateInclude(include []string) ([]record.Field, error) {
	if len(include) == 0 {
		return nil, NewArgumentError("Expected include to be a non-empty list")
	}

	fields := make([]record.Field, len(include))
	for i, name := range include {
		f, ok := record.FieldByName(name)
		if !ok || f == record.FieldIDs || f == record.FieldImages {
			return nil, NewArgumentError("Expected include key to be one of embeddings, metadatas, documents or uris, got %s", name)
		}
		fields[i] = f
	}
	return fields, nil
}

// selector is a parsed record selection: an optional ID list and an
// optional filter clause. Records must satisfy both.
type selector struct {
	ids    []string
	clause where.Clause
}

func parseSelector(ids []string, whereMap, whereDoc map[string]any, require bool) (selector, error) {
	var sel selector

	if require && ids == nil && whereMap == nil && whereDoc == nil {
		return sel, NewArgumentError("Expected ids, where or where_document to be provided for delete")
	}

	if ids != nil {
		valid, err := record.ValidateIDs(ids)
		if err != nil {
			return sel, err
		}
		sel.ids = valid
	}

	var clauses []where.Clause
	if whereMap != nil {
		w, err := where.Parse(whereMap)
		if err != nil {
			return sel, err
		}
		clauses = append(clauses, w)
	}
	if whereDoc != nil {
		w, err := where.ParseDocument(whereDoc)
		if err != nil {
			return sel, err
		}
		clauses = append(clauses, w)
	}
	switch len(clauses) {
	case 1:
		sel.clause = clauses[0]
	case 2:
		sel.clause = &where.Group{Combinator: where.And, Children: clauses}
	}

	return sel, nil
}

// matchedPositions evaluates the selector against a snapshot and returns
// matching positions in ascending order, which is log order.
func matchedPositions(snap *store.Snapshot, sel selector) []uint32 {
	bm := where.Eval(snap, sel.clause)

	if sel.ids != nil {
		keep := roaring.New()
		for _, id := range sel.ids {
			if pos, ok := snap.Position(id); ok {
				keep.Add(pos)
			}
		}
		bm.And(keep)
	}

	return bm.ToArray()
}

// page applies offset and limit over the matched positions. Offsets past
// the end yield an empty result.
func page(positions []uint32, offset, limit int) []uint32 {
	if offset >= len(positions) {
		return nil
	}
	positions = positions[offset:]
	if limit > 0 && limit < len(positions) {
		positions = positions[:limit]
	}
	return positions
}

// entryAt builds the log entry for record i of a batch. Validate has
// already pinned all provided sequences to the same length.
func entryAt(rs *record.RecordSet, i int, op store.Operation) store.LogEntry {
	e := store.LogEntry{Operation: op, ID: rs.IDs[i]}
	if i < len(rs.Embeddings) {
		e.Embedding = rs.Embeddings[i]
	}
	if i < len(rs.Metadatas) {
		e.Metadata = rs.Metadatas[i]
	}
	if i < len(rs.Documents) {
		e.Document = rs.Documents[i]
	}
	if i < len(rs.URIs) {
		e.URI = rs.URIs[i]
	}
	return e
}

// mergedEntry overlays the provided fields of record i onto the live state
// at pos. The log stores complete records, so an entry must carry the
// fields it does not change.
func mergedEntry(snap *store.Snapshot, pos uint32, rs *record.RecordSet, i int, op store.Operation) store.LogEntry {
	e := store.LogEntry{
		Operation: op,
		ID:        rs.IDs[i],
		Embedding: snap.Embedding(pos),
		Metadata:  snap.Metadata(pos),
		Document:  snap.Document(pos),
		URI:       snap.URI(pos),
	}
	if i < len(rs.Embeddings) && rs.Embeddings[i] != nil {
		e.Embedding = rs.Embeddings[i]
	}
	if i < len(rs.Metadatas) && rs.Metadatas[i] != nil {
		e.Metadata = mergeMetadata(e.Metadata, rs.Metadatas[i])
	}
	if i < len(rs.Documents) && rs.Documents[i] != "" {
		e.Document = rs.Documents[i]
	}
	if i < len(rs.URIs) && rs.URIs[i] != "" {
		e.URI = rs.URIs[i]
	}
	return e
}

// mergeMetadata overlays update keys onto the stored document. Keys absent
// from the update are retained.
func mergeMetadata(existing, update record.Metadata) record.Metadata {
	if len(existing) == 0 {
		return update
	}
	merged := make(record.Metadata, len(existing)+len(update))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}
