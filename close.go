package embedb

// Close releases the store and its exclusive directory lock.
//
// A closed DB rejects every further operation. Close is idempotent and safe
// to call on a nil receiver.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.store.Close()
}
