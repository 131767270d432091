package repositories

import "github.com/dgraph-io/badger/v4"

// newestFirst reads up to limit records under prefix, walking keys backwards
// from cursor (or from the newest key when cursor is nil). The returned cursor
// is the key suffix of the last record read and is nil once nothing older is
// left, so a caller knows it reached the end.
func newestFirst[T any](txn *badger.Txn, prefix string, cursor *string, limit *int) ([]T, *string, error) {
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	it := txn.NewIterator(options)
	defer it.Close()

	p := []byte(prefix)
	// Highest possible timestamp, then walk back in time
	seekKey := []byte(prefix + "9999999999999999999")
	if cursor != nil {
		seekKey = []byte(prefix + *cursor)
	}
	it.Seek(seekKey)
	if cursor != nil && it.ValidForPrefix(p) && string(it.Item().Key()) == string(seekKey) {
		it.Next()
	}

	var records []T
	var lastKey string
	for ; it.ValidForPrefix(p); it.Next() {
		if limit != nil && len(records) == *limit {
			// The iterator still points at an older record.
			return records, &lastKey, nil
		}
		item := it.Item()
		var record T
		if err := item.Value(func(value []byte) error { return unmarshal(value, &record) }); err != nil {
			return nil, nil, err
		}
		lastKey = string(item.Key()[len(prefix):])
		records = append(records, record)
	}
	return records, nil, nil
}
