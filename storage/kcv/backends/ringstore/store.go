package ringstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/ring"
	"github.com/jrife/kcvstore/storage/kv/keys"
	"github.com/jrife/kcvstore/storage/kv/keys/composite"
	"github.com/jrife/kcvstore/utils/log"
	"github.com/jrife/kcvstore/utils/stream"
	"go.uber.org/zap"
)

var _ kcv.Store = (*Store)(nil)

// Store is a kcv.Store whose rows are placed on a token ring.
// Each column is one pebble key:
//
//	composite(store, token, row key) + column
//
// so rows are sorted by token then by key and the columns of
// a row are contiguous and sorted.
type Store struct {
	name        string
	db          *pebble.DB
	node        string
	partitioner ring.Partitioner
	ring        *ring.Ring
	features    kcv.Features
	logger      *zap.Logger
	mu          sync.RWMutex
	closed      bool
}

// Name implements kcv.Store.Name
func (store *Store) Name() string {
	return store.name
}

// Features implements kcv.Store.Features
func (store *Store) Features() kcv.Features {
	return store.features
}

// prefix returns the physical key prefix of every row
// of the store
func (store *Store) prefix() keys.Key {
	return composite.Key{keys.Key(store.name)}.Encode()
}

// row returns the composite key identifying a row
// in the physical keyspace
func (store *Store) row(key []byte) composite.Key {
	return composite.Key{keys.Key(store.name), store.partitioner.Token(key).Bytes(), key}
}

// rowPrefix returns the physical key prefix of the
// columns of a row
func (store *Store) rowPrefix(key []byte) keys.Key {
	return store.row(key).Encode()
}

func join(prefix keys.Key, column []byte) []byte {
	physical := make([]byte, 0, len(prefix)+len(column))
	physical = append(physical, prefix...)

	return append(physical, column...)
}

// decode splits a physical key into its row key
// and column
func decode(physical []byte) ([]byte, []byte, error) {
	elements, column, err := composite.Decode(physical, 3)

	if err != nil {
		return nil, nil, kcv.WrapError("could not decode physical key", err)
	}

	return elements[2], keys.Copy(column), nil
}

// lock takes a read lock on the store. The caller
// must call store.mu.RUnlock if it returns nil.
func (store *Store) lock(txn *kcv.StoreTransaction) error {
	store.mu.RLock()

	if store.closed {
		store.mu.RUnlock()

		return kcv.ErrClosed
	}

	if err := txn.Check(); err != nil {
		store.mu.RUnlock()

		return err
	}

	return nil
}

// ContainsKey implements kcv.Store.ContainsKey
func (store *Store) ContainsKey(ctx context.Context, key []byte, txn *kcv.StoreTransaction) (bool, error) {
	if err := kcv.ValidateKey(key); err != nil {
		return false, err
	}

	if err := store.lock(txn); err != nil {
		return false, err
	}

	defer store.mu.RUnlock()

	prefix := store.rowPrefix(key)
	iter, err := store.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keys.Inc(prefix)})

	if err != nil {
		return false, kcv.WrapError("could not create iterator", err)
	}

	contains := iter.First()

	if err := iter.Close(); err != nil {
		return false, kcv.WrapError("could not read row", err)
	}

	return contains, nil
}

// readSlice reads the columns of one row matching query
func readSlice(iter *pebble.Iterator, prefix keys.Key, query kcv.SliceQuery) ([]kcv.Entry, error) {
	entries := []kcv.Entry{}
	upper := keys.Inc(prefix)

	if query.End != nil {
		upper = join(prefix, query.End)
	}

	for valid := iter.SeekGE(join(prefix, query.Start)); valid; valid = iter.Next() {
		if bytes.Compare(iter.Key(), upper) >= 0 {
			break
		}

		value, err := iter.ValueAndErr()

		if err != nil {
			return nil, err
		}

		entries = append(entries, kcv.Entry{
			Column: keys.Copy(iter.Key()[len(prefix):]),
			Value:  append([]byte{}, value...),
		})

		if query.Limit > 0 && len(entries) >= query.Limit {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return entries, nil
}

// GetSlice implements kcv.Store.GetSlice
func (store *Store) GetSlice(ctx context.Context, query kcv.KeySliceQuery, txn *kcv.StoreTransaction) ([]kcv.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if err := store.lock(txn); err != nil {
		return nil, err
	}

	defer store.mu.RUnlock()

	iter, err := store.db.NewIter(nil)

	if err != nil {
		return nil, kcv.WrapError("could not create iterator", err)
	}

	defer iter.Close()

	entries, err := readSlice(iter, store.rowPrefix(query.Key), query.SliceQuery)

	if err != nil {
		return nil, kcv.WrapError("could not read row", err)
	}

	return entries, nil
}

// GetMultiSlice implements kcv.Store.GetMultiSlice. Rows are
// read in token order with a single iterator then put back in
// the order of rowKeys.
func (store *Store) GetMultiSlice(ctx context.Context, rowKeys [][]byte, query kcv.SliceQuery, txn *kcv.StoreTransaction) ([][]kcv.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	for _, key := range rowKeys {
		if err := kcv.ValidateKey(key); err != nil {
			return nil, err
		}
	}

	if err := store.lock(txn); err != nil {
		return nil, err
	}

	defer store.mu.RUnlock()

	rows := make([]composite.Key, 0, len(rowKeys))
	seen := make(map[string]bool, len(rowKeys))

	for _, key := range rowKeys {
		if seen[string(key)] {
			continue
		}

		seen[string(key)] = true
		rows = append(rows, store.row(key))
	}

	sort.Slice(rows, func(i, j int) bool {
		return composite.Compare(rows[i], rows[j]) < 0
	})

	iter, err := store.db.NewIter(nil)

	if err != nil {
		return nil, kcv.WrapError("could not create iterator", err)
	}

	defer iter.Close()

	results := make(map[string][]kcv.Entry, len(rows))

	for _, row := range rows {
		entries, err := readSlice(iter, row.Encode(), query)

		if err != nil {
			return nil, kcv.WrapError("could not read rows", err)
		}

		results[string(row[2])] = entries
	}

	return kcv.Order(results, rowKeys), nil
}

// Mutate implements kcv.Store.Mutate. The store doesn't
// support locking so there are no claims to verify.
func (store *Store) Mutate(ctx context.Context, key []byte, additions []kcv.Entry, deletions [][]byte, txn *kcv.StoreTransaction) error {
	if err := kcv.ValidateMutation(key, additions, deletions); err != nil {
		return err
	}

	token := store.partitioner.Token(key)
	logger := log.Operation(ctx, store.logger, "Mutate")
	logger.Debug("start Mutate()", zap.Binary("key", key), zap.Stringer("token", token), zap.String("owner", store.ring.Owner(token)), zap.Int("additions", len(additions)), zap.Int("deletions", len(deletions)))

	if err := store.lock(txn); err != nil {
		return err
	}

	defer store.mu.RUnlock()

	prefix := store.rowPrefix(key)
	batch := store.db.NewBatch()
	defer batch.Close()

	for _, column := range deletions {
		if err := batch.Delete(join(prefix, column), nil); err != nil {
			return kcv.WrapError("could not delete column", err)
		}
	}

	for _, entry := range additions {
		if err := batch.Set(join(prefix, entry.Column), entry.Value, nil); err != nil {
			return kcv.WrapError("could not set column", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Debug("error", zap.Error(err))

		return kcv.WrapError("could not apply mutation", err)
	}

	return nil
}

// AcquireLock implements kcv.Store.AcquireLock
func (store *Store) AcquireLock(ctx context.Context, key []byte, column []byte, expected []byte, txn *kcv.StoreTransaction) error {
	return kcv.ErrUnsupported
}

// GetKeys implements kcv.Store.GetKeys. Only stores using an
// order preserving partitioner support it.
func (store *Store) GetKeys(ctx context.Context, query kcv.KeyRangeQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if !store.features.SupportsOrderedScan() {
		return nil, kcv.ErrUnsupported
	}

	if err := query.Validate(); err != nil {
		return nil, err
	}

	// The token of a key is the key itself so bounding
	// the token bounds the key.
	lower := store.prefix()
	upper := keys.Inc(lower)

	if query.Keys.Start != nil {
		lower = composite.Key{keys.Key(store.name), query.Keys.Start}.Encode()
	}

	if query.Keys.End != nil {
		upper = composite.Key{keys.Key(store.name), query.Keys.End}.Encode()
	}

	return store.scan(ctx, lower, upper, query.Slice, txn)
}

// ScanKeys implements kcv.Store.ScanKeys. Keys come back in
// token order.
func (store *Store) ScanKeys(ctx context.Context, query kcv.SliceQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	lower := store.prefix()

	return store.scan(ctx, lower, keys.Inc(lower), query, txn)
}

// scan iterates over the rows between two physical keys. The
// pebble iterator stays open until the key iterator is closed.
func (store *Store) scan(ctx context.Context, lower, upper []byte, query kcv.SliceQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if err := store.lock(txn); err != nil {
		return nil, err
	}

	defer store.mu.RUnlock()

	iter, err := store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})

	if err != nil {
		return nil, kcv.WrapError("could not create iterator", err)
	}

	valid := iter.First()

	next := func() (kcv.Row, bool, error) {
		if !valid {
			return kcv.Row{}, false, iter.Error()
		}

		rowKey, _, err := decode(iter.Key())

		if err != nil {
			return kcv.Row{}, false, err
		}

		row := kcv.Row{Key: rowKey, Entries: []kcv.Entry{}}

		for ; valid; valid = iter.Next() {
			key, column, err := decode(iter.Key())

			if err != nil {
				return kcv.Row{}, false, err
			}

			if !bytes.Equal(key, rowKey) {
				break
			}

			if !query.Matches(column) || (query.Limit > 0 && len(row.Entries) >= query.Limit) {
				continue
			}

			value, err := iter.ValueAndErr()

			if err != nil {
				return kcv.Row{}, false, err
			}

			row.Entries = append(row.Entries, kcv.Entry{Column: column, Value: append([]byte{}, value...)})
		}

		return row, true, nil
	}

	return kcv.NewKeyIterator(stream.FromFunc(next, iter.Close), log.Operation(ctx, store.logger, "scan")), nil
}

// LocalKeyPartition implements kcv.Store.LocalKeyPartition.
// Each ring range owned by the local node becomes one key
// range. Wrapping ring ranges are translated as-is so their
// start may sort after their end.
func (store *Store) LocalKeyPartition(ctx context.Context) ([]kcv.KeyRange, error) {
	if !store.features.SupportsLocalKeyPartition() {
		return nil, kcv.ErrUnsupported
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, kcv.ErrClosed
	}

	ranges := store.ring.Ranges(store.node)
	partition := make([]kcv.KeyRange, 0, len(ranges))

	for _, r := range ranges {
		keyRange, err := ring.TransformTokenRange(r)

		if err != nil {
			return nil, err
		}

		partition = append(partition, keyRange)
	}

	store.logger.Debug("local key partition", zap.Int("ranges", len(partition)))

	return partition, nil
}

// Close implements kcv.Store.Close
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}
