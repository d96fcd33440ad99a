// Package memory implements an in-memory kcv store. Rows are kept
// in byte order so it supports both ordered and unordered scans.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/locking"
	"github.com/jrife/kcvstore/storage/kv/keys"
	"github.com/jrife/kcvstore/utils/log"
	"github.com/jrife/kcvstore/utils/stream"
	"go.uber.org/zap"
)

const (
	// DriverName is the name of the memory driver
	DriverName = "memory"
)

var features = kcv.Features{
	Locking:       true,
	OrderedScan:   true,
	UnorderedScan: true,
}

func compare(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

var _ kcv.Store = (*Store)(nil)

// Store is an in-memory kcv.Store. Each row is a treemap of
// column to value inside a treemap of key to row.
type Store struct {
	name   string
	mu     sync.RWMutex
	rows   *treemap.Map
	locks  *locking.Table
	logger *zap.Logger
	closed bool
}

func newStore(name string, locks *locking.Table, logger *zap.Logger) *Store {
	return &Store{
		name:   name,
		rows:   treemap.NewWith(compare),
		locks:  locks,
		logger: logger.With(zap.String("store", name)),
	}
}

// Name implements kcv.Store.Name
func (store *Store) Name() string {
	return store.name
}

// Features implements kcv.Store.Features
func (store *Store) Features() kcv.Features {
	return features
}

func (store *Store) row(key []byte) *treemap.Map {
	row, ok := store.rows.Get(key)

	if !ok {
		return nil
	}

	return row.(*treemap.Map)
}

func (store *Store) check(txn *kcv.StoreTransaction) error {
	if store.closed {
		return kcv.ErrClosed
	}

	return txn.Check()
}

// ContainsKey implements kcv.Store.ContainsKey
func (store *Store) ContainsKey(ctx context.Context, key []byte, txn *kcv.StoreTransaction) (bool, error) {
	if err := kcv.ValidateKey(key); err != nil {
		return false, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if err := store.check(txn); err != nil {
		return false, err
	}

	row := store.row(key)

	return row != nil && !row.Empty(), nil
}

// slice returns the entries of row matching query.
// Callers must hold at least a read lock.
func slice(row *treemap.Map, query kcv.SliceQuery) ([]kcv.Entry, error) {
	if row == nil {
		return []kcv.Entry{}, nil
	}

	// treemap iterators can't seek so columns
	// below Start are filtered out
	iter := row.Iterator()

	columns := stream.FromFunc(func() (kcv.Entry, bool, error) {
		if !iter.Next() {
			return kcv.Entry{}, false, nil
		}

		column := iter.Key().([]byte)

		if query.End != nil && keys.Compare(column, query.End) >= 0 {
			return kcv.Entry{}, false, nil
		}

		return kcv.Entry{Column: keys.Copy(column), Value: keys.Copy(iter.Value().([]byte))}, true, nil
	}, nil)

	return stream.Collect(stream.Pipeline(
		columns,
		stream.Filter(func(entry kcv.Entry) bool { return query.Matches(entry.Column) }),
		stream.Limit[kcv.Entry](query.Limit),
	))
}

// GetSlice implements kcv.Store.GetSlice
func (store *Store) GetSlice(ctx context.Context, query kcv.KeySliceQuery, txn *kcv.StoreTransaction) ([]kcv.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if err := store.check(txn); err != nil {
		return nil, err
	}

	entries, err := slice(store.row(query.Key), query.SliceQuery)

	if err != nil {
		return nil, kcv.WrapError("could not read row", err)
	}

	return entries, nil
}

// GetMultiSlice implements kcv.Store.GetMultiSlice
func (store *Store) GetMultiSlice(ctx context.Context, rowKeys [][]byte, query kcv.SliceQuery, txn *kcv.StoreTransaction) ([][]kcv.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	for _, key := range rowKeys {
		if err := kcv.ValidateKey(key); err != nil {
			return nil, err
		}
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if err := store.check(txn); err != nil {
		return nil, err
	}

	results := make([][]kcv.Entry, len(rowKeys))

	for i, key := range rowKeys {
		entries, err := slice(store.row(key), query)

		if err != nil {
			return nil, kcv.WrapError("could not read rows", err)
		}

		results[i] = entries
	}

	return results, nil
}

// Mutate implements kcv.Store.Mutate
func (store *Store) Mutate(ctx context.Context, key []byte, additions []kcv.Entry, deletions [][]byte, txn *kcv.StoreTransaction) error {
	logger := log.Operation(ctx, store.logger, "Mutate")
	logger.Debug("start Mutate()", zap.Binary("key", key), zap.Int("additions", len(additions)), zap.Int("deletions", len(deletions)))

	if err := kcv.ValidateMutation(key, additions, deletions); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.check(txn); err != nil {
		return err
	}

	if err := locking.Verify(txn, store.locks, store.name, store.read); err != nil {
		logger.Debug("lock verification failed", zap.Error(err))

		return err
	}

	row := store.row(key)

	if row == nil {
		row = treemap.NewWith(compare)
	}

	for _, column := range deletions {
		row.Remove(column)
	}

	for _, entry := range additions {
		value := keys.Copy(entry.Value)

		if value == nil {
			value = []byte{}
		}

		row.Put([]byte(keys.Copy(entry.Column)), []byte(value))
	}

	if row.Empty() {
		store.rows.Remove(key)
	} else {
		store.rows.Put([]byte(keys.Copy(key)), row)
	}

	return nil
}

func (store *Store) read(key []byte, column []byte) ([]byte, bool, error) {
	row := store.row(key)

	if row == nil {
		return nil, false, nil
	}

	value, ok := row.Get(column)

	if !ok {
		return nil, false, nil
	}

	return value.([]byte), true, nil
}

// AcquireLock implements kcv.Store.AcquireLock
func (store *Store) AcquireLock(ctx context.Context, key []byte, column []byte, expected []byte, txn *kcv.StoreTransaction) error {
	if err := kcv.ValidateKey(key); err != nil {
		return err
	}

	if err := kcv.ValidateKey(column); err != nil {
		return err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if err := store.check(txn); err != nil {
		return err
	}

	_, err := txn.Claim(kcv.LockClaim{Store: store.name, Key: key, Column: column, Expected: expected})

	return err
}

// GetKeys implements kcv.Store.GetKeys
func (store *Store) GetKeys(ctx context.Context, query kcv.KeyRangeQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return store.scan(ctx, query.Keys.Range(), query.Slice, txn)
}

// ScanKeys implements kcv.Store.ScanKeys
func (store *Store) ScanKeys(ctx context.Context, query kcv.SliceQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return store.scan(ctx, keys.All(), query, txn)
}

// scan snapshots the keys inside r and then reads the
// entries of each key lazily as the iterator advances.
func (store *Store) scan(ctx context.Context, r keys.Range, query kcv.SliceQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if err := store.check(txn); err != nil {
		return nil, err
	}

	rowKeys := [][]byte{}
	iter := store.rows.Iterator()

	for !r.Empty() && iter.Next() {
		key := iter.Key().([]byte)

		if r.Max != nil && keys.Compare(key, r.Max) >= 0 {
			break
		}

		if r.Contains(key) {
			rowKeys = append(rowKeys, key)
		}
	}

	rows := stream.FromFunc(func() (kcv.Row, bool, error) {
		if len(rowKeys) == 0 {
			return kcv.Row{}, false, nil
		}

		key := rowKeys[0]
		rowKeys = rowKeys[1:]

		store.mu.RLock()
		defer store.mu.RUnlock()

		if store.closed {
			return kcv.Row{}, false, kcv.ErrClosed
		}

		entries, err := slice(store.row(key), query)

		if err != nil {
			return kcv.Row{}, false, kcv.WrapError("could not read row", err)
		}

		return kcv.Row{Key: keys.Copy(key), Entries: entries}, true, nil
	}, nil)

	return kcv.NewKeyIterator(rows, log.Operation(ctx, store.logger, "scan")), nil
}

// LocalKeyPartition implements kcv.Store.LocalKeyPartition
func (store *Store) LocalKeyPartition(ctx context.Context) ([]kcv.KeyRange, error) {
	return nil, kcv.ErrUnsupported
}

// Close implements kcv.Store.Close
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}
