package bbolt

import (
	"bytes"
	"context"
	"sync"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/locking"
	"github.com/jrife/kcvstore/storage/kv/keys"
	"github.com/jrife/kcvstore/utils/log"
	"github.com/jrife/kcvstore/utils/stream"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var _ kcv.Store = (*Store)(nil)

// Store is a kcv.Store kept in one top-level bbolt bucket
type Store struct {
	name   string
	db     *bolt.DB
	locks  *locking.Table
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// Name implements kcv.Store.Name
func (store *Store) Name() string {
	return store.name
}

// Features implements kcv.Store.Features
func (store *Store) Features() kcv.Features {
	return features
}

func (store *Store) check(txn *kcv.StoreTransaction) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return kcv.ErrClosed
	}

	return txn.Check()
}

func (store *Store) view(fn func(root *bolt.Bucket) error) error {
	err := store.db.View(func(txn *bolt.Tx) error {
		return fn(txn.Bucket([]byte(store.name)))
	})

	if err == bolt.ErrDatabaseNotOpen {
		return kcv.ErrClosed
	}

	return err
}

// ContainsKey implements kcv.Store.ContainsKey
func (store *Store) ContainsKey(ctx context.Context, key []byte, txn *kcv.StoreTransaction) (bool, error) {
	if err := kcv.ValidateKey(key); err != nil {
		return false, err
	}

	if err := store.check(txn); err != nil {
		return false, err
	}

	var contains bool

	err := store.view(func(root *bolt.Bucket) error {
		row := root.Bucket(key)

		if row == nil {
			return nil
		}

		k, _ := row.Cursor().First()
		contains = k != nil

		return nil
	})

	if err != nil {
		return false, kcv.WrapError("could not read row", err)
	}

	return contains, nil
}

// slice returns the entries of row matching query
func slice(row *bolt.Bucket, query kcv.SliceQuery) []kcv.Entry {
	entries := []kcv.Entry{}

	if row == nil {
		return entries
	}

	cursor := row.Cursor()

	for k, v := cursor.Seek(query.Start); k != nil; k, v = cursor.Next() {
		if query.End != nil && keys.Compare(k, query.End) >= 0 {
			break
		}

		entries = append(entries, kcv.Entry{Column: copyValue(k), Value: copyValue(v)})

		if query.Limit > 0 && len(entries) >= query.Limit {
			break
		}
	}

	return entries
}

// GetSlice implements kcv.Store.GetSlice
func (store *Store) GetSlice(ctx context.Context, query kcv.KeySliceQuery, txn *kcv.StoreTransaction) ([]kcv.Entry, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if err := store.check(txn); err != nil {
		return nil, err
	}

	var entries []kcv.Entry

	err := store.view(func(root *bolt.Bucket) error {
		entries = slice(root.Bucket(query.Key), query.SliceQuery)

		return nil
	})

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

	if err := store.check(txn); err != nil {
		return nil, err
	}

	results := make([][]kcv.Entry, len(rowKeys))

	err := store.view(func(root *bolt.Bucket) error {
		for i, key := range rowKeys {
			results[i] = slice(root.Bucket(key), query)
		}

		return nil
	})

	if err != nil {
		return nil, kcv.WrapError("could not read rows", err)
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

	if err := store.check(txn); err != nil {
		return err
	}

	err := store.db.Update(func(boltTxn *bolt.Tx) error {
		root := boltTxn.Bucket([]byte(store.name))

		read := func(key []byte, column []byte) ([]byte, bool, error) {
			row := root.Bucket(key)

			if row == nil {
				return nil, false, nil
			}

			value, ok := seek(row, column)

			return value, ok, nil
		}

		if err := locking.Verify(txn, store.locks, store.name, read); err != nil {
			return err
		}

		row, err := root.CreateBucketIfNotExists(key)

		if err != nil {
			return err
		}

		for _, column := range deletions {
			if err := row.Delete(column); err != nil {
				return err
			}
		}

		for _, entry := range additions {
			value := entry.Value

			if value == nil {
				value = []byte{}
			}

			if err := row.Put(entry.Column, value); err != nil {
				return err
			}
		}

		if k, _ := row.Cursor().First(); k == nil {
			return root.DeleteBucket(key)
		}

		return nil
	})

	if err == bolt.ErrDatabaseNotOpen {
		err = kcv.ErrClosed
	}

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return kcv.WrapError("could not apply mutation", err)
	}

	return nil
}

// AcquireLock implements kcv.Store.AcquireLock
func (store *Store) AcquireLock(ctx context.Context, key []byte, column []byte, expected []byte, txn *kcv.StoreTransaction) error {
	if err := kcv.ValidateKey(key); err != nil {
		return err
	}

	if err := kcv.ValidateKey(column); err != nil {
		return err
	}

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

// scan reads one row per step, each inside its own short read-only
// transaction. No bbolt transaction stays open between steps, so
// writers are free to remap the data file while the iterator is
// open. Each step seeks past the last key returned.
func (store *Store) scan(ctx context.Context, r keys.Range, query kcv.SliceQuery, txn *kcv.StoreTransaction) (kcv.KeyIterator, error) {
	if err := store.check(txn); err != nil {
		return nil, err
	}

	var last []byte

	next := func() (kcv.Row, bool, error) {
		if r.Empty() {
			return kcv.Row{}, false, nil
		}

		store.mu.RLock()
		defer store.mu.RUnlock()

		if store.closed {
			return kcv.Row{}, false, kcv.ErrClosed
		}

		var row kcv.Row
		var ok bool

		err := store.view(func(root *bolt.Bucket) error {
			cursor := root.Cursor()
			var k []byte

			switch {
			case last != nil:
				if k, _ = cursor.Seek(last); k != nil && bytes.Equal(k, last) {
					k, _ = cursor.Next()
				}
			case r.Min != nil:
				k, _ = cursor.Seek(r.Min)
			default:
				k, _ = cursor.First()
			}

			if k == nil || (r.Max != nil && bytes.Compare(k, r.Max) >= 0) {
				return nil
			}

			last = copyValue(k)
			row = kcv.Row{Key: copyValue(k), Entries: slice(root.Bucket(k), query)}
			ok = true

			return nil
		})

		if err != nil {
			return kcv.Row{}, false, kcv.WrapError("could not read row", err)
		}

		return row, ok, nil
	}

	return kcv.NewKeyIterator(stream.FromFunc(next, nil), log.Operation(ctx, store.logger, "scan")), nil
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
