package kcv

import (
	"github.com/jrife/kcvstore/utils/stream"
	"go.uber.org/zap"
)

// Row is a key along with some of its entries
type Row struct {
	Key     []byte
	Entries []Entry
}

// KeyIterator is a lazy, forward-only, finite sequence of keys.
// It is not restartable and must only be used by one goroutine
// at a time. It holds backend cursor resources until Close is
// called. Prefer ForEachKey, which always closes the iterator.
type KeyIterator interface {
	// Next advances the iterator to the next key.
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Entries returns the entries of the current key
	// that match the query that produced the iterator
	Entries() []Entry
	// Error returns the error, if any.
	Error() error
	// Close releases the resources held by the iterator.
	// It is safe to call Close more than once.
	Close() error
}

// NewKeyIterator builds a key iterator from a stream of rows.
// Rows with no entries are skipped.
func NewKeyIterator(rows stream.Stream[Row], logger *zap.Logger) KeyIterator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &keyIterator{stream.Pipeline(
		rows,
		stream.Filter(func(row Row) bool { return len(row.Entries) > 0 }),
		stream.Log[Row](logger),
	)}
}

type keyIterator struct {
	stream.Stream[Row]
}

func (iter *keyIterator) Key() []byte {
	return iter.Value().Key
}

func (iter *keyIterator) Entries() []Entry {
	return iter.Value().Entries
}

// ForEachKey calls fn for every key produced by iter. It stops at
// the first error returned by fn or by the iterator. The iterator
// is closed on every path.
func ForEachKey(iter KeyIterator, fn func(key []byte, entries []Entry) error) (err error) {
	defer func() {
		if closeErr := iter.Close(); err == nil {
			err = closeErr
		}
	}()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Entries()); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Rows drains iter into a slice of rows and closes it
func Rows(iter KeyIterator) ([]Row, error) {
	rows := []Row{}

	err := ForEachKey(iter, func(key []byte, entries []Entry) error {
		rows = append(rows, Row{Key: key, Entries: entries})

		return nil
	})

	if err != nil {
		return nil, err
	}

	return rows, nil
}
