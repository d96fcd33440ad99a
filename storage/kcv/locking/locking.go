// Package locking implements the discretionary lock claims of
// kcv.StoreTransaction for backends that keep their lock state
// in-process.
package locking

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/jrife/kcvstore/storage/kcv"
	"go.uber.org/zap"
)

// Table maps locked key-column pairs to the transaction
// that owns them. It never blocks: a lock owned by another
// transaction is reported as kcv.ErrLocking right away.
type Table struct {
	mu     sync.Mutex
	owners map[string]string
	logger *zap.Logger
}

// NewTable creates an empty lock table
func NewTable(logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.L()
	}

	return &Table{owners: map[string]string{}, logger: logger}
}

// TryLock tries to give the lock with this id to owner. It returns
// true if owner did not already hold the lock.
func (table *Table) TryLock(id string, owner string) (bool, error) {
	table.mu.Lock()
	defer table.mu.Unlock()

	current, ok := table.owners[id]

	if !ok {
		table.owners[id] = owner

		return true, nil
	}

	if current == owner {
		return false, nil
	}

	table.logger.Debug("lock contention", zap.String("owner", current), zap.String("requester", owner))

	return false, fmt.Errorf("lock held by transaction %s: %w", current, kcv.ErrLocking)
}

// Unlock releases the lock with this id if owner holds it
func (table *Table) Unlock(id string, owner string) {
	table.mu.Lock()
	defer table.mu.Unlock()

	if table.owners[id] == owner {
		delete(table.owners, id)
	}
}

// Len returns the number of held locks
func (table *Table) Len() int {
	table.mu.Lock()
	defer table.mu.Unlock()

	return len(table.owners)
}

// Reader reads the current value of a key-column pair.
// ok is false if the pair holds no value.
type Reader func(key []byte, column []byte) (value []byte, ok bool, err error)

// Verify verifies every pending claim txn holds on store. Each lock
// is taken in table and released when txn finishes. The current value
// of each pair must match the claim's expectation. Callers must hold
// whatever excludes concurrent writers to store so that verification
// and the mutation that follows it are atomic.
func Verify(txn *kcv.StoreTransaction, table *Table, store string, read Reader) error {
	for _, claim := range txn.PendingClaims(store) {
		id := claim.ID()
		owner := txn.ID()
		acquired, err := table.TryLock(id, owner)

		if err != nil {
			return err
		}

		if acquired {
			txn.OnRelease(func() { table.Unlock(id, owner) })
		}

		value, ok, err := read(claim.Key, claim.Column)

		if err != nil {
			return kcv.WrapError("could not read locked column", err)
		}

		if claim.Expected == nil && ok {
			return fmt.Errorf("column %x of key %x was expected to be absent: %w", claim.Column, claim.Key, kcv.ErrLocking)
		}

		if claim.Expected != nil && (!ok || !bytes.Equal(claim.Expected, value)) {
			return fmt.Errorf("column %x of key %x does not hold the expected value: %w", claim.Column, claim.Key, kcv.ErrLocking)
		}

		txn.MarkVerified(claim)
	}

	return nil
}
