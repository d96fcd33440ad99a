package kcv

import (
	"fmt"
	"sync"

	"github.com/jrife/kcvstore/storage/kv/keys"
	"github.com/jrife/kcvstore/storage/kv/keys/composite"
	"github.com/jrife/kcvstore/utils/uuid"
)

// LockClaim is a request to lock one key-column pair
// of a store. Expected is the value the pair must hold
// for the lock to be valid. Expected = nil means the
// pair must hold no value.
type LockClaim struct {
	Store    string
	Key      []byte
	Column   []byte
	Expected []byte
}

// ID identifies the locked key-column pair. Two claims
// on the same pair have the same ID regardless of their
// expected values.
func (claim LockClaim) ID() string {
	return string(composite.Key{keys.Key(claim.Store), claim.Key, claim.Column}.Encode())
}

// StoreTransaction is a handle threaded through every store
// operation. It is owned by the caller that opened it and must
// only be used by one goroutine at a time. It holds the lock
// claims made through AcquireLock and releases every lock it
// acquired when it commits or rolls back.
//
// Mutations are applied to the backend by the Mutate call
// itself. Commit and Rollback end the transaction and release
// its locks. Rollback does not undo applied mutations.
type StoreTransaction struct {
	id       string
	mu       sync.Mutex
	claims   []LockClaim
	claimed  map[string]bool
	verified map[string]bool
	releases []func()
	done     bool
}

// NewTransaction opens a new transaction
func NewTransaction() *StoreTransaction {
	return &StoreTransaction{
		id:       uuid.MustUUID(),
		claimed:  map[string]bool{},
		verified: map[string]bool{},
	}
}

// ID returns the unique ID of this transaction
func (txn *StoreTransaction) ID() string {
	return txn.id
}

// ErrNilTransaction is returned when a store operation
// is given a nil transaction. It wraps ErrTransactionClosed.
var ErrNilTransaction = fmt.Errorf("transaction is nil: %w", ErrTransactionClosed)

// Check returns ErrTransactionClosed if the transaction
// already committed or rolled back, or if it is nil
func (txn *StoreTransaction) Check() error {
	if txn == nil {
		return ErrNilTransaction
	}

	txn.mu.Lock()
	defer txn.mu.Unlock()

	if txn.done {
		return ErrTransactionClosed
	}

	return nil
}

// Claim records a lock claim. It returns false if the
// transaction already claimed the same key-column pair of
// the same store, in which case the claim has no effect.
func (txn *StoreTransaction) Claim(claim LockClaim) (bool, error) {
	if txn == nil {
		return false, ErrNilTransaction
	}

	txn.mu.Lock()
	defer txn.mu.Unlock()

	if txn.done {
		return false, ErrTransactionClosed
	}

	id := claim.ID()

	if txn.claimed[id] {
		return false, nil
	}

	txn.claimed[id] = true
	txn.claims = append(txn.claims, LockClaim{
		Store:    claim.Store,
		Key:      keys.Copy(claim.Key),
		Column:   keys.Copy(claim.Column),
		Expected: keys.Copy(claim.Expected),
	})

	return true, nil
}

// PendingClaims returns the claims on store that have
// not been verified yet
func (txn *StoreTransaction) PendingClaims(store string) []LockClaim {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	pending := []LockClaim{}

	for _, claim := range txn.claims {
		if claim.Store == store && !txn.verified[claim.ID()] {
			pending = append(pending, claim)
		}
	}

	return pending
}

// MarkVerified marks a claim as verified so later mutations
// skip it.
func (txn *StoreTransaction) MarkVerified(claim LockClaim) {
	txn.mu.Lock()
	defer txn.mu.Unlock()

	txn.verified[claim.ID()] = true
}

// OnRelease registers release to be called when the
// transaction commits or rolls back. If the transaction
// is already finished release is called right away.
func (txn *StoreTransaction) OnRelease(release func()) {
	txn.mu.Lock()

	if txn.done {
		txn.mu.Unlock()
		release()

		return
	}

	txn.releases = append(txn.releases, release)
	txn.mu.Unlock()
}

// Commit ends the transaction and releases its locks
func (txn *StoreTransaction) Commit() error {
	return txn.finish()
}

// Rollback ends the transaction and releases its locks
func (txn *StoreTransaction) Rollback() error {
	return txn.finish()
}

func (txn *StoreTransaction) finish() error {
	txn.mu.Lock()

	if txn.done {
		txn.mu.Unlock()

		return ErrTransactionClosed
	}

	txn.done = true
	releases := txn.releases
	txn.releases = nil
	txn.mu.Unlock()

	// release in reverse acquisition order
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}

	return nil
}
