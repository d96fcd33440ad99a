package kcv

import (
	"context"
)

// Features describes the capabilities of a store. Callers
// must check them before invoking an optional operation.
type Features struct {
	// Locking is true if AcquireLock is supported
	Locking bool
	// OrderedScan is true if the store keeps keys in
	// byte order and supports GetKeys
	OrderedScan bool
	// UnorderedScan is true if the store supports ScanKeys
	UnorderedScan bool
	// LocalKeyPartition is true if the store knows which
	// keys are local to this process
	LocalKeyPartition bool
}

// SupportsLocking returns true if AcquireLock is supported
func (features Features) SupportsLocking() bool {
	return features.Locking
}

// SupportsOrderedScan returns true if GetKeys is supported
func (features Features) SupportsOrderedScan() bool {
	return features.OrderedScan
}

// SupportsUnorderedScan returns true if ScanKeys is supported
func (features Features) SupportsUnorderedScan() bool {
	return features.UnorderedScan
}

// SupportsLocalKeyPartition returns true if LocalKeyPartition
// is supported
func (features Features) SupportsLocalKeyPartition() bool {
	return features.LocalKeyPartition
}

// Store is a key-column-value store. Implementations must be
// safe for concurrent use by multiple transactions. Every method
// may fail with a backend error in addition to the errors listed.
// Every method taking a transaction returns ErrTransactionClosed
// if the transaction already committed or rolled back.
type Store interface {
	// Name returns the name of this store. Each store has a unique
	// name which is used to open it.
	Name() string
	// Features describes which optional operations this store supports
	Features() Features
	// ContainsKey returns true if the row under key has at least one
	// column. It must not read the row's entries to answer.
	ContainsKey(ctx context.Context, key []byte, txn *StoreTransaction) (bool, error)
	// GetSlice returns the entries of one key within the column
	// interval of the query, ordered by column and capped at the
	// query limit. It returns ErrInvalidQuery if the column interval
	// is inverted.
	GetSlice(ctx context.Context, query KeySliceQuery, txn *StoreTransaction) ([]Entry, error)
	// GetMultiSlice applies the same slice query to every key. The
	// nth result holds the entries for the nth key, which may be
	// empty.
	GetMultiSlice(ctx context.Context, keys [][]byte, query SliceQuery, txn *StoreTransaction) ([][]Entry, error)
	// Mutate verifies the locks claimed on txn through AcquireLock and
	// then writes additions and deletions under key. Deletions are
	// applied strictly before additions. Either may be empty. If lock
	// verification fails it returns ErrLocking and applies nothing.
	// Stores that don't support locking skip the verification.
	Mutate(ctx context.Context, key []byte, additions []Entry, deletions [][]byte, txn *StoreTransaction) error
	// AcquireLock claims a discretionary lock on a key-column pair.
	// It is not required to determine whether the lock can actually
	// be acquired; the first Mutate on txn is. expected is the value
	// the pair must hold, nil meaning it must hold no value. Calls after
	// the first for the same key, column and txn have no effect. Locks
	// are released when txn commits or rolls back. It returns
	// ErrUnsupported if the store doesn't support locking.
	AcquireLock(ctx context.Context, key []byte, column []byte, expected []byte, txn *StoreTransaction) error
	// GetKeys returns an iterator over the keys inside the key range
	// that have at least one column matching the slice query. Only
	// stores that keep keys in byte order support it; the others
	// return ErrUnsupported.
	GetKeys(ctx context.Context, query KeyRangeQuery, txn *StoreTransaction) (KeyIterator, error)
	// ScanKeys returns an iterator over every key that has at least
	// one column matching the slice query, in no particular order.
	// It returns ErrUnsupported if the store doesn't support it.
	ScanKeys(ctx context.Context, query SliceQuery, txn *StoreTransaction) (KeyIterator, error)
	// LocalKeyPartition returns the possibly non-contiguous key ranges
	// stored on this host. Start is inclusive and End is exclusive. Both
	// are at least four bytes long and never equal. It returns
	// ErrUnsupported if the store has no notion of locality.
	LocalKeyPartition(ctx context.Context) ([]KeyRange, error)
	// Close closes the store. Calling Close more than once has
	// no effect.
	Close() error
}

// Manager opens stores that share one backend
type Manager interface {
	// Name returns the name of the backend driver
	Name() string
	// Features describes the capabilities of the stores
	// opened by this manager
	Features() Features
	// OpenStore returns the store with this name, creating it
	// if it doesn't exist. Opening the same name twice returns
	// the same store.
	OpenStore(ctx context.Context, name string) (Store, error)
	// BeginTransaction opens a transaction for use with the
	// stores of this manager
	BeginTransaction(ctx context.Context) (*StoreTransaction, error)
	// Close closes every store opened by this manager
	Close() error
	// Delete closes then deletes the manager's data
	Delete() error
}

// PluginOptions holds driver specific options
type PluginOptions map[string]interface{}

// Plugin represents a store driver
type Plugin interface {
	// Name returns the name of the driver
	Name() string
	// NewManager returns a manager configured with options
	NewManager(options PluginOptions) (Manager, error)
	// NewTempManager returns a manager initialized with some
	// sane defaults. It is meant for tests that need an
	// initialized instance of the driver without knowing
	// how to configure it
	NewTempManager() (Manager, error)
}
