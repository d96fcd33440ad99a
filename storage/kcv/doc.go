// Package kcv defines the key-column-value store contract that every
// physical backend must implement identically.
//
// A store is a BigTable-like map of rows. Each row is identified by a
// key and holds a sorted set of column-value pairs. Keys, columns and
// values are plain byte slices ordered as unsigned big-endian byte
// strings.
//
//	Store "edgestore"
//	  key1
//	    col1: abc
//	    col2: def
//	  key2
//	    col1: xyz
//
// Every backend must behave the same way for transactions, locking,
// range scans and locality hints.
//
// Column intervals are half-open [Start, End). A query with End < Start
// is rejected with ErrInvalidQuery before any backend call is made.
//
// Mutate applies deletions strictly before additions, so a column that
// appears in both ends up holding the added value. Before applying a
// mutation, backends that support locking verify every lock claimed on
// the transaction through AcquireLock. If verification fails the call
// returns ErrLocking and has no observable effect.
//
// Locks are discretionary and optimistic. AcquireLock only records the
// intent; nothing blocks. Contention surfaces as ErrLocking and retrying
// is up to the caller. All locks are released when the transaction
// commits or rolls back.
//
// Capabilities differ between backends. Callers must consult Features
// rather than treat ErrUnsupported as control flow.
package kcv
