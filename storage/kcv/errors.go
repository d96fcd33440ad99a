package kcv

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery indicates that a query is malformed, for example
	// a column interval whose end is below its start
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidKey indicates that a key or column is nil or empty
	ErrInvalidKey = errors.New("keys and columns must not be empty")
	// ErrLocking indicates that a lock claimed by the transaction could
	// not be verified, either due to contention with another transaction
	// or because the locked value did not match the expected value
	ErrLocking = errors.New("lock verification failed")
	// ErrUnsupported indicates that the backend lacks the capability
	// required by the operation. Check Features first.
	ErrUnsupported = errors.New("operation not supported by this store")
	// ErrInvariantViolation indicates a programming error: an internal
	// invariant that should have been impossible to break was broken
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrClosed indicates that the store or manager was closed
	ErrClosed = errors.New("store was closed")
	// ErrTransactionClosed indicates that the transaction already
	// committed or rolled back
	ErrTransactionClosed = errors.New("transaction already committed or rolled back")
)

// WrapError wraps backend errors with some context. Contract
// errors are passed through unchanged so callers can compare
// them directly.
func WrapError(wrap string, err error) error {
	switch err {
	case ErrInvalidQuery:
		fallthrough
	case ErrInvalidKey:
		fallthrough
	case ErrLocking:
		fallthrough
	case ErrUnsupported:
		fallthrough
	case ErrClosed:
		fallthrough
	case ErrTransactionClosed:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %w", wrap, err)
}
