package locking_test

import (
	"errors"
	"testing"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/locking"
	"go.uber.org/zap"
)

func reader(data map[string]string) locking.Reader {
	return func(key []byte, column []byte) ([]byte, bool, error) {
		v, ok := data[string(key)+"/"+string(column)]

		if !ok {
			return nil, false, nil
		}

		return []byte(v), true, nil
	}
}

func claim(t *testing.T, txn *kcv.StoreTransaction, key, column string, expected []byte) {
	if _, err := txn.Claim(kcv.LockClaim{Store: "s", Key: []byte(key), Column: []byte(column), Expected: expected}); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestVerify(t *testing.T) {
	data := map[string]string{"k/c": "v"}

	testCases := map[string]struct {
		key      string
		column   string
		expected []byte
		err      error
	}{
		"expected-value-matches": {
			key:      "k",
			column:   "c",
			expected: []byte("v"),
		},
		"expected-value-differs": {
			key:      "k",
			column:   "c",
			expected: []byte("w"),
			err:      kcv.ErrLocking,
		},
		"expected-absent-and-absent": {
			key:    "k",
			column: "d",
		},
		"expected-absent-but-present": {
			key:    "k",
			column: "c",
			err:    kcv.ErrLocking,
		},
		"expected-value-but-absent": {
			key:      "x",
			column:   "c",
			expected: []byte("v"),
			err:      kcv.ErrLocking,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			table := locking.NewTable(zap.NewNop())
			txn := kcv.NewTransaction()
			claim(t, txn, testCase.key, testCase.column, testCase.expected)

			err := locking.Verify(txn, table, "s", reader(data))

			if !errors.Is(err, testCase.err) || (testCase.err == nil && err != nil) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}

			if testCase.err == nil && len(txn.PendingClaims("s")) != 0 {
				t.Fatalf("expected no pending claims after successful verification")
			}

			if err := txn.Commit(); err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if table.Len() != 0 {
				t.Fatalf("expected all locks to be released, %d still held", table.Len())
			}
		})
	}
}

func TestVerifyContention(t *testing.T) {
	table := locking.NewTable(zap.NewNop())
	data := map[string]string{}
	txnA := kcv.NewTransaction()
	txnB := kcv.NewTransaction()

	claim(t, txnA, "k", "c", nil)
	claim(t, txnB, "k", "c", nil)

	if err := locking.Verify(txnA, table, "s", reader(data)); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := locking.Verify(txnB, table, "s", reader(data)); !errors.Is(err, kcv.ErrLocking) {
		t.Fatalf("expected ErrLocking, got %#v", err)
	}

	if err := txnA.Rollback(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := locking.Verify(txnB, table, "s", reader(data)); err != nil {
		t.Fatalf("expected err to be nil after txnA released its lock, got %#v", err)
	}

	if err := txnB.Commit(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if table.Len() != 0 {
		t.Fatalf("expected all locks to be released, %d still held", table.Len())
	}
}

func TestVerifyOtherStore(t *testing.T) {
	table := locking.NewTable(zap.NewNop())
	txn := kcv.NewTransaction()
	claim(t, txn, "k", "c", nil)

	if err := locking.Verify(txn, table, "other", reader(map[string]string{})); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if table.Len() != 0 {
		t.Fatalf("expected claims on other stores to be ignored")
	}

	if len(txn.PendingClaims("s")) != 1 {
		t.Fatalf("expected claim to stay pending")
	}
}
