package kcv_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/utils/stream"
)

func TestSliceQueryValidate(t *testing.T) {
	testCases := map[string]struct {
		start []byte
		end   []byte
		err   error
	}{
		"ordered":     {start: []byte("a"), end: []byte("b")},
		"equal":       {start: []byte("a"), end: []byte("a")},
		"unbounded":   {start: []byte("a"), end: nil},
		"all-columns": {},
		"inverted":    {start: []byte("b"), end: []byte("a"), err: kcv.ErrInvalidQuery},
		"empty-end":   {start: []byte("b"), end: []byte{}, err: kcv.ErrInvalidQuery},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := kcv.NewSliceQuery(testCase.start, testCase.end, 0)

			if !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}
		})
	}
}

func TestKeyRangeQueryValidate(t *testing.T) {
	query := kcv.KeyRangeQuery{Keys: kcv.KeyRange{Start: []byte{0x02}, End: []byte{0x01}}}

	if err := query.Validate(); !errors.Is(err, kcv.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %#v", err)
	}

	query = kcv.KeyRangeQuery{Keys: kcv.KeyRange{Start: []byte{0x01}, End: []byte{0x02}}}

	if err := query.Validate(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestKeySliceQueryValidate(t *testing.T) {
	if err := (kcv.KeySliceQuery{}).Validate(); !errors.Is(err, kcv.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %#v", err)
	}
}

func TestValidateMutation(t *testing.T) {
	testCases := map[string]struct {
		key       []byte
		additions []kcv.Entry
		deletions [][]byte
		err       error
	}{
		"valid":            {key: []byte("k"), additions: []kcv.Entry{{Column: []byte("c"), Value: []byte{}}}, deletions: [][]byte{[]byte("d")}},
		"no-op":            {key: []byte("k"), additions: kcv.NoAdditions, deletions: kcv.NoDeletions},
		"empty-key":        {key: []byte{}, err: kcv.ErrInvalidKey},
		"empty-add-column": {key: []byte("k"), additions: []kcv.Entry{{Value: []byte("v")}}, err: kcv.ErrInvalidKey},
		"empty-del-column": {key: []byte("k"), deletions: [][]byte{{}}, err: kcv.ErrInvalidKey},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if err := kcv.ValidateMutation(testCase.key, testCase.additions, testCase.deletions); !errors.Is(err, testCase.err) {
				t.Fatalf("expected err to be %#v, got %#v", testCase.err, err)
			}
		})
	}
}

func entries(key string) []kcv.Entry {
	return []kcv.Entry{{Column: []byte("c"), Value: []byte(key)}}
}

func TestOrder(t *testing.T) {
	orderedKeys := [][]byte{}
	toOrder := map[string][]kcv.Entry{}

	for i := 0; i < 50; i++ {
		key := []byte{byte(i)}
		orderedKeys = append(orderedKeys, key)

		// every third key is missing from the batch result
		if i%3 != 0 {
			toOrder[string(key)] = entries(string(key))
		}
	}

	rand.Shuffle(len(orderedKeys), func(i, j int) {
		orderedKeys[i], orderedKeys[j] = orderedKeys[j], orderedKeys[i]
	})

	result := kcv.Order(toOrder, orderedKeys)

	if len(result) != len(orderedKeys) {
		t.Fatalf("expected %d results, got %d", len(orderedKeys), len(result))
	}

	for i, key := range orderedKeys {
		if diff := cmp.Diff(toOrder[string(key)], result[i]); diff != "" {
			t.Fatalf("result %d: %s", i, diff)
		}
	}
}

func TestOrderEmpty(t *testing.T) {
	result := kcv.Order(map[string][]kcv.Entry{"a": entries("a")}, [][]byte{})

	if len(result) != 0 {
		t.Fatalf("expected no results, got %d", len(result))
	}

	result = kcv.Order(nil, [][]byte{[]byte("a"), []byte("b")})

	if diff := cmp.Diff([][]kcv.Entry{nil, nil}, result); diff != "" {
		t.Fatal(diff)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	txn := kcv.NewTransaction()
	claim := kcv.LockClaim{Store: "s", Key: []byte("k"), Column: []byte("c")}

	if ok, err := txn.Claim(claim); !ok || err != nil {
		t.Fatalf("expected first claim to succeed, got %v, %#v", ok, err)
	}

	claim.Expected = []byte("v")

	if ok, err := txn.Claim(claim); ok || err != nil {
		t.Fatalf("expected repeated claim to have no effect, got %v, %#v", ok, err)
	}

	if diff := cmp.Diff([]kcv.LockClaim{{Store: "s", Key: []byte("k"), Column: []byte("c")}}, txn.PendingClaims("s")); diff != "" {
		t.Fatal(diff)
	}

	released := []int{}
	txn.OnRelease(func() { released = append(released, 1) })
	txn.OnRelease(func() { released = append(released, 2) })

	if err := txn.Rollback(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]int{2, 1}, released); diff != "" {
		t.Fatal(diff)
	}

	if err := txn.Commit(); err != kcv.ErrTransactionClosed {
		t.Fatalf("expected ErrTransactionClosed, got %#v", err)
	}

	if err := txn.Check(); err != kcv.ErrTransactionClosed {
		t.Fatalf("expected ErrTransactionClosed, got %#v", err)
	}

	if _, err := txn.Claim(claim); err != kcv.ErrTransactionClosed {
		t.Fatalf("expected ErrTransactionClosed, got %#v", err)
	}

	txn.OnRelease(func() { released = append(released, 3) })

	if diff := cmp.Diff([]int{2, 1, 3}, released); diff != "" {
		t.Fatal(diff)
	}
}

func TestNilTransaction(t *testing.T) {
	var txn *kcv.StoreTransaction

	if err := txn.Check(); !errors.Is(err, kcv.ErrTransactionClosed) {
		t.Fatalf("expected ErrTransactionClosed, got %#v", err)
	}

	if _, err := txn.Claim(kcv.LockClaim{Store: "s", Key: []byte("k"), Column: []byte("c")}); !errors.Is(err, kcv.ErrNilTransaction) {
		t.Fatalf("expected ErrNilTransaction, got %#v", err)
	}
}

func rowStream(rows []kcv.Row, closed *int) stream.Stream[kcv.Row] {
	i := 0

	return stream.FromFunc(func() (kcv.Row, bool, error) {
		if i >= len(rows) {
			return kcv.Row{}, false, nil
		}

		i++

		return rows[i-1], true, nil
	}, func() error {
		*closed++

		return nil
	})
}

func TestKeyIterator(t *testing.T) {
	closed := 0
	rows := []kcv.Row{
		{Key: []byte("a"), Entries: entries("a")},
		{Key: []byte("b")},
		{Key: []byte("c"), Entries: entries("c")},
	}

	result, err := kcv.Rows(kcv.NewKeyIterator(rowStream(rows, &closed), nil))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]kcv.Row{rows[0], rows[2]}, result); diff != "" {
		t.Fatal(diff)
	}

	if closed != 1 {
		t.Fatalf("expected iterator to be closed once, got %d", closed)
	}
}

func TestForEachKeyClosesOnError(t *testing.T) {
	closed := 0
	errStop := errors.New("stop")
	rows := []kcv.Row{
		{Key: []byte("a"), Entries: entries("a")},
		{Key: []byte("b"), Entries: entries("b")},
	}

	visited := 0
	err := kcv.ForEachKey(kcv.NewKeyIterator(rowStream(rows, &closed), nil), func(key []byte, entries []kcv.Entry) error {
		visited++

		return errStop
	})

	if err != errStop {
		t.Fatalf("expected errStop, got %#v", err)
	}

	if visited != 1 {
		t.Fatalf("expected iteration to stop after the first key, visited %d", visited)
	}

	if closed != 1 {
		t.Fatalf("expected iterator to be closed once, got %d", closed)
	}
}
