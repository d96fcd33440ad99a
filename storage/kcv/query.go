package kcv

import (
	"fmt"

	"github.com/jrife/kcvstore/storage/kv/keys"
)

var (
	// NoAdditions can be passed to Mutate when only deleting
	NoAdditions = []Entry{}
	// NoDeletions can be passed to Mutate when only adding
	NoDeletions = [][]byte{}
)

// Entry is a single column-value pair inside a row
type Entry struct {
	Column []byte
	Value  []byte
}

// SliceQuery selects the columns in [Start, End) of a row, up to
// Limit of them. End = nil means there is no upper bound. Limit <= 0
// means there is no limit.
type SliceQuery struct {
	Start []byte
	End   []byte
	Limit int
}

// NewSliceQuery returns a validated slice query
func NewSliceQuery(start, end []byte, limit int) (SliceQuery, error) {
	query := SliceQuery{Start: start, End: end, Limit: limit}

	if err := query.Validate(); err != nil {
		return SliceQuery{}, err
	}

	return query, nil
}

// AllColumns returns a slice query matching every column
func AllColumns() SliceQuery {
	return SliceQuery{}
}

// Validate returns ErrInvalidQuery if End < Start
func (query SliceQuery) Validate() error {
	if query.Columns().Inverted() {
		return fmt.Errorf("column end %x is below column start %x: %w", query.End, query.Start, ErrInvalidQuery)
	}

	return nil
}

// Columns returns the column interval as a key range
func (query SliceQuery) Columns() keys.Range {
	return keys.Range{Min: query.Start, Max: query.End}
}

// Matches returns true if column is inside the column interval
func (query SliceQuery) Matches(column []byte) bool {
	return query.Columns().Contains(column)
}

// KeySliceQuery is a SliceQuery scoped to a single key
type KeySliceQuery struct {
	Key []byte
	SliceQuery
}

// Validate validates the key and the column interval
func (query KeySliceQuery) Validate() error {
	if len(query.Key) == 0 {
		return ErrInvalidKey
	}

	return query.SliceQuery.Validate()
}

// KeyRange is the half-open key interval [Start, End)
type KeyRange struct {
	Start []byte
	End   []byte
}

// Range returns the key range as a keys.Range
func (r KeyRange) Range() keys.Range {
	return keys.Range{Min: r.Start, Max: r.End}
}

// Contains returns true if key is inside the range
func (r KeyRange) Contains(key []byte) bool {
	return r.Range().Contains(key)
}

func (r KeyRange) String() string {
	return fmt.Sprintf("[%x, %x)", r.Start, r.End)
}

// KeyRangeQuery selects the keys in a key range along with
// their entries matching the slice query
type KeyRangeQuery struct {
	Keys  KeyRange
	Slice SliceQuery
}

// Validate validates both intervals
func (query KeyRangeQuery) Validate() error {
	if query.Keys.Range().Inverted() {
		return fmt.Errorf("key range end %x is below key range start %x: %w", query.Keys.End, query.Keys.Start, ErrInvalidQuery)
	}

	return query.Slice.Validate()
}

// ValidateKey returns ErrInvalidKey if key is empty
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}

	return nil
}

// ValidateMutation checks the key, every added entry and every
// deleted column
func ValidateMutation(key []byte, additions []Entry, deletions [][]byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	for _, entry := range additions {
		if len(entry.Column) == 0 {
			return ErrInvalidKey
		}
	}

	for _, column := range deletions {
		if len(column) == 0 {
			return ErrInvalidKey
		}
	}

	return nil
}
