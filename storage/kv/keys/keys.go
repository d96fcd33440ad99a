package keys

import (
	"bytes"
)

// Key is a single key, column, value or range
// boundary. Keys are ordered as unsigned big-endian
// byte strings.
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Equal returns true if a and b contain the same bytes.
// A nil key is equal to an empty key.
func Equal(a, b Key) bool {
	return bytes.Equal(a, b)
}

// Copy returns a copy of key that does not share
// its backing array
func Copy(key Key) Key {
	if key == nil {
		return nil
	}

	cp := make(Key, len(key))
	copy(cp, key)

	return cp
}

// Inc treats key as a big-endian unsigned integer
// and adds one to it. It returns nil if every byte
// of key is 0xff.
func Inc(key Key) Key {
	carry := true
	after := Copy(key)

	for i := len(after) - 1; i >= 0 && carry; i-- {
		if key[i] < 0xff {
			carry = false
		}

		after[i] = key[i] + 1
	}

	// carry will only be true if all elements of k
	// were equal to 0xff. The range should just go
	// all the way to the end of the real key range.
	if carry {
		return nil
	}

	return after
}

// DecAllowUnderflow treats key as a big-endian unsigned
// integer of its own length and subtracts one from it.
// The length never changes. If every byte of key is zero
// the result saturates: an all-zero key of the same length
// is returned.
func DecAllowUnderflow(key Key) Key {
	before := Copy(key)

	if before == nil {
		before = Key{}
	}

	for i := len(before) - 1; i >= 0; i-- {
		if before[i] > 0 {
			before[i]--

			// bytes to the right borrowed from this one
			for j := i + 1; j < len(before); j++ {
				before[j] = 0xff
			}

			return before
		}
	}

	return before
}

// ZeroExtend right-pads key with zero bytes until it is
// at least n bytes long. Keys that are already long enough
// are returned as-is.
func ZeroExtend(key Key, n int) Key {
	if len(key) >= n {
		return key
	}

	extended := make(Key, n)
	copy(extended, key)

	return extended
}

// Next returns the key directly after key such that
// there can exist no other key that comes between
// key and Next(key)
func Next(key Key) Key {
	next := make(Key, len(key)+1)
	copy(next, key)

	return next
}
