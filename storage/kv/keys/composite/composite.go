package composite

import (
	"errors"

	"github.com/jrife/kcvstore/storage/kv/keys"
)

const (
	escape     byte = 0x00
	escaped00  byte = 0xff
	terminator byte = 0x01
)

// ErrMalformed is returned when decoding a key that
// was not produced by Encode
var ErrMalformed = errors.New("malformed composite key")

// Key is a sequence of keys
type Key []keys.Key

// Encode flattens the key into a single key whose
// byte order matches the element-wise order of the
// composite key. Each element has its zero bytes
// escaped and is followed by a terminator so that no
// encoded element is a prefix of another.
func (key Key) Encode() keys.Key {
	size := 0

	for _, k := range key {
		size += len(k) + 2
	}

	encoded := make(keys.Key, 0, size)

	for _, k := range key {
		encoded = AppendElement(encoded, k)
	}

	return encoded
}

// AppendElement appends the encoding of a single element
// to dst
func AppendElement(dst keys.Key, k keys.Key) keys.Key {
	for _, b := range k {
		if b == escape {
			dst = append(dst, escape, escaped00)

			continue
		}

		dst = append(dst, b)
	}

	return append(dst, escape, terminator)
}

// Decode reads n elements from the front of encoded. It
// returns the elements and whatever bytes remain after
// the nth element.
func Decode(encoded keys.Key, n int) (Key, keys.Key, error) {
	key := make(Key, 0, n)

	for len(key) < n {
		var element keys.Key
		var err error

		element, encoded, err = decodeElement(encoded)

		if err != nil {
			return nil, nil, err
		}

		key = append(key, element)
	}

	return key, encoded, nil
}

func decodeElement(encoded keys.Key) (keys.Key, keys.Key, error) {
	element := keys.Key{}

	for i := 0; i < len(encoded); i++ {
		if encoded[i] != escape {
			element = append(element, encoded[i])

			continue
		}

		if i+1 >= len(encoded) {
			return nil, nil, ErrMalformed
		}

		switch encoded[i+1] {
		case terminator:
			return element, encoded[i+2:], nil
		case escaped00:
			element = append(element, escape)
			i++
		default:
			return nil, nil, ErrMalformed
		}
	}

	return nil, nil, ErrMalformed
}

// Compare compares two composite keys element
// by element
func Compare(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if cmp := keys.Compare(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}

	if len(a) < len(b) {
		return -1
	} else if len(a) > len(b) {
		return 1
	}

	return 0
}
