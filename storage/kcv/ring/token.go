package ring

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Token is a position on a consistent-hashing ring
type Token interface {
	// Compare compares two tokens of the same kind
	// -1 means t < other
	// 1 means t > other
	// 0 means t = other
	Compare(other Token) int
	// Bytes returns an order-preserving byte encoding
	// of the token
	Bytes() []byte
	String() string
}

// BytesToken is a token whose ring position is a raw byte string.
// It is produced by partitioners that preserve key order.
type BytesToken []byte

// Compare implements Token.Compare
func (token BytesToken) Compare(other Token) int {
	return bytes.Compare(token, other.(BytesToken))
}

// Bytes implements Token.Bytes
func (token BytesToken) Bytes() []byte {
	return token
}

func (token BytesToken) String() string {
	return hex.EncodeToString(token)
}

// LongToken is a token whose ring position is a signed 64 bit
// hash of the key
type LongToken int64

// Compare implements Token.Compare
func (token LongToken) Compare(other Token) int {
	o := other.(LongToken)

	if token < o {
		return -1
	} else if token > o {
		return 1
	}

	return 0
}

// Bytes implements Token.Bytes. The sign bit is flipped so
// that byte order matches numeric order.
func (token LongToken) Bytes() []byte {
	var b [8]byte

	binary.BigEndian.PutUint64(b[:], uint64(token)^(1<<63))

	return b[:]
}

func (token LongToken) String() string {
	return strconv.FormatInt(int64(token), 10)
}

// ParseBytesToken parses a hex encoded BytesToken
func ParseBytesToken(s string) (Token, error) {
	b, err := hex.DecodeString(s)

	if err != nil {
		return nil, fmt.Errorf("could not parse bytes token %q: %s", s, err)
	}

	return BytesToken(b), nil
}

// ParseLongToken parses a decimal LongToken
func ParseLongToken(s string) (Token, error) {
	i, err := strconv.ParseInt(s, 10, 64)

	if err != nil {
		return nil, fmt.Errorf("could not parse long token %q: %s", s, err)
	}

	return LongToken(i), nil
}
