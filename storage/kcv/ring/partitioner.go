package ring

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/jrife/kcvstore/storage/kv/keys"
)

const (
	// ByteOrdered is the name of the ByteOrderedPartitioner
	ByteOrdered = "byteordered"
	// Hash is the name of the HashPartitioner
	Hash = "hash"
)

// Partitioner places keys on the ring
type Partitioner interface {
	// Name returns the name of the partitioner
	Name() string
	// Token returns the ring position of key
	Token(key []byte) Token
	// PreservesOrder returns true if token order
	// matches key order
	PreservesOrder() bool
	// ParseToken parses the string form of a token
	ParseToken(s string) (Token, error)
}

// NewPartitioner returns the partitioner with this name
func NewPartitioner(name string) (Partitioner, error) {
	switch name {
	case ByteOrdered:
		return ByteOrderedPartitioner{}, nil
	case Hash:
		return HashPartitioner{}, nil
	}

	return nil, fmt.Errorf("%q is not a valid partitioner", name)
}

// ByteOrderedPartitioner uses the key itself as its token
type ByteOrderedPartitioner struct {
}

// Name implements Partitioner.Name
func (partitioner ByteOrderedPartitioner) Name() string {
	return ByteOrdered
}

// Token implements Partitioner.Token
func (partitioner ByteOrderedPartitioner) Token(key []byte) Token {
	return BytesToken(keys.Copy(key))
}

// PreservesOrder implements Partitioner.PreservesOrder
func (partitioner ByteOrderedPartitioner) PreservesOrder() bool {
	return true
}

// ParseToken implements Partitioner.ParseToken
func (partitioner ByteOrderedPartitioner) ParseToken(s string) (Token, error) {
	return ParseBytesToken(s)
}

// HashPartitioner spreads keys over the ring by their
// xxhash
type HashPartitioner struct {
}

// Name implements Partitioner.Name
func (partitioner HashPartitioner) Name() string {
	return Hash
}

// Token implements Partitioner.Token
func (partitioner HashPartitioner) Token(key []byte) Token {
	return LongToken(int64(xxhash.Sum64(key)))
}

// PreservesOrder implements Partitioner.PreservesOrder
func (partitioner HashPartitioner) PreservesOrder() bool {
	return false
}

// ParseToken implements Partitioner.ParseToken
func (partitioner HashPartitioner) ParseToken(s string) (Token, error) {
	return ParseLongToken(s)
}
