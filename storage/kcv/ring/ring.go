package ring

import (
	"fmt"
	"sort"
	"sync"
)

// TokenRange is the ring interval (Left, Right]. If Left >= Right
// the interval wraps around the end of the ring. If Left = Right it
// covers the whole ring.
type TokenRange struct {
	Left  Token
	Right Token
}

// Contains returns true if token falls inside the range
func (r TokenRange) Contains(token Token) bool {
	cmp := r.Left.Compare(r.Right)

	if cmp == 0 {
		return true
	}

	afterLeft := token.Compare(r.Left) > 0
	atOrBeforeRight := token.Compare(r.Right) <= 0

	if cmp < 0 {
		return afterLeft && atOrBeforeRight
	}

	return afterLeft || atOrBeforeRight
}

func (r TokenRange) String() string {
	return fmt.Sprintf("(%s, %s]", r.Left, r.Right)
}

// Ring assigns ranges of tokens to nodes. A node owns
// every position after the preceding token up to and
// including each of its own tokens.
type Ring struct {
	mu     sync.RWMutex
	sorted []Token
	owners map[string]string
}

// New builds a ring from the tokens owned by each node. All
// tokens must be of the same kind.
func New(ownership map[string][]Token) (*Ring, error) {
	ring := &Ring{}

	if err := ring.Recompute(ownership); err != nil {
		return nil, err
	}

	return ring, nil
}

// Recompute replaces the ring's token assignments
func (ring *Ring) Recompute(ownership map[string][]Token) error {
	owners := map[string]string{}
	sorted := []Token{}

	for node, tokens := range ownership {
		for _, token := range tokens {
			if owner, ok := owners[string(token.Bytes())]; ok {
				return fmt.Errorf("token %s is owned by both %s and %s", token, owner, node)
			}

			owners[string(token.Bytes())] = node
			sorted = append(sorted, token)
		}
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) < 0
	})

	ring.mu.Lock()
	defer ring.mu.Unlock()

	ring.sorted = sorted
	ring.owners = owners

	return nil
}

// Size returns the number of tokens on the ring
func (ring *Ring) Size() int {
	ring.mu.RLock()
	defer ring.mu.RUnlock()

	return len(ring.sorted)
}

// Owner returns the node owning token. It returns
// "" if the ring is empty.
func (ring *Ring) Owner(token Token) string {
	ring.mu.RLock()
	defer ring.mu.RUnlock()

	if len(ring.sorted) == 0 {
		return ""
	}

	i := sort.Search(len(ring.sorted), func(i int) bool {
		return ring.sorted[i].Compare(token) >= 0
	})

	if i >= len(ring.sorted) {
		// Wrap around the ring.
		i = 0
	}

	return ring.owners[string(ring.sorted[i].Bytes())]
}

// Ranges returns the token ranges owned by node in
// ring order
func (ring *Ring) Ranges(node string) []TokenRange {
	ring.mu.RLock()
	defer ring.mu.RUnlock()

	ranges := []TokenRange{}

	for i, token := range ring.sorted {
		if ring.owners[string(token.Bytes())] != node {
			continue
		}

		prev := ring.sorted[len(ring.sorted)-1]

		if i > 0 {
			prev = ring.sorted[i-1]
		}

		ranges = append(ranges, TokenRange{Left: prev, Right: token})
	}

	return ranges
}

// Parse builds the ownership map of a ring from the string
// form of each node's tokens
func Parse(partitioner Partitioner, tokens map[string][]string) (map[string][]Token, error) {
	ownership := make(map[string][]Token, len(tokens))

	for node, strs := range tokens {
		for _, s := range strs {
			token, err := partitioner.ParseToken(s)

			if err != nil {
				return nil, err
			}

			ownership[node] = append(ownership[node], token)
		}
	}

	return ownership, nil
}
