package ring

import (
	"fmt"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kv/keys"
)

// MinBoundaryWidth is the minimum length of the boundaries
// of every key range produced by TransformRange
const MinBoundaryWidth = 4

// ErrDegenerateRange is returned if a translated key range
// would have equal bounds
var ErrDegenerateRange = fmt.Errorf("translated key range has equal bounds: %w", kcv.ErrInvariantViolation)

// TransformTokenRange translates a ring range into a key range.
// See TransformRange.
func TransformTokenRange(r TokenRange) (kcv.KeyRange, error) {
	return TransformRange(r.Left, r.Right)
}

// TransformRange translates the ring range (leftExclusive, rightInclusive]
// into the key range [start, end) used by kcv.Store.LocalKeyPartition.
// Both tokens must be BytesTokens, otherwise it returns kcv.ErrUnsupported.
//
// Both bounds are decremented by one so the inclusive right bound becomes
// exclusive. If the tokens are equal the ring has a single partition
// covering everything and only the right bound is decremented; this gives
// up one key rather than produce a range with equal bounds. Both bounds are
// then zero-extended to MinBoundaryWidth bytes.
//
// The result is not guaranteed to have start < end. A single-partition
// ring yields start > end.
func TransformRange(leftExclusive, rightInclusive Token) (kcv.KeyRange, error) {
	l, ok := leftExclusive.(BytesToken)

	if !ok {
		return kcv.KeyRange{}, fmt.Errorf("cannot translate %T into a key range: %w", leftExclusive, kcv.ErrUnsupported)
	}

	r, ok := rightInclusive.(BytesToken)

	if !ok {
		return kcv.KeyRange{}, fmt.Errorf("cannot translate %T into a key range: %w", rightInclusive, kcv.ErrUnsupported)
	}

	var lb, rb keys.Key

	if keys.Equal(keys.Key(l), keys.Key(r)) {
		lb = keys.Copy(keys.Key(l))
		rb = keys.DecAllowUnderflow(keys.Key(r))
	} else {
		lb = keys.DecAllowUnderflow(keys.Key(l))
		rb = keys.DecAllowUnderflow(keys.Key(r))
	}

	lbe := keys.ZeroExtend(lb, MinBoundaryWidth)
	rbe := keys.ZeroExtend(rb, MinBoundaryWidth)

	if keys.Equal(lbe, rbe) {
		return kcv.KeyRange{}, fmt.Errorf("ring range (%s, %s] became [%x, %x): %w", l, r, lbe, rbe, ErrDegenerateRange)
	}

	return kcv.KeyRange{Start: lbe, End: rbe}, nil
}
