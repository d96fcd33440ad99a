package keys

// All returns a new key range matching all keys
func All() Range {
	return Range{}
}

// Range represents all keys such that
//
//	k >= Min and k < Max
//
// If Min = nil that indicates the start of all keys
// If Max = nil that indicates the end of all keys
// If multiple modifiers are called on a range the end
// result is effectively the same as ANDing all the
// restrictions.
type Range struct {
	Min Key
	Max Key
}

// Eq confines the range to just key k
func (r Range) Eq(k Key) Range {
	return r.Gte(k).Lte(k)
}

// Gt confines the range to keys that are
// greater than k
func (r Range) Gt(k Key) Range {
	return r.refineMin(Next(k))
}

// Gte confines the range to keys that are
// greater than or equal to k
func (r Range) Gte(k Key) Range {
	return r.refineMin(k)
}

// Lt confines the range to keys that are
// less than k
func (r Range) Lt(k Key) Range {
	return r.refineMax(k)
}

// Lte confines the range to keys that are
// less than or equal to k
func (r Range) Lte(k Key) Range {
	return r.refineMax(Next(k))
}

// Prefix confines the range to keys that
// have the prefix k, including k itself
func (r Range) Prefix(k Key) Range {
	r = r.Gte(k)

	if max := Inc(k); max != nil {
		r = r.Lt(max)
	}

	return r
}

// Contains returns true if k is inside the range
func (r Range) Contains(k Key) bool {
	if r.Min != nil && Compare(k, r.Min) < 0 {
		return false
	}

	if r.Max != nil && Compare(k, r.Max) >= 0 {
		return false
	}

	return true
}

// Inverted returns true if the range has an upper
// bound that is below its lower bound.
func (r Range) Inverted() bool {
	return r.Max != nil && Compare(r.Max, r.Min) < 0
}

// Empty returns true if no key can be inside the range
func (r Range) Empty() bool {
	return r.Max != nil && Compare(r.Max, r.Min) <= 0
}

func (r Range) refineMin(min Key) Range {
	if r.Min != nil && Compare(min, r.Min) <= 0 {
		return r
	}

	r.Min = min

	return r
}

func (r Range) refineMax(max Key) Range {
	if r.Max != nil && Compare(max, r.Max) >= 0 {
		return r
	}

	r.Max = max

	return r
}
