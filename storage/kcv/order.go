package kcv

// Order arranges the per-key results of a batched read in the order
// the keys were requested. Backends that store rows by hashed position
// return batches in hash order, but callers rely on out[i] answering
// the query for orderedKeys[i]. Keys missing from toOrder get a nil
// slot. len(out) always equals len(orderedKeys).
func Order(toOrder map[string][]Entry, orderedKeys [][]byte) [][]Entry {
	results := make([][]Entry, len(orderedKeys))

	for i, key := range orderedKeys {
		results[i] = toOrder[string(key)]
	}

	return results
}
