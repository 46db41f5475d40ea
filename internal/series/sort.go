package series

import "sort"

// SortKey describes one sort key over a key column.
type SortKey struct {
	Descending bool
	NullsFirst bool
}

// SortIndices returns the stable permutation that orders rows by the key
// columns. Null placement follows each key's NullsFirst flag and is
// independent of direction. keys and opts must have equal length, and
// every key column the same row count.
func SortIndices(keys []*Series, opts []SortKey) []int {
	n := 0
	if len(keys) > 0 {
		n = keys[0].Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return CompareRows(keys, opts, idx[a], idx[b]) < 0
	})
	return idx
}

// CompareRows compares rows a and b under the multi-key order. The
// result is negative when row a sorts first.
func CompareRows(keys []*Series, opts []SortKey, a, b int) int {
	for k, key := range keys {
		av, aok := key.Get(a)
		bv, bok := key.Get(b)
		if !aok || !bok {
			if aok == bok {
				continue
			}
			// Exactly one side is null.
			if opts[k].NullsFirst == !aok {
				return -1
			}
			return 1
		}
		c := CompareBoxed(av, bv)
		if c == 0 {
			continue
		}
		if opts[k].Descending {
			return -c
		}
		return c
	}
	return 0
}
