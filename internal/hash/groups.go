package hash

import "github.com/quiverdata/quiver/internal/series"

// Groups clusters row indices by key tuple, in first-seen order. Hash
// buckets are verified by exact comparison, and null key components
// compare equal to each other, so all-null tuples form a group of their
// own.
func Groups(keys []*series.Series) ([][]int, error) {
	hashes, err := Rows(keys)
	if err != nil {
		return nil, err
	}
	return GroupsByHash(keys, hashes, 0, len(hashes)), nil
}

// GroupsByHash clusters rows [start, end) using precomputed row hashes.
// Workers grouping disjoint ranges in parallel use this and merge with
// MergeGroups.
func GroupsByHash(keys []*series.Series, hashes []uint64, start, end int) [][]int {
	var groups [][]int
	byHash := make(map[uint64][]int)
	for i := start; i < end; i++ {
		h := hashes[i]
		found := false
		for _, gid := range byHash[h] {
			if RowsEqual(keys, groups[gid][0], keys, i) {
				groups[gid] = append(groups[gid], i)
				found = true
				break
			}
		}
		if !found {
			byHash[h] = append(byHash[h], len(groups))
			groups = append(groups, []int{i})
		}
	}
	return groups
}

// MergeGroups folds per-range group tables into one, preserving
// first-seen order across ranges. parts must be ordered by range start.
func MergeGroups(keys []*series.Series, hashes []uint64, parts [][][]int) [][]int {
	var groups [][]int
	byHash := make(map[uint64][]int)
	for _, part := range parts {
		for _, rows := range part {
			h := hashes[rows[0]]
			found := false
			for _, gid := range byHash[h] {
				if RowsEqual(keys, groups[gid][0], keys, rows[0]) {
					groups[gid] = append(groups[gid], rows...)
					found = true
					break
				}
			}
			if !found {
				byHash[h] = append(byHash[h], len(groups))
				groups = append(groups, rows)
			}
		}
	}
	return groups
}
