// Package hash provides row and key-tuple hashing for the group-by and
// join engines.
//
// A row hash is the combination of per-column value hashes. The combine
// step is a fixed, order-independent XOR of mixed per-column hashes, so
// re-ordering key columns does not change bucketing. Hash ties are never
// trusted: callers resolve collisions by exact key comparison.
package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/quiverdata/quiver/internal/series"
)

// nullSentinel is the hash assigned to null values. Nulls bucket
// together; join semantics (null matches nothing) are enforced by the
// join engine, not here.
const nullSentinel uint64 = 0x9e3779b97f4a7c15

// Boxed hashes a single boxed value as produced by Series.Get.
func Boxed(v any) uint64 {
	if v == nil {
		return nullSentinel
	}

	var buf [8]byte
	switch n := v.(type) {
	case bool:
		if n {
			buf[0] = 1
		}
		return xxhash.Sum64(buf[:1])
	case int32:
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(n)))
		return xxhash.Sum64(buf[:])
	case int64:
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		return xxhash.Sum64(buf[:])
	case float32:
		return hashFloat(float64(n))
	case float64:
		return hashFloat(n)
	case string:
		return xxhash.Sum64String(n)
	default:
		panic(fmt.Sprintf("hash: unsupported value type %T", v))
	}
}

func hashFloat(f float64) uint64 {
	// Normalize negative zero so 0.0 and -0.0 bucket together.
	if f == 0 {
		f = 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return xxhash.Sum64(buf[:])
}

// mix spreads a per-column hash before the XOR combine so identical
// values in different columns do not cancel.
func mix(h, salt uint64) uint64 {
	h ^= salt
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}

// columnSalt gives each key column a stable salt derived from its name,
// keeping the combine independent of column order but not of identity.
func columnSalt(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Rows hashes every row's key tuple across the given key columns. All
// columns must share the same length.
func Rows(cols []*series.Series) ([]uint64, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("hash: no key columns")
	}
	n := cols[0].Len()
	for _, c := range cols[1:] {
		if c.Len() != n {
			return nil, fmt.Errorf("hash: key column %q length %d != %d", c.Name(), c.Len(), n)
		}
	}

	hashes := make([]uint64, n)
	for _, col := range cols {
		salt := columnSalt(col.Name())

		// Categorical fast path: hash dictionary strings once, then
		// look rows up by code.
		if codes, dict, ok := col.CategoricalCodes(); ok {
			codeHashes := make([]uint64, dict.Len())
			for i := range codeHashes {
				codeHashes[i] = xxhash.Sum64String(dict.Value(i))
			}
			for i, code := range codes {
				if code < 0 {
					hashes[i] ^= mix(nullSentinel, salt)
				} else {
					hashes[i] ^= mix(codeHashes[code], salt)
				}
			}
			continue
		}

		for i := 0; i < n; i++ {
			v, ok := col.Get(i)
			if !ok {
				hashes[i] ^= mix(nullSentinel, salt)
			} else {
				hashes[i] ^= mix(Boxed(v), salt)
			}
		}
	}
	return hashes, nil
}

// RowsEqual compares the key tuples of two row positions exactly,
// treating null as equal to null (group-by semantics). Join null
// exclusion is handled before probing.
func RowsEqual(aCols []*series.Series, ai int, bCols []*series.Series, bi int) bool {
	for k := range aCols {
		av, aok := aCols[k].Get(ai)
		bv, bok := bCols[k].Get(bi)
		if aok != bok {
			return false
		}
		if aok && !series.EqualBoxed(av, bv) {
			return false
		}
	}
	return true
}

// RowHasNull reports whether any key column is null at the row.
func RowHasNull(cols []*series.Series, i int) bool {
	for _, c := range cols {
		if c.IsNull(i) {
			return true
		}
	}
	return false
}
