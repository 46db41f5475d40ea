package series

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"golang.org/x/exp/constraints"
)

// CompareBoxed orders two boxed values of the same logical type. Both
// must be non-nil; null ordering is the caller's policy. Floats use a
// total order in which NaN sorts greater than every number and equal
// to itself.
func CompareBoxed(a, b any) int {
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int32:
		return cmpOrdered(av, b.(int32))
	case int64:
		return cmpOrdered(av, b.(int64))
	case float32:
		return cmpFloat(float64(av), float64(b.(float32)))
	case float64:
		return cmpFloat(av, b.(float64))
	case string:
		return cmpOrdered(av, b.(string))
	default:
		panic(fmt.Sprintf("series: uncomparable value type %T", a))
	}
}

func cmpFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmpOrdered(a, b)
}

func cmpOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// EqualBoxed reports equality of two boxed values of the same type.
func EqualBoxed(a, b any) bool {
	return CompareBoxed(a, b) == 0
}

// Equal reports value equality of two series, including null positions.
// Used by tests and by Distinct on small fallbacks.
func (s *Series) Equal(o *Series) bool {
	if s.length != o.length || s.name != o.name || !arrow.TypeEqual(s.dtype, o.dtype) {
		return false
	}
	for i := 0; i < s.length; i++ {
		av, aok := s.Get(i)
		bv, bok := o.Get(i)
		if aok != bok {
			return false
		}
		if aok && !EqualBoxed(av, bv) {
			return false
		}
	}
	return true
}
