package series

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/qerrors"
)

// NewBuilder returns an Arrow builder for the given logical type.
func NewBuilder(mem memory.Allocator, dtype arrow.DataType) (array.Builder, error) {
	switch dtype.ID() {
	case arrow.BOOL, arrow.INT32, arrow.INT64, arrow.FLOAT32, arrow.FLOAT64,
		arrow.STRING, arrow.DATE32, arrow.TIMESTAMP, arrow.DICTIONARY:
		return array.NewBuilder(mem, dtype), nil
	default:
		return nil, qerrors.Schema("Builder", fmt.Sprintf("unsupported logical type %s", dtype))
	}
}

// AppendFrom copies the value at src[i] (or a null) into the builder. The
// builder must have the same logical type as the source array.
func AppendFrom(b array.Builder, src arrow.Array, i int) {
	if src.IsNull(i) {
		b.AppendNull()
		return
	}

	switch arr := src.(type) {
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(arr.Value(i))
	case *array.Int32:
		b.(*array.Int32Builder).Append(arr.Value(i))
	case *array.Int64:
		b.(*array.Int64Builder).Append(arr.Value(i))
	case *array.Float32:
		b.(*array.Float32Builder).Append(arr.Value(i))
	case *array.Float64:
		b.(*array.Float64Builder).Append(arr.Value(i))
	case *array.String:
		b.(*array.StringBuilder).Append(arr.Value(i))
	case *array.Date32:
		b.(*array.Date32Builder).Append(arr.Value(i))
	case *array.Timestamp:
		b.(*array.TimestampBuilder).Append(arr.Value(i))
	case *array.Dictionary:
		dict := arr.Dictionary().(*array.String)
		if err := b.(*array.BinaryDictionaryBuilder).AppendString(dict.Value(arr.GetValueIndex(i))); err != nil {
			panic(fmt.Sprintf("series: dictionary append: %v", err))
		}
	default:
		panic(fmt.Sprintf("series: unsupported array type %T", src))
	}
}

// AppendBoxed appends a boxed Go value produced by Get to the builder.
func AppendBoxed(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bld := b.(type) {
	case *array.BooleanBuilder:
		bld.Append(v.(bool))
	case *array.Int32Builder:
		bld.Append(v.(int32))
	case *array.Int64Builder:
		bld.Append(v.(int64))
	case *array.Float32Builder:
		bld.Append(v.(float32))
	case *array.Float64Builder:
		bld.Append(v.(float64))
	case *array.StringBuilder:
		bld.Append(v.(string))
	case *array.Date32Builder:
		bld.Append(arrow.Date32(v.(int32)))
	case *array.TimestampBuilder:
		bld.Append(arrow.Timestamp(v.(int64)))
	case *array.BinaryDictionaryBuilder:
		return bld.AppendString(v.(string))
	default:
		return qerrors.Schema("Builder", fmt.Sprintf("unsupported builder type %T", b))
	}
	return nil
}

// FromBoxed builds a series of the given logical type from boxed
// values; nil entries become nulls.
func FromBoxed(name string, dtype arrow.DataType, values []any) (*Series, error) {
	b, err := NewBuilder(memory.NewGoAllocator(), dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(len(values))
	for _, v := range values {
		if err := AppendBoxed(b, v); err != nil {
			return nil, err
		}
	}
	return FromArray(name, b.NewArray()), nil
}

// Zero builds an empty series of the given logical type.
func Zero(name string, dtype arrow.DataType) (*Series, error) {
	b, err := NewBuilder(memory.NewGoAllocator(), dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	return FromArray(name, b.NewArray()), nil
}

// Repeat builds a series of n copies of one boxed value. A nil value
// yields n nulls.
func Repeat(name string, dtype arrow.DataType, v any, n int) (*Series, error) {
	b, err := NewBuilder(memory.NewGoAllocator(), dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		if err := AppendBoxed(b, v); err != nil {
			return nil, err
		}
	}
	return FromArray(name, b.NewArray()), nil
}

// Take gathers rows by logical index into a new single-chunk Series. A
// negative index emits a null, which join and window operators use for
// unmatched rows.
func (s *Series) Take(indices []int) (*Series, error) {
	mem := memory.NewGoAllocator()
	b, err := NewBuilder(mem, s.dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(len(indices))

	for _, idx := range indices {
		if idx < 0 {
			b.AppendNull()
			continue
		}
		if idx >= s.length {
			return nil, qerrors.Schema("Take",
				fmt.Sprintf("index %d out of range for length %d", idx, s.length))
		}
		c, off := s.resolve(idx)
		AppendFrom(b, c, off)
	}

	return FromArray(s.name, b.NewArray()), nil
}

// Filter keeps rows where mask is true. Mask length must equal the
// series length; null mask entries drop the row.
func (s *Series) Filter(mask []bool) (*Series, error) {
	if len(mask) != s.length {
		return nil, qerrors.Schema("Filter",
			fmt.Sprintf("mask length %d does not match series length %d", len(mask), s.length))
	}

	mem := memory.NewGoAllocator()
	b, err := NewBuilder(mem, s.dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	i := 0
	for _, c := range s.chunks {
		for off := 0; off < c.Len(); off++ {
			if mask[i] {
				AppendFrom(b, c, off)
			}
			i++
		}
	}

	return FromArray(s.name, b.NewArray()), nil
}

// Apply runs fn over every row and builds a new Series of the given
// output type. The function receives the boxed value (nil when the row
// is null) and returns the boxed result (nil for a null result). Null
// propagation is the caller's choice; most callers return nil on nil.
func (s *Series) Apply(name string, out arrow.DataType, fn func(any) (any, error)) (*Series, error) {
	mem := memory.NewGoAllocator()
	b, err := NewBuilder(mem, out)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(s.length)

	for _, c := range s.chunks {
		for off := 0; off < c.Len(); off++ {
			var v any
			if !c.IsNull(off) {
				v = boxedValue(c, off)
			}
			r, err := fn(v)
			if err != nil {
				return nil, err
			}
			if err := AppendBoxed(b, r); err != nil {
				return nil, err
			}
		}
	}

	return FromArray(name, b.NewArray()), nil
}

// Rechunk copies the series into a single contiguous chunk. Algorithms
// that index heavily (sort, join probes) call this once up front so the
// per-row chunk resolution is a no-op.
func (s *Series) Rechunk() (*Series, error) {
	if len(s.chunks) == 1 {
		return s, nil
	}

	mem := memory.NewGoAllocator()
	b, err := NewBuilder(mem, s.dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(s.length)

	for _, c := range s.chunks {
		for off := 0; off < c.Len(); off++ {
			AppendFrom(b, c, off)
		}
	}

	return FromArray(s.name, b.NewArray()), nil
}
