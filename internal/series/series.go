// Package series provides the chunked, typed column type backing all
// engine operations, built on the Apache Arrow columnar format.
//
// A Series is a name, a logical type, and an ordered list of immutable
// Arrow arrays (chunks). Validity bitmaps on the chunks carry per-row
// null markers. Slicing and concatenation are zero-copy: both share the
// underlying chunk buffers and only adjust offsets or the chunk list.
package series

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/qerrors"
)

// Series is one named, typed column stored as one or more chunks.
type Series struct {
	name   string
	dtype  arrow.DataType
	chunks []arrow.Array
	length int
}

// FromChunks assembles a Series from existing Arrow arrays. All chunks
// must share the data type.
func FromChunks(name string, dtype arrow.DataType, chunks []arrow.Array) (*Series, error) {
	length := 0
	for _, c := range chunks {
		if !arrow.TypeEqual(c.DataType(), dtype) {
			return nil, qerrors.TypeMismatch("Series",
				fmt.Sprintf("chunk type %s does not match series type %s", c.DataType(), dtype))
		}
		length += c.Len()
	}
	return &Series{name: name, dtype: dtype, chunks: chunks, length: length}, nil
}

// FromArray wraps a single Arrow array as a one-chunk Series.
func FromArray(name string, arr arrow.Array) *Series {
	return &Series{name: name, dtype: arr.DataType(), chunks: []arrow.Array{arr}, length: arr.Len()}
}

// New builds a single-chunk Series from a Go slice. Supported element
// types: bool, int32, int64, float32, float64, string, time.Time.
func New[T any](name string, values []T) *Series {
	return NewWithNulls(name, values, nil)
}

// NewWithNulls builds a Series from a Go slice plus an optional validity
// mask (true = valid). A nil mask means every value is valid.
func NewWithNulls[T any](name string, values []T, valid []bool) *Series {
	mem := memory.NewGoAllocator()

	ok := func(i int) bool { return valid == nil || valid[i] }

	var arr arrow.Array
	switch vs := any(values).(type) {
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	case []time.Time:
		b := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Microsecond})
		defer b.Release()
		for i, v := range vs {
			if ok(i) {
				b.Append(arrow.Timestamp(v.UnixMicro()))
			} else {
				b.AppendNull()
			}
		}
		arr = b.NewArray()
	default:
		panic(fmt.Sprintf("series: unsupported element type %T", values))
	}

	return FromArray(name, arr)
}

// Name returns the column name.
func (s *Series) Name() string {
	return s.name
}

// Rename returns a Series with a new name sharing the same chunks.
func (s *Series) Rename(name string) *Series {
	return &Series{name: name, dtype: s.dtype, chunks: s.chunks, length: s.length}
}

// DataType returns the logical type.
func (s *Series) DataType() arrow.DataType {
	return s.dtype
}

// Len returns the logical length, the sum of all chunk lengths.
func (s *Series) Len() int {
	return s.length
}

// Chunks returns the backing Arrow arrays. Callers must not mutate them.
func (s *Series) Chunks() []arrow.Array {
	return s.chunks
}

// NullCount returns the total number of nulls across chunks.
func (s *Series) NullCount() int {
	n := 0
	for _, c := range s.chunks {
		n += c.NullN()
	}
	return n
}

// resolve maps a logical index to (chunk, offset within chunk).
func (s *Series) resolve(i int) (arrow.Array, int) {
	for _, c := range s.chunks {
		if i < c.Len() {
			return c, i
		}
		i -= c.Len()
	}
	panic(fmt.Sprintf("series: index %d out of range for length %d", i, s.length))
}

// IsNull reports whether the value at logical index i is null.
func (s *Series) IsNull(i int) bool {
	c, off := s.resolve(i)
	return c.IsNull(off)
}

// Get returns the boxed value at logical index i and whether it is valid.
// Numeric, boolean, and string types box to their Go native forms;
// temporal types box to their physical integer representation; a
// categorical boxes to its dictionary string.
func (s *Series) Get(i int) (any, bool) {
	c, off := s.resolve(i)
	if c.IsNull(off) {
		return nil, false
	}
	return boxedValue(c, off), true
}

func boxedValue(c arrow.Array, i int) any {
	switch arr := c.(type) {
	case *array.Boolean:
		return arr.Value(i)
	case *array.Int32:
		return arr.Value(i)
	case *array.Int64:
		return arr.Value(i)
	case *array.Float32:
		return arr.Value(i)
	case *array.Float64:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	case *array.Date32:
		return int32(arr.Value(i))
	case *array.Timestamp:
		return int64(arr.Value(i))
	case *array.Dictionary:
		dict, ok := arr.Dictionary().(*array.String)
		if !ok {
			panic(fmt.Sprintf("series: unsupported dictionary value type %T", arr.Dictionary()))
		}
		return dict.Value(arr.GetValueIndex(i))
	default:
		panic(fmt.Sprintf("series: unsupported array type %T", c))
	}
}

// Slice returns a zero-copy view of rows [offset, offset+length). The
// result shares chunk buffers with the receiver.
func (s *Series) Slice(offset, length int) (*Series, error) {
	if offset < 0 || length < 0 || offset+length > s.length {
		return nil, qerrors.Schema("Slice",
			fmt.Sprintf("slice [%d, %d) out of range for length %d", offset, offset+length, s.length))
	}

	var out []arrow.Array
	remaining := length
	skip := offset
	for _, c := range s.chunks {
		if remaining == 0 {
			break
		}
		if skip >= c.Len() {
			skip -= c.Len()
			continue
		}
		take := c.Len() - skip
		if take > remaining {
			take = remaining
		}
		out = append(out, array.NewSlice(c, int64(skip), int64(skip+take)))
		remaining -= take
		skip = 0
	}

	return &Series{name: s.name, dtype: s.dtype, chunks: out, length: length}, nil
}

// Concat appends other's chunks to the receiver without copying buffers.
func (s *Series) Concat(others ...*Series) (*Series, error) {
	chunks := append([]arrow.Array(nil), s.chunks...)
	length := s.length
	for _, o := range others {
		if !arrow.TypeEqual(o.dtype, s.dtype) {
			return nil, qerrors.TypeMismatch("Concat",
				fmt.Sprintf("cannot concat %s series onto %s series", o.dtype, s.dtype))
		}
		chunks = append(chunks, o.chunks...)
		length += o.length
	}
	return &Series{name: s.name, dtype: s.dtype, chunks: chunks, length: length}, nil
}

// String returns a short description for diagnostics.
func (s *Series) String() string {
	return fmt.Sprintf("Series[%s; %s; len=%d; chunks=%d]", s.name, s.dtype, s.length, len(s.chunks))
}

// Release releases the underlying Arrow chunks.
func (s *Series) Release() {
	for _, c := range s.chunks {
		c.Release()
	}
}
