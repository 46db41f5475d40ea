package series

import (
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/qerrors"
)

func TestNewPrimitives(t *testing.T) {
	s := New("a", []int64{1, 2, 3})
	assert.Equal(t, "a", s.Name())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 0, s.NullCount())
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, s.DataType()))

	v, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestNewWithNulls(t *testing.T) {
	s := NewWithNulls("x", []float64{1.5, 0, 2.5}, []bool{true, false, true})
	assert.Equal(t, 1, s.NullCount())
	assert.True(t, s.IsNull(1))

	_, ok := s.Get(1)
	assert.False(t, ok)
	v, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
}

func TestSliceIsZeroCopyView(t *testing.T) {
	s := New("a", []int64{10, 20, 30, 40, 50})

	sl, err := s.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sl.Len())

	// Reading index i of the slice equals reading index 1+i of the
	// original, for every valid i.
	for i := 0; i < sl.Len(); i++ {
		want, _ := s.Get(1 + i)
		got, _ := sl.Get(i)
		assert.Equal(t, want, got)
	}

	// The slice shares the original chunk buffers.
	require.Len(t, sl.Chunks(), 1)
	assert.Same(t, s.Chunks()[0].Data().Buffers()[1], sl.Chunks()[0].Data().Buffers()[1])
}

func TestSliceOutOfRange(t *testing.T) {
	s := New("a", []int64{1, 2})
	_, err := s.Slice(1, 5)
	assert.True(t, errors.Is(err, qerrors.ErrSchema))
}

func TestConcatAppendsChunks(t *testing.T) {
	a := New("a", []int64{1, 2})
	b := New("a", []int64{3})
	c := New("a", []int64{4, 5})

	out, err := a.Concat(b, c)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
	assert.Len(t, out.Chunks(), 3)

	for i := 0; i < 5; i++ {
		v, ok := out.Get(i)
		require.True(t, ok)
		assert.Equal(t, int64(i+1), v)
	}
}

func TestConcatTypeMismatch(t *testing.T) {
	a := New("a", []int64{1})
	b := New("a", []string{"x"})
	_, err := a.Concat(b)
	assert.True(t, errors.Is(err, qerrors.ErrSchema))
}

func TestSliceAcrossChunks(t *testing.T) {
	a := New("a", []int64{1, 2, 3})
	b := New("a", []int64{4, 5, 6})
	joined, err := a.Concat(b)
	require.NoError(t, err)

	sl, err := joined.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sl.Len())
	for i, want := range []int64{3, 4, 5} {
		v, ok := sl.Get(i)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestTake(t *testing.T) {
	s := New("a", []string{"x", "y", "z"})
	out, err := s.Take([]int{2, 0, -1, 1})
	require.NoError(t, err)

	assert.Equal(t, 4, out.Len())
	v, _ := out.Get(0)
	assert.Equal(t, "z", v)
	assert.True(t, out.IsNull(2))
}

func TestTakeOutOfRange(t *testing.T) {
	s := New("a", []int64{1})
	_, err := s.Take([]int{3})
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	s := New("a", []int64{1, 2, 3, 4})
	out, err := s.Filter([]bool{true, false, true, false})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	v, _ := out.Get(1)
	assert.Equal(t, int64(3), v)
}

func TestApplyPropagatesNulls(t *testing.T) {
	s := NewWithNulls("a", []int64{1, 0, 3}, []bool{true, false, true})

	out, err := s.Apply("doubled", arrow.PrimitiveTypes.Int64, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return v.(int64) * 2, nil
	})
	require.NoError(t, err)

	v, _ := out.Get(0)
	assert.Equal(t, int64(2), v)
	assert.True(t, out.IsNull(1))
	assert.Equal(t, "doubled", out.Name())
}

func TestCastNumeric(t *testing.T) {
	s := New("a", []int64{1, 2, 3})

	f, err := s.Cast(arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	v, _ := f.Get(2)
	assert.Equal(t, 3.0, v)

	// Truncating float -> int.
	g := New("b", []float64{1.9, -2.9})
	i, err := g.Cast(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	v, _ = i.Get(0)
	assert.Equal(t, int64(1), v)
	v, _ = i.Get(1)
	assert.Equal(t, int64(-2), v)
}

func TestCastStringRoundTrip(t *testing.T) {
	s := New("a", []int64{42})
	str, err := s.Cast(arrow.BinaryTypes.String)
	require.NoError(t, err)
	v, _ := str.Get(0)
	assert.Equal(t, "42", v)

	back, err := str.Cast(arrow.PrimitiveTypes.Int64)
	require.NoError(t, err)
	v, _ = back.Get(0)
	assert.Equal(t, int64(42), v)
}

func TestCastUnsupported(t *testing.T) {
	s := New("a", []string{"x"})
	_, err := s.Cast(arrow.FixedWidthTypes.Boolean)
	assert.True(t, errors.Is(err, qerrors.ErrComputation))
}

func TestCastKeepsNulls(t *testing.T) {
	s := NewWithNulls("a", []int64{1, 0}, []bool{true, false})
	out, err := s.Cast(arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	assert.True(t, out.IsNull(1))
}

func TestCategorical(t *testing.T) {
	s := NewCategorical("tag", []string{"red", "blue", "red", "green"})
	require.True(t, s.IsCategorical())
	assert.Equal(t, 4, s.Len())

	v, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, "red", v)

	codes, dict, ok := s.CategoricalCodes()
	require.True(t, ok)
	require.NotNil(t, dict)
	// Same strings share a code; distinct strings do not.
	assert.Equal(t, codes[0], codes[2])
	assert.NotEqual(t, codes[0], codes[1])
}

func TestCategoricalNulls(t *testing.T) {
	s := NewCategoricalWithNulls("tag", []string{"a", "", "a"}, []bool{true, false, true})
	codes, _, ok := s.CategoricalCodes()
	require.True(t, ok)
	assert.Equal(t, int32(-1), codes[1])
	assert.Equal(t, 1, s.NullCount())
}

func TestCompareBoxed(t *testing.T) {
	assert.Equal(t, -1, CompareBoxed(int64(1), int64(2)))
	assert.Equal(t, 1, CompareBoxed("b", "a"))
	assert.Equal(t, 0, CompareBoxed(1.5, 1.5))
	assert.Equal(t, -1, CompareBoxed(false, true))
}

func TestCompareBoxedNaN(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 1, CompareBoxed(nan, 1.0))
	assert.Equal(t, -1, CompareBoxed(1.0, nan))
	assert.Equal(t, 0, CompareBoxed(nan, nan))
	assert.Equal(t, 1, CompareBoxed(float32(math.NaN()), float32(2)))
}

func TestSeriesEqual(t *testing.T) {
	a := NewWithNulls("a", []int64{1, 0, 3}, []bool{true, false, true})
	b := NewWithNulls("a", []int64{1, 0, 3}, []bool{true, false, true})
	c := New("a", []int64{1, 2, 3})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestRechunk(t *testing.T) {
	a := New("a", []int64{1, 2})
	b := New("a", []int64{3})
	joined, err := a.Concat(b)
	require.NoError(t, err)

	flat, err := joined.Rechunk()
	require.NoError(t, err)
	assert.Len(t, flat.Chunks(), 1)
	assert.True(t, joined.Equal(flat))
}
