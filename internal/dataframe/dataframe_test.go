package dataframe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

func testFrame(t *testing.T) *DataFrame {
	t.Helper()
	df, err := New(
		series.New("id", []int64{1, 2, 3, 4}),
		series.New("name", []string{"a", "b", "c", "d"}),
		series.New("score", []float64{1.5, 2.5, 3.5, 4.5}),
	)
	require.NoError(t, err)
	return df
}

func TestNewValidation(t *testing.T) {
	_, err := New(
		series.New("a", []int64{1}),
		series.New("a", []int64{2}),
	)
	assert.True(t, errors.Is(err, qerrors.ErrSchema), "duplicate names rejected")

	_, err = New(
		series.New("a", []int64{1, 2}),
		series.New("b", []int64{1}),
	)
	assert.True(t, errors.Is(err, qerrors.ErrSchema), "length mismatch rejected")
}

func TestBasicAccessors(t *testing.T) {
	df := testFrame(t)

	assert.Equal(t, 4, df.Len())
	assert.Equal(t, 3, df.Width())
	assert.Equal(t, []string{"id", "name", "score"}, df.Columns())

	s, ok := df.Column("name")
	require.True(t, ok)
	v, _ := s.Get(2)
	assert.Equal(t, "c", v)

	_, ok = df.Column("missing")
	assert.False(t, ok)
}

func TestSelectOrderAndErrors(t *testing.T) {
	df := testFrame(t)

	out, err := df.Select("score", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "id"}, out.Columns())

	_, err = df.Select("nope")
	assert.True(t, errors.Is(err, qerrors.ErrSchema))
}

func TestDrop(t *testing.T) {
	df := testFrame(t)
	out, err := df.Drop("name")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "score"}, out.Columns())
}

func TestWithColumnReplaceKeepsPosition(t *testing.T) {
	df := testFrame(t)

	out, err := df.WithColumn(series.New("name", []string{"w", "x", "y", "z"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score"}, out.Columns())
	v, _ := out.MustColumn("name").Get(0)
	assert.Equal(t, "w", v)

	out, err = df.WithColumn(series.New("extra", []int64{9, 9, 9, 9}))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score", "extra"}, out.Columns())

	_, err = df.WithColumn(series.New("bad", []int64{1}))
	assert.Error(t, err)
}

func TestSliceClamps(t *testing.T) {
	df := testFrame(t)

	out, err := df.Slice(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	v, _ := out.MustColumn("id").Get(0)
	assert.Equal(t, int64(2), v)

	out, err = df.Slice(3, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())

	out, err = df.Slice(10, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestConcat(t *testing.T) {
	a := testFrame(t)
	b := testFrame(t)

	out, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, 8, out.Len())
	v, _ := out.MustColumn("id").Get(5)
	assert.Equal(t, int64(2), v)

	mismatched, err := New(series.New("other", []int64{1}))
	require.NoError(t, err)
	_, err = a.Concat(mismatched)
	assert.True(t, errors.Is(err, qerrors.ErrSchema))
}

func TestTakeWithNullIndices(t *testing.T) {
	df := testFrame(t)
	out, err := df.Take([]int{3, -1, 0})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	v, _ := out.MustColumn("name").Get(0)
	assert.Equal(t, "d", v)
	assert.True(t, out.MustColumn("name").IsNull(1))
}

func TestFilterMask(t *testing.T) {
	df := testFrame(t)
	out, err := df.FilterMask([]bool{true, false, false, true})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Len())
	v, _ := out.MustColumn("id").Get(1)
	assert.Equal(t, int64(4), v)
}

func TestEqual(t *testing.T) {
	a := testFrame(t)
	b := testFrame(t)
	assert.True(t, a.Equal(b))

	c, err := b.Drop("score")
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestStringRendersShapeAndNulls(t *testing.T) {
	df, err := New(
		series.NewWithNulls("a", []int64{1, 0}, []bool{true, false}),
	)
	require.NoError(t, err)

	s := df.String()
	assert.Contains(t, s, "shape: (2, 1)")
	assert.Contains(t, s, "null")
}

func TestStringTruncatesLongFrames(t *testing.T) {
	vals := make([]int64, 100)
	for i := range vals {
		vals[i] = int64(i)
	}
	df, err := New(series.New("n", vals))
	require.NoError(t, err)

	s := df.String()
	assert.Contains(t, s, "…")
	assert.Contains(t, s, "99")
}
