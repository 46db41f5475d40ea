package hash

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/series"
)

func TestRowsEqualKeysEqualHashes(t *testing.T) {
	a := series.New("k", []int64{1, 2, 1, 2})
	hashes, err := Rows([]*series.Series{a})
	require.NoError(t, err)

	assert.Equal(t, hashes[0], hashes[2])
	assert.Equal(t, hashes[1], hashes[3])
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestRowsCombineIsColumnOrderIndependent(t *testing.T) {
	a := series.New("a", []int64{1, 2})
	b := series.New("b", []string{"x", "y"})

	h1, err := Rows([]*series.Series{a, b})
	require.NoError(t, err)
	h2, err := Rows([]*series.Series{b, a})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestRowsSwappedValuesAcrossColumnsDiffer(t *testing.T) {
	// Tuple ("x" in a, "y" in b) must not hash like ("y" in a, "x" in b);
	// the per-column salt prevents XOR cancellation.
	a1 := series.New("a", []string{"x"})
	b1 := series.New("b", []string{"y"})
	a2 := series.New("a", []string{"y"})
	b2 := series.New("b", []string{"x"})

	h1, err := Rows([]*series.Series{a1, b1})
	require.NoError(t, err)
	h2, err := Rows([]*series.Series{a2, b2})
	require.NoError(t, err)

	assert.NotEqual(t, h1[0], h2[0])
}

func TestRowsNulls(t *testing.T) {
	s := series.NewWithNulls("k", []int64{1, 0, 0}, []bool{true, false, false})
	hashes, err := Rows([]*series.Series{s})
	require.NoError(t, err)

	// Nulls bucket together.
	assert.Equal(t, hashes[1], hashes[2])
	assert.NotEqual(t, hashes[0], hashes[1])
}

func TestRowsCategoricalMatchesStrings(t *testing.T) {
	cat := series.NewCategorical("k", []string{"red", "blue", "red"})
	str := series.New("k", []string{"red", "blue", "red"})

	hc, err := Rows([]*series.Series{cat})
	require.NoError(t, err)
	hs, err := Rows([]*series.Series{str})
	require.NoError(t, err)

	assert.Equal(t, hs, hc)
}

func TestRowsLengthMismatch(t *testing.T) {
	a := series.New("a", []int64{1})
	b := series.New("b", []int64{1, 2})
	_, err := Rows([]*series.Series{a, b})
	assert.Error(t, err)
}

func TestRowsEqualExactComparison(t *testing.T) {
	a := series.NewWithNulls("k", []int64{1, 0}, []bool{true, false})
	b := series.NewWithNulls("k", []int64{1, 0}, []bool{true, false})

	cols := []*series.Series{a}
	other := []*series.Series{b}

	assert.True(t, RowsEqual(cols, 0, other, 0))
	assert.True(t, RowsEqual(cols, 1, other, 1), "null == null for grouping")
	assert.False(t, RowsEqual(cols, 0, other, 1))
}

func TestRowHasNull(t *testing.T) {
	a := series.New("a", []int64{1, 2})
	b := series.NewWithNulls("b", []int64{0, 5}, []bool{false, true})

	cols := []*series.Series{a, b}
	assert.True(t, RowHasNull(cols, 0))
	assert.False(t, RowHasNull(cols, 1))
}

func TestBoxedFloatNegativeZero(t *testing.T) {
	assert.Equal(t, Boxed(0.0), Boxed(math.Copysign(0, -1)))
}
