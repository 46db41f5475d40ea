package expr

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

func testFrame(t *testing.T) *dataframe.DataFrame {
	t.Helper()
	df, err := dataframe.New(
		series.New("i", []int64{1, 2, 3, 4}),
		series.NewWithNulls("n", []int64{10, 20, 30, 40}, []bool{true, false, true, true}),
		series.New("f", []float64{0.5, 1.5, 2.5, 3.5}),
		series.New("s", []string{"  a ", "B", "c", "D"}),
		series.New("g", []string{"x", "y", "x", "y"}),
	)
	require.NoError(t, err)
	return df
}

func values(t *testing.T, s *series.Series) []any {
	t.Helper()
	out := make([]any, s.Len())
	for i := range out {
		v, ok := s.Get(i)
		if ok {
			out[i] = v
		}
	}
	return out
}

func TestEvaluateColumn(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(Col("i"), df)
	require.NoError(t, err)
	assert.Equal(t, "i", s.Name())
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, values(t, s))

	_, err = Evaluate(Col("missing"), df)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerrors.ErrSchema)
}

func TestEvaluateLiteralBroadcast(t *testing.T) {
	df := testFrame(t)
	s, err := Evaluate(Lit(7), df)
	require.NoError(t, err)
	assert.Equal(t, df.Len(), s.Len())
	assert.Equal(t, []any{int64(7), int64(7), int64(7), int64(7)}, values(t, s))
}

func TestEvaluateArithmetic(t *testing.T) {
	df := testFrame(t)

	t.Run("add with literal", func(t *testing.T) {
		s, err := Evaluate(Col("i").Add(Lit(10)), df)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(11), int64(12), int64(13), int64(14)}, values(t, s))
	})

	t.Run("mixed types promote", func(t *testing.T) {
		s, err := Evaluate(Col("i").Mul(Col("f")), df)
		require.NoError(t, err)
		assert.Equal(t, arrow.FLOAT64, s.DataType().ID())
		assert.Equal(t, []any{0.5, 3.0, 7.5, 14.0}, values(t, s))
	})

	t.Run("integer division yields float64", func(t *testing.T) {
		s, err := Evaluate(Col("i").Div(Lit(2)), df)
		require.NoError(t, err)
		assert.Equal(t, arrow.FLOAT64, s.DataType().ID())
		assert.Equal(t, []any{0.5, 1.0, 1.5, 2.0}, values(t, s))
	})

	t.Run("null propagates", func(t *testing.T) {
		s, err := Evaluate(Col("n").Add(Col("i")), df)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(11), nil, int64(33), int64(44)}, values(t, s))
	})

	t.Run("string arithmetic fails", func(t *testing.T) {
		_, err := Evaluate(Col("s").Add(Col("s")), df)
		require.Error(t, err)
		assert.ErrorIs(t, err, qerrors.ErrSchema)
	})
}

func TestEvaluateComparison(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(Col("i").Gt(Lit(2)), df)
	require.NoError(t, err)
	assert.Equal(t, []any{false, false, true, true}, values(t, s))

	s, err = Evaluate(Col("n").Le(Lit(30)), df)
	require.NoError(t, err)
	assert.Equal(t, []any{true, nil, true, false}, values(t, s))

	s, err = Evaluate(Col("g").Eq(Lit("x")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{true, false, true, false}, values(t, s))
}

func TestEvaluateLogical(t *testing.T) {
	df := testFrame(t)

	e := Col("i").Gt(Lit(1)).And(Col("f").Lt(Lit(3.0)))
	s, err := Evaluate(e, df)
	require.NoError(t, err)
	assert.Equal(t, []any{false, true, true, false}, values(t, s))

	// Null on either side of a logical op propagates.
	e = Col("n").Gt(Lit(15)).Or(Col("i").Gt(Lit(100)))
	s, err = Evaluate(e, df)
	require.NoError(t, err)
	assert.Equal(t, []any{false, nil, true, true}, values(t, s))
}

func TestEvaluateNullLiteral(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(Col("i").Add(Lit(nil)), df)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil, nil}, values(t, s))

	s, err = Evaluate(NewCast(Lit(nil), arrow.PrimitiveTypes.Float64), df)
	require.NoError(t, err)
	assert.Equal(t, arrow.FLOAT64, s.DataType().ID())
	assert.Equal(t, []any{nil, nil, nil, nil}, values(t, s))

	_, err = Evaluate(Lit(nil), df)
	require.Error(t, err)
}

func TestEvaluateUnary(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(Col("i").Neg(), df)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(-1), int64(-2), int64(-3), int64(-4)}, values(t, s))

	s, err = Evaluate(Col("i").Gt(Lit(2)).Not(), df)
	require.NoError(t, err)
	assert.Equal(t, []any{true, true, false, false}, values(t, s))

	s, err = Evaluate(Col("n").IsNull(), df)
	require.NoError(t, err)
	assert.Equal(t, []any{false, true, false, false}, values(t, s))
	assert.Equal(t, 0, s.NullCount())

	s, err = Evaluate(Col("n").IsNotNull(), df)
	require.NoError(t, err)
	assert.Equal(t, []any{true, false, true, true}, values(t, s))
}

func TestEvaluateStringFunctions(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(NewFunction(FnUpper, Col("s")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{"  A ", "B", "C", "D"}, values(t, s))

	s, err = Evaluate(NewFunction(FnTrim, Col("s")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "B", "c", "D"}, values(t, s))

	s, err = Evaluate(NewFunction(FnLength, Col("s")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(1), int64(1), int64(1)}, values(t, s))
}

func TestEvaluateTemporalFunctions(t *testing.T) {
	ts := []time.Time{
		time.Date(2023, 4, 15, 10, 30, 0, 0, time.UTC),
		time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	df, err := dataframe.New(series.New("ts", ts))
	require.NoError(t, err)

	s, err := Evaluate(NewFunction(FnYear, Col("ts")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2023), int64(2024)}, values(t, s))

	s, err = Evaluate(NewFunction(FnMonth, Col("ts")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(12)}, values(t, s))

	s, err = Evaluate(NewFunction(FnDay, Col("ts")), df)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(15), int64(1)}, values(t, s))
}

func TestEvaluateAggregations(t *testing.T) {
	df := testFrame(t)

	tests := []struct {
		name string
		expr Expr
		want any
	}{
		{"sum", Col("i").Sum(), int64(10)},
		{"sum skips nulls", Col("n").Sum(), int64(80)},
		{"mean skips nulls", Col("n").Mean(), 80.0 / 3.0},
		{"min", Col("f").Min(), 0.5},
		{"max", Col("i").Max(), int64(4)},
		{"count is non-null count", Col("n").Count(), int64(3)},
		{"first", Col("i").First(), int64(1)},
		{"last", Col("g").Last(), "y"},
		{"n_unique", Col("g").NUnique(), int64(2)},
		{"n_unique counts null", Col("n").NUnique(), int64(4)},
		{"var", Col("i").Var(), 5.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Evaluate(tt.expr, df)
			require.NoError(t, err)
			require.Equal(t, 1, s.Len())
			v, ok := s.Get(0)
			if f, isFloat := tt.want.(float64); isFloat {
				require.True(t, ok)
				assert.InDelta(t, f, v.(float64), 1e-12)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	t.Run("std", func(t *testing.T) {
		s, err := Evaluate(Col("i").Std(), df)
		require.NoError(t, err)
		v, ok := s.Get(0)
		require.True(t, ok)
		assert.InDelta(t, 1.2909944487358056, v.(float64), 1e-12)
	})

	t.Run("sum of all-null is null", func(t *testing.T) {
		empty, err := dataframe.New(series.NewWithNulls("a", []int64{0, 0}, []bool{false, false}))
		require.NoError(t, err)
		s, err := Evaluate(Col("a").Sum(), empty)
		require.NoError(t, err)
		require.Equal(t, 1, s.Len())
		assert.True(t, s.IsNull(0))
	})

	t.Run("var of single value is null", func(t *testing.T) {
		one, err := dataframe.New(series.New("a", []int64{5}))
		require.NoError(t, err)
		s, err := Evaluate(Col("a").Var(), one)
		require.NoError(t, err)
		assert.True(t, s.IsNull(0))
	})
}

func TestEvaluateCastAndAlias(t *testing.T) {
	df := testFrame(t)

	s, err := Evaluate(Col("i").Cast(arrow.PrimitiveTypes.Float64).As("i_f"), df)
	require.NoError(t, err)
	assert.Equal(t, "i_f", s.Name())
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, values(t, s))
}

func TestEvaluateSortBy(t *testing.T) {
	df, err := dataframe.New(
		series.New("v", []string{"a", "b", "c", "d"}),
		series.NewWithNulls("k", []int64{3, 1, 4, 0}, []bool{true, true, true, false}),
	)
	require.NoError(t, err)

	e := NewSortBy(Col("v"), []SortField{{Expr: Col("k")}})
	s, err := Evaluate(e, df)
	require.NoError(t, err)
	// Nulls last by default.
	assert.Equal(t, []any{"b", "a", "c", "d"}, values(t, s))

	e = NewSortBy(Col("v"), []SortField{{Expr: Col("k"), Descending: true, NullsFirst: true}})
	s, err = Evaluate(e, df)
	require.NoError(t, err)
	assert.Equal(t, []any{"d", "c", "a", "b"}, values(t, s))
}

func TestEvaluateWindow(t *testing.T) {
	df := testFrame(t)

	t.Run("aggregation broadcasts over partition", func(t *testing.T) {
		s, err := Evaluate(Col("i").Sum().Over(Col("g")), df)
		require.NoError(t, err)
		require.Equal(t, df.Len(), s.Len())
		// Groups: x -> rows 0,2 (sum 4); y -> rows 1,3 (sum 6).
		assert.Equal(t, []any{int64(4), int64(6), int64(4), int64(6)}, values(t, s))
	})

	t.Run("elementwise result scatters back", func(t *testing.T) {
		s, err := Evaluate(Col("i").Add(Lit(100)).Over(Col("g")), df)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(101), int64(102), int64(103), int64(104)}, values(t, s))
	})

	t.Run("requires partition keys", func(t *testing.T) {
		_, err := Evaluate(NewWindow(Col("i").Sum(), nil, nil), df)
		require.Error(t, err)
		assert.ErrorIs(t, err, qerrors.ErrSchema)
	})
}

func TestMask(t *testing.T) {
	df := testFrame(t)

	mask, err := Mask(Col("n").Gt(Lit(15)), df)
	require.NoError(t, err)
	// Null predicate rows drop.
	assert.Equal(t, []bool{false, false, true, true}, mask)

	_, err = Mask(Col("i").Add(Lit(1)), df)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerrors.ErrSchema)
}
