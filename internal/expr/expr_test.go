package expr

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/qerrors"
)

func TestFluentBuilders(t *testing.T) {
	e := Col("price").Mul(Col("qty")).Gt(Lit(100)).And(Col("region").Eq(Lit("emea")))

	b, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpAnd, b.Op())
	assert.Equal(t,
		`(((col(price) * col(qty)) > lit(100)) && (col(region) == lit("emea")))`,
		e.String())
}

func TestExprString(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"column", Col("a"), "col(a)"},
		{"int literal", Lit(5), "lit(5)"},
		{"string literal", Lit("x"), `lit("x")`},
		{"arithmetic", Col("a").Add(Lit(1)), "(col(a) + lit(1))"},
		{"comparison", Col("a").Ge(Col("b")), "(col(a) >= col(b))"},
		{"negation", Col("a").Neg(), "(-col(a))"},
		{"is null", Col("a").IsNull(), "col(a).is_null()"},
		{"aggregation", Col("a").Sum(), "sum(col(a))"},
		{"alias", Col("a").Mean().As("avg_a"), "mean(col(a)).alias(avg_a)"},
		{"window", Col("a").Sum().Over(Col("g")), "sum(col(a)).over(col(g))"},
		{"function", NewFunction(FnUpper, Col("s")), "upper(col(s))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestLitNormalizesInt(t *testing.T) {
	l := Lit(42).(*LiteralExpr)
	assert.Equal(t, int64(42), l.Value())
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"column", Col("a"), "a"},
		{"alias wins", Col("a").Add(Lit(1)).As("b"), "b"},
		{"binary uses left column", Col("a").Add(Col("b")), "a"},
		{"agg passes through", Col("a").Sum(), "a"},
		{"window passes through", Col("a").Sum().Over(Col("g")), "a"},
		{"cast passes through", Col("a").Cast(arrow.PrimitiveTypes.Float64), "a"},
		{"literal falls back to text", Lit(1), "lit(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.expr))
		})
	}
}

func TestColumnDeps(t *testing.T) {
	e := Col("a").Add(Col("b")).Gt(Col("a").Mul(Lit(2)))
	assert.Equal(t, []string{"a", "b"}, ColumnDeps(e))
	assert.Empty(t, ColumnDeps(Lit(1)))
}

func TestHasAgg(t *testing.T) {
	assert.True(t, HasAgg(Col("a").Sum()))
	assert.True(t, HasAgg(Col("a").Sum().Add(Lit(1))))
	assert.False(t, HasAgg(Col("a").Add(Lit(1))))
	// A window contains its aggregation; row-level context is preserved.
	assert.False(t, HasAgg(Col("a").Sum().Over(Col("g"))))
}

func TestStructuralEqual(t *testing.T) {
	a := Col("x").Add(Lit(1))
	b := Col("x").Add(Lit(1))
	c := Col("x").Add(Lit(2))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, Col("x")))
	assert.True(t, Equal(Col("a").Sum().As("s"), Col("a").Sum().As("s")))
	assert.False(t, Equal(Col("a").Sum().As("s"), Col("a").Sum().As("t")))
}

func TestSplitConjunction(t *testing.T) {
	p := Col("a").Gt(Lit(1)).And(Col("b").Lt(Lit(2))).And(Col("c").Eq(Lit(3)))
	parts := SplitConjunction(p)
	require.Len(t, parts, 3)
	assert.Equal(t, "(col(a) > lit(1))", parts[0].String())
	assert.Equal(t, "(col(c) == lit(3))", parts[2].String())

	// Disjunctions are opaque.
	q := Col("a").Gt(Lit(1)).Or(Col("b").Lt(Lit(2)))
	assert.Len(t, SplitConjunction(q), 1)

	back := Conjoin(parts)
	assert.True(t, Equal(p, back))
}

func TestRewrite(t *testing.T) {
	e := Col("a").Add(Col("b"))
	out := Rewrite(e, func(n Expr) Expr {
		if c, ok := n.(*ColumnExpr); ok && c.Name() == "a" {
			return Col("z")
		}
		return n
	})
	assert.Equal(t, "(col(z) + col(b))", out.String())
	// The input tree is untouched.
	assert.Equal(t, "(col(a) + col(b))", e.String())
}

func TestPromote(t *testing.T) {
	i32 := arrow.PrimitiveTypes.Int32
	i64 := arrow.PrimitiveTypes.Int64
	f32 := arrow.PrimitiveTypes.Float32
	f64 := arrow.PrimitiveTypes.Float64

	tests := []struct {
		name        string
		op          BinaryOp
		left, right arrow.DataType
		want        arrow.DataType
		wantErr     bool
	}{
		{"int32 widens to int64", OpAdd, i32, i64, i64, false},
		{"int64 widens to float32", OpAdd, i64, f32, f32, false},
		{"float32 widens to float64", OpMul, f32, f64, f64, false},
		{"same type stays", OpSub, i64, i64, i64, false},
		{"integer division is float64", OpDiv, i64, i64, f64, false},
		{"float32 division is float64", OpDiv, f32, f32, f64, false},
		{"string comparison allowed", OpEq, arrow.BinaryTypes.String, arrow.BinaryTypes.String, arrow.BinaryTypes.String, false},
		{"bool logic allowed", OpAnd, arrow.FixedWidthTypes.Boolean, arrow.FixedWidthTypes.Boolean, arrow.FixedWidthTypes.Boolean, false},
		{"string arithmetic rejected", OpAdd, arrow.BinaryTypes.String, arrow.BinaryTypes.String, nil, true},
		{"bool arithmetic rejected", OpAdd, arrow.FixedWidthTypes.Boolean, arrow.FixedWidthTypes.Boolean, nil, true},
		{"mixed logic rejected", OpAnd, arrow.FixedWidthTypes.Boolean, i64, nil, true},
		{"string vs int comparison rejected", OpLt, arrow.BinaryTypes.String, i64, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Promote(tt.op, tt.left, tt.right)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, qerrors.ErrSchema)
				return
			}
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.want, got), "want %s got %s", tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	schema := map[string]arrow.DataType{
		"i":  arrow.PrimitiveTypes.Int64,
		"i2": arrow.PrimitiveTypes.Int32,
		"f":  arrow.PrimitiveTypes.Float64,
		"s":  arrow.BinaryTypes.String,
		"b":  arrow.FixedWidthTypes.Boolean,
		"ts": arrow.FixedWidthTypes.Timestamp_us,
	}

	tests := []struct {
		name string
		expr Expr
		want arrow.DataType
	}{
		{"column", Col("i"), arrow.PrimitiveTypes.Int64},
		{"promoted add", Col("i").Add(Col("i2")), arrow.PrimitiveTypes.Int64},
		{"mixed add", Col("i").Add(Col("f")), arrow.PrimitiveTypes.Float64},
		{"int division", Col("i").Div(Col("i2")), arrow.PrimitiveTypes.Float64},
		{"comparison is bool", Col("i").Lt(Col("f")), arrow.FixedWidthTypes.Boolean},
		{"null literal adopts sibling", Col("i").Add(Lit(nil)), arrow.PrimitiveTypes.Int64},
		{"is_null is bool", Col("s").IsNull(), arrow.FixedWidthTypes.Boolean},
		{"sum widens", Col("i2").Sum(), arrow.PrimitiveTypes.Int64},
		{"mean is float", Col("i").Mean(), arrow.PrimitiveTypes.Float64},
		{"count is int", Col("s").Count(), arrow.PrimitiveTypes.Int64},
		{"min keeps type", Col("s").Min(), arrow.BinaryTypes.String},
		{"cast overrides", Col("i").Cast(arrow.PrimitiveTypes.Float32), arrow.PrimitiveTypes.Float32},
		{"window keeps inner type", Col("i").Sum().Over(Col("s")), arrow.PrimitiveTypes.Int64},
		{"upper is string", NewFunction(FnUpper, Col("s")), arrow.BinaryTypes.String},
		{"length is int", NewFunction(FnLength, Col("s")), arrow.PrimitiveTypes.Int64},
		{"year is int", NewFunction(FnYear, Col("ts")), arrow.PrimitiveTypes.Int64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.expr, schema)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.want, got), "want %s got %s", tt.want, got)
		})
	}

	t.Run("unknown column", func(t *testing.T) {
		_, err := Resolve(Col("missing"), schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, qerrors.ErrSchema)
	})
	t.Run("sum of string", func(t *testing.T) {
		_, err := Resolve(Col("s").Sum(), schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, qerrors.ErrSchema)
	})
	t.Run("negate bool", func(t *testing.T) {
		_, err := Resolve(Col("b").Neg(), schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, qerrors.ErrSchema)
	})
}
