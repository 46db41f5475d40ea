package optimizer

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/series"
	"github.com/quiverdata/quiver/internal/source"
)

func newScan(t *testing.T, name string, cols ...*series.Series) *logical.Scan {
	t.Helper()
	df, err := dataframe.New(cols...)
	require.NoError(t, err)
	s, err := logical.NewScan(source.NewMemory(name, df))
	require.NoError(t, err)
	return s
}

func ordersScan(t *testing.T) *logical.Scan {
	t.Helper()
	return newScan(t, "orders",
		series.New("id", []int64{1, 2, 3}),
		series.New("amount", []float64{10, 20, 30}),
		series.New("region", []string{"a", "b", "a"}),
	)
}

func TestConstantFolding(t *testing.T) {
	scan := ordersScan(t)

	t.Run("folds literal arithmetic in predicates", func(t *testing.T) {
		f, err := logical.NewFilter(scan, expr.Col("amount").Gt(expr.Lit(10.0).Add(expr.Lit(5.0))))
		require.NoError(t, err)
		out, err := (ConstantFolding{}).Apply(f)
		require.NoError(t, err)
		assert.Equal(t, "Filter (col(amount) > lit(15))\n  Scan orders\n", logical.Explain(out))
	})

	t.Run("drops no-op casts", func(t *testing.T) {
		p, err := logical.NewProject(scan, []expr.Expr{expr.Col("amount").Cast(arrow.PrimitiveTypes.Float64)})
		require.NoError(t, err)
		out, err := (ConstantFolding{}).Apply(p)
		require.NoError(t, err)
		assert.Equal(t, "Project [col(amount)]\n  Scan orders\n", logical.Explain(out))
	})

	t.Run("drops identity projections", func(t *testing.T) {
		p, err := logical.NewProject(scan, []expr.Expr{expr.Col("id"), expr.Col("amount"), expr.Col("region")})
		require.NoError(t, err)
		out, err := (ConstantFolding{}).Apply(p)
		require.NoError(t, err)
		assert.Equal(t, "Scan orders\n", logical.Explain(out))
	})

	t.Run("keeps null literals unfolded", func(t *testing.T) {
		f, err := logical.NewFilter(scan, expr.Col("amount").Gt(expr.Lit(nil)).And(expr.Lit(true)))
		require.NoError(t, err)
		out, err := (ConstantFolding{}).Apply(f)
		require.NoError(t, err)
		assert.Contains(t, logical.Explain(out), "lit(<nil>)")
	})
}

func TestPredicatePushdownToScan(t *testing.T) {
	scan := ordersScan(t)
	p, err := logical.NewProject(scan, []expr.Expr{expr.Col("id"), expr.Col("amount")})
	require.NoError(t, err)
	f, err := logical.NewFilter(p, expr.Col("amount").Gt(expr.Lit(15.0)))
	require.NoError(t, err)

	out, err := (PredicatePushdown{}).Apply(f)
	require.NoError(t, err)
	assert.Equal(t,
		"Project [col(id), col(amount)]\n"+
			"  Filter (col(amount) > lit(15))\n"+
			"    Scan orders hint=(col(amount) > lit(15))\n",
		logical.Explain(out))
}

func TestPredicatePushdownKeepsComputedColumnsAbove(t *testing.T) {
	scan := ordersScan(t)
	p, err := logical.NewProject(scan, []expr.Expr{
		expr.Col("id"),
		expr.Col("amount").Mul(expr.Lit(2.0)).As("double"),
	})
	require.NoError(t, err)
	f, err := logical.NewFilter(p, expr.Col("double").Gt(expr.Lit(30.0)).And(expr.Col("id").Gt(expr.Lit(1))))
	require.NoError(t, err)

	out, err := (PredicatePushdown{}).Apply(f)
	require.NoError(t, err)
	// The id conjunct descends, the computed-column conjunct stays.
	assert.Equal(t,
		"Filter (col(double) > lit(30))\n"+
			"  Project [col(id), (col(amount) * lit(2)).alias(double)]\n"+
			"    Filter (col(id) > lit(1))\n"+
			"      Scan orders hint=(col(id) > lit(1))\n",
		logical.Explain(out))
}

func TestPredicatePushdownStopsAtAggregatingProjection(t *testing.T) {
	scan := ordersScan(t)
	p, err := logical.NewProject(scan, []expr.Expr{
		expr.Col("id"),
		expr.Col("amount").Sum().As("total"),
	})
	require.NoError(t, err)
	f, err := logical.NewFilter(p, expr.Col("id").Gt(expr.Lit(1)))
	require.NoError(t, err)

	out, err := (PredicatePushdown{}).Apply(f)
	require.NoError(t, err)
	// The conjunct reads only a passed-through column, but the sum
	// reduces over every input row, so nothing descends.
	assert.Equal(t,
		"Filter (col(id) > lit(1))\n"+
			"  Project [col(id), sum(col(amount)).alias(total)]\n"+
			"    Scan orders\n",
		logical.Explain(out))
}

func TestPredicatePushdownThroughJoin(t *testing.T) {
	left := ordersScan(t)
	right := newScan(t, "customers",
		series.New("id", []int64{1, 2}),
		series.New("name", []string{"x", "y"}),
	)

	j, err := logical.NewJoin(left, right, logical.JoinOptions{
		How: logical.JoinInner, LeftOn: []string{"id"}, RightOn: []string{"id"},
	})
	require.NoError(t, err)
	f, err := logical.NewFilter(j, expr.Col("amount").Gt(expr.Lit(15.0)).And(expr.Col("name").Eq(expr.Lit("x"))))
	require.NoError(t, err)

	out, err := (PredicatePushdown{}).Apply(f)
	require.NoError(t, err)
	explain := logical.Explain(out)
	assert.Contains(t, explain, "Scan orders hint=(col(amount) > lit(15))")
	assert.Contains(t, explain, "Scan customers hint=(col(name) == lit(\"x\"))")

	t.Run("left join keeps right-side conjunct above", func(t *testing.T) {
		lj, err := logical.NewJoin(left, right, logical.JoinOptions{
			How: logical.JoinLeft, LeftOn: []string{"id"}, RightOn: []string{"id"},
		})
		require.NoError(t, err)
		f, err := logical.NewFilter(lj, expr.Col("name").Eq(expr.Lit("x")))
		require.NoError(t, err)
		out, err := (PredicatePushdown{}).Apply(f)
		require.NoError(t, err)
		explain := logical.Explain(out)
		assert.Contains(t, explain, "Filter (col(name) == lit(\"x\"))\n  Join left")
		assert.NotContains(t, explain, "hint")
	})
}

func TestProjectionPushdown(t *testing.T) {
	scan := ordersScan(t)
	p, err := logical.NewProject(scan, []expr.Expr{expr.Col("amount").Mul(expr.Lit(2.0)).As("double")})
	require.NoError(t, err)

	out, err := (ProjectionPushdown{}).Apply(p)
	require.NoError(t, err)
	assert.Equal(t,
		"Project [(col(amount) * lit(2)).alias(double)]\n"+
			"  Scan orders project=[amount]\n",
		logical.Explain(out))
	// The output schema is untouched.
	assert.Equal(t, []string{"double"}, out.Schema().Names())
}

func TestProjectionPushdownKeepsJoinKeys(t *testing.T) {
	left := ordersScan(t)
	right := newScan(t, "customers",
		series.New("id", []int64{1, 2}),
		series.New("name", []string{"x", "y"}),
		series.New("tier", []string{"g", "s"}),
	)
	j, err := logical.NewJoin(left, right, logical.JoinOptions{
		How: logical.JoinInner, LeftOn: []string{"id"}, RightOn: []string{"id"},
	})
	require.NoError(t, err)
	p, err := logical.NewProject(j, []expr.Expr{expr.Col("region"), expr.Col("name")})
	require.NoError(t, err)

	out, err := (ProjectionPushdown{}).Apply(p)
	require.NoError(t, err)
	explain := logical.Explain(out)
	assert.Contains(t, explain, "Scan orders project=[id region]")
	assert.Contains(t, explain, "Scan customers project=[id name]")
}

func TestProjectionPushdownKeepsCollidingJoinColumns(t *testing.T) {
	left := newScan(t, "l",
		series.New("id", []int64{1, 2}),
		series.New("x", []int64{10, 20}),
		series.New("note", []string{"n1", "n2"}),
	)
	right := newScan(t, "r",
		series.New("id", []int64{1, 2}),
		series.New("x", []int64{30, 40}),
		series.New("other", []string{"o1", "o2"}),
	)
	j, err := logical.NewJoin(left, right, logical.JoinOptions{
		How: logical.JoinInner, LeftOn: []string{"id"}, RightOn: []string{"id"},
	})
	require.NoError(t, err)
	p, err := logical.NewProject(j, []expr.Expr{expr.Col("x_right")})
	require.NoError(t, err)

	out, err := (ProjectionPushdown{}).Apply(p)
	require.NoError(t, err)
	// The left x column survives the narrowing, so the right x column
	// keeps its suffix and the projection still resolves.
	explain := logical.Explain(out)
	assert.Contains(t, explain, "Scan l project=[id x]")
	assert.Contains(t, explain, "Scan r project=[id x]")
	assert.Equal(t, []string{"x_right"}, out.Schema().Names())
}

func TestSlicePushdown(t *testing.T) {
	scan := ordersScan(t)

	t.Run("merges stacked slices", func(t *testing.T) {
		inner, err := logical.NewSlice(scan, 1, 10)
		require.NoError(t, err)
		outer, err := logical.NewSlice(inner, 2, 3)
		require.NoError(t, err)
		out, err := (SlicePushdown{}).Apply(outer)
		require.NoError(t, err)
		assert.Equal(t, "Slice offset=3 length=3\n  Scan orders\n", logical.Explain(out))
	})

	t.Run("sinks below row-local projections", func(t *testing.T) {
		p, err := logical.NewProject(scan, []expr.Expr{expr.Col("amount").Mul(expr.Lit(2.0)).As("d")})
		require.NoError(t, err)
		s, err := logical.NewSlice(p, 0, 2)
		require.NoError(t, err)
		out, err := (SlicePushdown{}).Apply(s)
		require.NoError(t, err)
		assert.Equal(t,
			"Project [(col(amount) * lit(2)).alias(d)]\n"+
				"  Slice offset=0 length=2\n"+
				"    Scan orders\n",
			logical.Explain(out))
	})

	t.Run("stops at aggregating projections", func(t *testing.T) {
		p, err := logical.NewProject(scan, []expr.Expr{expr.Col("amount").Sum()})
		require.NoError(t, err)
		s, err := logical.NewSlice(p, 0, 1)
		require.NoError(t, err)
		out, err := (SlicePushdown{}).Apply(s)
		require.NoError(t, err)
		assert.Equal(t,
			"Slice offset=0 length=1\n"+
				"  Project [sum(col(amount))]\n"+
				"    Scan orders\n",
			logical.Explain(out))
	})
}

func TestDedupConjuncts(t *testing.T) {
	scan := ordersScan(t)
	pred := expr.Col("amount").Gt(expr.Lit(5.0))
	f, err := logical.NewFilter(scan, pred.And(expr.Col("id").Gt(expr.Lit(1))).And(pred))
	require.NoError(t, err)

	out, err := (DedupConjuncts{}).Apply(f)
	require.NoError(t, err)
	assert.Equal(t,
		"Filter ((col(amount) > lit(5)) && (col(id) > lit(1)))\n  Scan orders\n",
		logical.Explain(out))
}

func TestOptimizerIsIdempotent(t *testing.T) {
	scan := ordersScan(t)
	p, err := logical.NewProject(scan, []expr.Expr{
		expr.Col("id"),
		expr.Col("amount").Mul(expr.Lit(1.0).Add(expr.Lit(1.0))).As("double"),
	})
	require.NoError(t, err)
	f, err := logical.NewFilter(p, expr.Col("id").Gt(expr.Lit(1)))
	require.NoError(t, err)
	sl, err := logical.NewSlice(f, 0, 10)
	require.NoError(t, err)

	cfg := config.Default()
	opt := New(&cfg)
	once, err := opt.Optimize(sl)
	require.NoError(t, err)
	twice, err := opt.Optimize(once)
	require.NoError(t, err)
	assert.Equal(t, logical.Explain(once), logical.Explain(twice))
}

func TestOptimizerRespectsConfigToggles(t *testing.T) {
	cfg := config.Default()
	cfg.PredicatePushdown = false
	cfg.SlicePushdown = false
	opt := New(&cfg)
	assert.Equal(t, []string{"constant_folding", "projection_pushdown", "dedup_conjuncts"}, opt.Rules())
}
