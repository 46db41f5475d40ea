package quiver

import (
	"context"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/optimizer"
	"github.com/quiverdata/quiver/internal/physical"
)

// LazyFrame is a deferred query. Operations only build the logical
// plan; nothing runs until Collect. A plan-construction error sticks
// to the frame and surfaces on Collect, so chains stay fluent.
type LazyFrame struct {
	node logical.Node
	err  error
}

// LazyGroupBy is a group-by waiting for its aggregations.
type LazyGroupBy struct {
	lf   *LazyFrame
	keys []Expr
}

func (lf *LazyFrame) next(node logical.Node, err error) *LazyFrame {
	if err != nil {
		return &LazyFrame{err: err}
	}
	return &LazyFrame{node: node}
}

// Filter keeps rows where the predicate is true. Null predicate
// results drop the row.
func (lf *LazyFrame) Filter(predicate Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.next(logical.NewFilter(lf.node, predicate))
}

// Select projects to the given expressions, in order.
func (lf *LazyFrame) Select(exprs ...Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.next(logical.NewProject(lf.node, exprs))
}

// SelectCols projects to named columns.
func (lf *LazyFrame) SelectCols(names ...string) *LazyFrame {
	exprs := make([]Expr, len(names))
	for i, n := range names {
		exprs[i] = Col(n)
	}
	return lf.Select(exprs...)
}

// WithColumn adds a computed column, replacing any existing column of
// the same name in place.
func (lf *LazyFrame) WithColumn(name string, e Expr) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	var exprs []Expr
	replaced := false
	for _, n := range lf.node.Schema().Names() {
		if n == name {
			exprs = append(exprs, e.As(name))
			replaced = true
		} else {
			exprs = append(exprs, Col(n))
		}
	}
	if !replaced {
		exprs = append(exprs, e.As(name))
	}
	return lf.next(logical.NewProject(lf.node, exprs))
}

// GroupBy starts a grouped aggregation over the key expressions.
func (lf *LazyFrame) GroupBy(keys ...Expr) *LazyGroupBy {
	return &LazyGroupBy{lf: lf, keys: keys}
}

// Agg completes a group-by with aggregation expressions. Output rows
// follow first appearance of each key tuple.
func (g *LazyGroupBy) Agg(aggs ...Expr) *LazyFrame {
	if g.lf.err != nil {
		return g.lf
	}
	return g.lf.next(logical.NewGroupBy(g.lf.node, g.keys, aggs))
}

// Sort orders rows by the given keys. The sort is stable; nulls sort
// last unless a key says otherwise.
func (lf *LazyFrame) Sort(keys ...SortField) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.next(logical.NewSort(lf.node, keys))
}

// SortBy orders ascending by named columns.
func (lf *LazyFrame) SortBy(names ...string) *LazyFrame {
	keys := make([]SortField, len(names))
	for i, n := range names {
		keys[i] = SortField{Expr: Col(n)}
	}
	return lf.Sort(keys...)
}

// Join combines this frame with another.
func (lf *LazyFrame) Join(other *LazyFrame, opts JoinOptions) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	if other.err != nil {
		return other
	}
	return lf.next(logical.NewJoin(lf.node, other.node, opts))
}

// JoinAsof matches each row with the nearest key on the other side.
func (lf *LazyFrame) JoinAsof(other *LazyFrame, leftOn, rightOn string, strategy AsofStrategy) *LazyFrame {
	return lf.Join(other, JoinOptions{
		How:      JoinAsof,
		LeftOn:   []string{leftOn},
		RightOn:  []string{rightOn},
		Strategy: strategy,
	})
}

// Limit keeps the first n rows.
func (lf *LazyFrame) Limit(n int) *LazyFrame {
	return lf.Slice(0, n)
}

// Slice keeps length rows starting at offset. A negative length means
// everything from offset on.
func (lf *LazyFrame) Slice(offset, length int) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.next(logical.NewSlice(lf.node, offset, length))
}

// Distinct drops duplicate rows, keeping first occurrences. With a
// subset, only those columns decide uniqueness.
func (lf *LazyFrame) Distinct(subset ...string) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	return lf.next(logical.NewDistinct(lf.node, subset))
}

// Union concatenates frames with identical schemas.
func (lf *LazyFrame) Union(others ...*LazyFrame) *LazyFrame {
	if lf.err != nil {
		return lf
	}
	nodes := []logical.Node{lf.node}
	for _, o := range others {
		if o.err != nil {
			return o
		}
		nodes = append(nodes, o.node)
	}
	return lf.next(logical.NewUnion(nodes...))
}

// Collect optimizes and executes the plan.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	return lf.CollectContext(context.Background())
}

// CollectContext optimizes and executes the plan under a context.
func (lf *LazyFrame) CollectContext(ctx context.Context) (*DataFrame, error) {
	if lf.err != nil {
		return nil, lf.err
	}
	cfg := config.Global()
	plan, err := optimizer.New(&cfg).Optimize(lf.node)
	if err != nil {
		return nil, err
	}
	eng := physical.NewEngine(&cfg)
	defer eng.Close()
	return eng.Execute(ctx, plan)
}

// Explain renders the logical plan before optimization.
func (lf *LazyFrame) Explain() string {
	if lf.err != nil {
		return "error: " + lf.err.Error()
	}
	return logical.Explain(lf.node)
}

// ExplainOptimized renders the plan after the optimizer runs.
func (lf *LazyFrame) ExplainOptimized() (string, error) {
	if lf.err != nil {
		return "", lf.err
	}
	cfg := config.Global()
	plan, err := optimizer.New(&cfg).Optimize(lf.node)
	if err != nil {
		return "", err
	}
	return logical.Explain(plan), nil
}

// Schema returns the output column names in order.
func (lf *LazyFrame) Schema() ([]string, error) {
	if lf.err != nil {
		return nil, lf.err
	}
	return lf.node.Schema().Names(), nil
}

// Window builds a windowed expression: the inner expression evaluated
// per partition and broadcast or scattered back to the rows.
func Window(inner Expr, partitionBy ...Expr) Expr {
	return expr.NewWindow(inner, partitionBy, nil)
}
