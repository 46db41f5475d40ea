package optimizer

import (
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
)

// PredicatePushdown moves filter conjuncts toward the scans they read
// from. Filters dissolve into conjunct sets on the way down; conjuncts
// that cannot descend past a node are re-wrapped as a Filter above it.
// At a scan the surviving conjuncts become the source's predicate hint,
// with the Filter kept in place because sources may ignore hints.
type PredicatePushdown struct{}

func (PredicatePushdown) Name() string { return "predicate_pushdown" }

func (PredicatePushdown) Apply(n logical.Node) (logical.Node, error) {
	return pushPredicates(n, nil)
}

func pushPredicates(n logical.Node, preds []expr.Expr) (logical.Node, error) {
	switch node := n.(type) {
	case *logical.Filter:
		return pushPredicates(node.Input, append(append([]expr.Expr{}, preds...), expr.SplitConjunction(node.Predicate)...))

	case *logical.Scan:
		if len(preds) == 0 {
			return node, nil
		}
		combined := expr.Conjoin(preds)
		return logical.NewFilter(node.WithPredicate(combined), combined)

	case *logical.Sort:
		// Filtering commutes with ordering.
		input, err := pushPredicates(node.Input, preds)
		if err != nil {
			return nil, err
		}
		return logical.NewSort(input, node.Keys)

	case *logical.Union:
		inputs := make([]logical.Node, len(node.Inputs()))
		for i, in := range node.Inputs() {
			out, err := pushPredicates(in, preds)
			if err != nil {
				return nil, err
			}
			inputs[i] = out
		}
		return logical.NewUnion(inputs...)

	case *logical.Project:
		return pushThroughProject(node, preds)

	case *logical.GroupBy:
		return pushThroughGroupBy(node, preds)

	case *logical.Join:
		return pushThroughJoin(node, preds)

	default:
		// Slice and Distinct change which rows survive, so nothing
		// descends past them.
		input, err := descend(n)
		if err != nil {
			return nil, err
		}
		return wrap(input, preds)
	}
}

// descend restarts pushdown below a barrier node.
func descend(n logical.Node) (logical.Node, error) {
	inputs := n.Inputs()
	rebuilt := make([]logical.Node, len(inputs))
	for i, in := range inputs {
		out, err := pushPredicates(in, nil)
		if err != nil {
			return nil, err
		}
		rebuilt[i] = out
	}
	return withInputs(n, rebuilt)
}

// wrap re-applies conjuncts that could not descend.
func wrap(n logical.Node, preds []expr.Expr) (logical.Node, error) {
	if len(preds) == 0 {
		return n, nil
	}
	return logical.NewFilter(n, expr.Conjoin(preds))
}

// pushThroughProject pushes conjuncts whose columns the projection
// passes through as bare (possibly renamed) column references,
// rewriting the conjunct to the input-side names. Conjuncts that read a
// computed column stay above. A projection with an aggregation, window
// or sort-by expression reads every input row, so nothing descends
// past it at all.
func pushThroughProject(p *logical.Project, preds []expr.Expr) (logical.Node, error) {
	if !rowLocal(p.Exprs) {
		input, err := pushPredicates(p.Input, nil)
		if err != nil {
			return nil, err
		}
		out, err := logical.NewProject(input, p.Exprs)
		if err != nil {
			return nil, err
		}
		return wrap(out, preds)
	}

	passthrough := make(map[string]string, len(p.Exprs))
	for _, e := range p.Exprs {
		if src, ok := bareColumn(e); ok {
			passthrough[expr.OutputName(e)] = src
		}
	}

	var below, above []expr.Expr
	for _, pred := range preds {
		if renamed, ok := rewriteColumns(pred, passthrough); ok {
			below = append(below, renamed)
		} else {
			above = append(above, pred)
		}
	}

	input, err := pushPredicates(p.Input, below)
	if err != nil {
		return nil, err
	}
	out, err := logical.NewProject(input, p.Exprs)
	if err != nil {
		return nil, err
	}
	return wrap(out, above)
}

// pushThroughGroupBy pushes conjuncts that only read bare group keys:
// filtering groups by key equals filtering input rows by key.
func pushThroughGroupBy(g *logical.GroupBy, preds []expr.Expr) (logical.Node, error) {
	keyCols := make(map[string]string, len(g.Keys))
	for _, k := range g.Keys {
		if src, ok := bareColumn(k); ok {
			keyCols[expr.OutputName(k)] = src
		}
	}

	var below, above []expr.Expr
	for _, pred := range preds {
		if renamed, ok := rewriteColumns(pred, keyCols); ok {
			below = append(below, renamed)
		} else {
			above = append(above, pred)
		}
	}

	input, err := pushPredicates(g.Input, below)
	if err != nil {
		return nil, err
	}
	out, err := logical.NewGroupBy(input, g.Keys, g.Aggs)
	if err != nil {
		return nil, err
	}
	return wrap(out, above)
}

// pushThroughJoin routes side-local conjuncts to their side. Pushing
// into the null-extended side of an outer join would filter rows before
// they gain their nulls, so only the preserved side receives conjuncts.
func pushThroughJoin(j *logical.Join, preds []expr.Expr) (logical.Node, error) {
	leftOK := j.Opts.How != logical.JoinFull
	rightOK := j.Opts.How == logical.JoinInner || j.Opts.How == logical.JoinCross

	leftNames := make(map[string]string)
	for _, name := range j.Left.Schema().Names() {
		leftNames[name] = name
	}
	rightNames := make(map[string]string)
	src, dst := j.RightColumns()
	for i := range src {
		rightNames[dst[i]] = src[i]
	}

	var toLeft, toRight, above []expr.Expr
	for _, pred := range preds {
		if leftOK {
			if renamed, ok := rewriteColumns(pred, leftNames); ok {
				toLeft = append(toLeft, renamed)
				continue
			}
		}
		if rightOK {
			if renamed, ok := rewriteColumns(pred, rightNames); ok {
				toRight = append(toRight, renamed)
				continue
			}
		}
		above = append(above, pred)
	}

	left, err := pushPredicates(j.Left, toLeft)
	if err != nil {
		return nil, err
	}
	right, err := pushPredicates(j.Right, toRight)
	if err != nil {
		return nil, err
	}
	out, err := logical.NewJoin(left, right, j.Opts)
	if err != nil {
		return nil, err
	}
	return wrap(out, above)
}

// bareColumn unwraps aliases down to a plain column reference.
func bareColumn(e expr.Expr) (string, bool) {
	for {
		switch ex := e.(type) {
		case *expr.ColumnExpr:
			return ex.Name(), true
		case *expr.AliasExpr:
			e = ex.Operand()
		default:
			return "", false
		}
	}
}

// rewriteColumns maps every column reference in the expression through
// the rename table. It fails when any referenced column is missing from
// the table.
func rewriteColumns(e expr.Expr, renames map[string]string) (expr.Expr, bool) {
	for _, dep := range expr.ColumnDeps(e) {
		if _, ok := renames[dep]; !ok {
			return nil, false
		}
	}
	out := expr.Rewrite(e, func(n expr.Expr) expr.Expr {
		if c, ok := n.(*expr.ColumnExpr); ok {
			return expr.Col(renames[c.Name()])
		}
		return n
	})
	return out, true
}
