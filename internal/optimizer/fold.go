package optimizer

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
)

// ConstantFolding collapses literal-only subexpressions, removes casts
// to the operand's own type, and drops projections that reproduce their
// input unchanged.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "constant_folding" }

func (ConstantFolding) Apply(n logical.Node) (logical.Node, error) {
	return transform(n, func(n logical.Node) (logical.Node, error) {
		switch node := n.(type) {
		case *logical.Filter:
			types := node.Input.Schema().Types()
			p := foldExpr(node.Predicate, types)
			if expr.Equal(p, node.Predicate) {
				return n, nil
			}
			return logical.NewFilter(node.Input, p)

		case *logical.Project:
			types := node.Input.Schema().Types()
			exprs, changed := foldExprs(node.Exprs, types)
			if changed {
				var err error
				if n, err = logical.NewProject(node.Input, exprs); err != nil {
					return nil, err
				}
				node = n.(*logical.Project)
			}
			if identityProject(node) {
				return node.Input, nil
			}
			return n, nil

		case *logical.GroupBy:
			types := node.Input.Schema().Types()
			keys, kc := foldExprs(node.Keys, types)
			aggs, ac := foldExprs(node.Aggs, types)
			if !kc && !ac {
				return n, nil
			}
			return logical.NewGroupBy(node.Input, keys, aggs)

		case *logical.Sort:
			types := node.Input.Schema().Types()
			keys := make([]expr.SortField, len(node.Keys))
			changed := false
			for i, k := range node.Keys {
				keys[i] = expr.SortField{Expr: foldExpr(k.Expr, types), Descending: k.Descending, NullsFirst: k.NullsFirst}
				changed = changed || !expr.Equal(keys[i].Expr, k.Expr)
			}
			if !changed {
				return n, nil
			}
			return logical.NewSort(node.Input, keys)

		default:
			return n, nil
		}
	})
}

func foldExpr(e expr.Expr, types map[string]arrow.DataType) expr.Expr {
	return dropNoopCasts(expr.FoldConstants(e), types)
}

func foldExprs(exprs []expr.Expr, types map[string]arrow.DataType) ([]expr.Expr, bool) {
	out := make([]expr.Expr, len(exprs))
	changed := false
	for i, e := range exprs {
		out[i] = foldExpr(e, types)
		changed = changed || !expr.Equal(out[i], e)
	}
	return out, changed
}

// dropNoopCasts removes casts whose operand already has the target
// type. Unresolvable operands are left for plan build to report.
func dropNoopCasts(e expr.Expr, types map[string]arrow.DataType) expr.Expr {
	return expr.Rewrite(e, func(n expr.Expr) expr.Expr {
		c, ok := n.(*expr.CastExpr)
		if !ok {
			return n
		}
		dt, err := expr.Resolve(c.Operand(), types)
		if err != nil {
			return n
		}
		if arrow.TypeEqual(dt, c.To()) {
			return c.Operand()
		}
		return n
	})
}

// identityProject reports whether a projection is exactly its input's
// columns in input order.
func identityProject(p *logical.Project) bool {
	in := p.Input.Schema()
	if len(p.Exprs) != in.Len() {
		return false
	}
	for i, e := range p.Exprs {
		c, ok := e.(*expr.ColumnExpr)
		if !ok || c.Name() != in.Fields()[i].Name {
			return false
		}
	}
	return true
}

// DedupConjuncts removes structurally equal conjuncts from filter
// predicates, so a predicate repeated through builder composition is
// evaluated once.
type DedupConjuncts struct{}

func (DedupConjuncts) Name() string { return "dedup_conjuncts" }

func (DedupConjuncts) Apply(n logical.Node) (logical.Node, error) {
	return transform(n, func(n logical.Node) (logical.Node, error) {
		f, ok := n.(*logical.Filter)
		if !ok {
			return n, nil
		}
		conjuncts := expr.SplitConjunction(f.Predicate)
		var kept []expr.Expr
		for _, c := range conjuncts {
			dup := false
			for _, k := range kept {
				if expr.Equal(c, k) {
					dup = true
					break
				}
			}
			if !dup {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(conjuncts) {
			return n, nil
		}
		return logical.NewFilter(f.Input, expr.Conjoin(kept))
	})
}
