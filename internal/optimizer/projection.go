package optimizer

import (
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
)

// ProjectionPushdown narrows scans to the columns the plan actually
// reads. Required columns flow top-down: the root requires its whole
// schema, every node adds the columns its own expressions read, and a
// scan at the bottom drops everything never requested. Relative column
// order is preserved, so the plan's output schema does not change.
type ProjectionPushdown struct{}

func (ProjectionPushdown) Name() string { return "projection_pushdown" }

func (ProjectionPushdown) Apply(n logical.Node) (logical.Node, error) {
	return pushProjection(n, allOf(n.Schema()))
}

func allOf(s *logical.Schema) map[string]bool {
	req := make(map[string]bool, s.Len())
	for _, name := range s.Names() {
		req[name] = true
	}
	return req
}

func addDeps(req map[string]bool, exprs ...expr.Expr) {
	for _, e := range exprs {
		for _, dep := range expr.ColumnDeps(e) {
			req[dep] = true
		}
	}
}

func pushProjection(n logical.Node, required map[string]bool) (logical.Node, error) {
	switch node := n.(type) {
	case *logical.Scan:
		full := node.FullNames()
		var needed []string
		for _, name := range full {
			if required[name] {
				needed = append(needed, name)
			}
		}
		if len(needed) == 0 || len(needed) == len(full) {
			return node, nil
		}
		return node.WithProjection(needed)

	case *logical.Filter:
		req := copyReq(required)
		addDeps(req, node.Predicate)
		input, err := pushProjection(node.Input, req)
		if err != nil {
			return nil, err
		}
		return logical.NewFilter(input, node.Predicate)

	case *logical.Project:
		exprs := node.Exprs
		if len(required) < node.Schema().Len() {
			var kept []expr.Expr
			for _, e := range exprs {
				if required[expr.OutputName(e)] {
					kept = append(kept, e)
				}
			}
			if len(kept) > 0 {
				exprs = kept
			}
		}
		req := make(map[string]bool)
		addDeps(req, exprs...)
		input, err := pushProjection(node.Input, req)
		if err != nil {
			return nil, err
		}
		return logical.NewProject(input, exprs)

	case *logical.GroupBy:
		req := make(map[string]bool)
		addDeps(req, node.Keys...)
		addDeps(req, node.Aggs...)
		input, err := pushProjection(node.Input, req)
		if err != nil {
			return nil, err
		}
		return logical.NewGroupBy(input, node.Keys, node.Aggs)

	case *logical.Join:
		leftReq := make(map[string]bool)
		for _, name := range node.Left.Schema().Names() {
			if required[name] {
				leftReq[name] = true
			}
		}
		for _, k := range node.Opts.LeftOn {
			leftReq[k] = true
		}
		rightReq := make(map[string]bool)
		src, dst := node.RightColumns()
		for i := range src {
			if required[dst[i]] {
				rightReq[src[i]] = true
				// A suffixed right column owes its name to the left
				// column it collides with; that column must survive
				// or the rebuilt join stops renaming.
				if dst[i] != src[i] {
					leftReq[src[i]] = true
				}
			}
		}
		for _, k := range node.Opts.RightOn {
			rightReq[k] = true
		}

		left, err := pushProjection(node.Left, leftReq)
		if err != nil {
			return nil, err
		}
		right, err := pushProjection(node.Right, rightReq)
		if err != nil {
			return nil, err
		}
		return logical.NewJoin(left, right, node.Opts)

	case *logical.Sort:
		req := copyReq(required)
		for _, k := range node.Keys {
			addDeps(req, k.Expr)
		}
		input, err := pushProjection(node.Input, req)
		if err != nil {
			return nil, err
		}
		return logical.NewSort(input, node.Keys)

	case *logical.Slice:
		input, err := pushProjection(node.Input, required)
		if err != nil {
			return nil, err
		}
		return logical.NewSlice(input, node.Offset, node.Length)

	case *logical.Distinct:
		req := required
		if node.Subset == nil {
			// Whole-row distinct compares every input column.
			req = allOf(node.Input.Schema())
		} else {
			req = copyReq(required)
			for _, c := range node.Subset {
				req[c] = true
			}
		}
		input, err := pushProjection(node.Input, req)
		if err != nil {
			return nil, err
		}
		return logical.NewDistinct(input, node.Subset)

	case *logical.Union:
		inputs := make([]logical.Node, len(node.Inputs()))
		for i, in := range node.Inputs() {
			out, err := pushProjection(in, required)
			if err != nil {
				return nil, err
			}
			inputs[i] = out
		}
		return logical.NewUnion(inputs...)

	default:
		return n, nil
	}
}

func copyReq(req map[string]bool) map[string]bool {
	out := make(map[string]bool, len(req))
	for k, v := range req {
		out[k] = v
	}
	return out
}
