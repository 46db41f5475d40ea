package optimizer

import (
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
)

// SlicePushdown merges stacked slices and moves a slice below
// row-local projections, so fewer rows are materialized by the
// expressions above it. Slices never cross filters, sorts, joins, or
// aggregations; those change which rows exist.
type SlicePushdown struct{}

func (SlicePushdown) Name() string { return "slice_pushdown" }

func (SlicePushdown) Apply(n logical.Node) (logical.Node, error) {
	return transform(n, func(n logical.Node) (logical.Node, error) {
		s, ok := n.(*logical.Slice)
		if !ok {
			return n, nil
		}

		// Sink the slice as far as it goes, collecting the projections
		// it passes so they can be rebuilt on top afterwards.
		var passed []*logical.Project
		var err error
	sink:
		for {
			switch input := s.Input.(type) {
			case *logical.Slice:
				offset, length := composeSlices(input.Offset, input.Length, s.Offset, s.Length)
				if s, err = logical.NewSlice(input.Input, offset, length); err != nil {
					return nil, err
				}
			case *logical.Project:
				if !rowLocal(input.Exprs) {
					break sink
				}
				passed = append(passed, input)
				if s, err = logical.NewSlice(input.Input, s.Offset, s.Length); err != nil {
					return nil, err
				}
			default:
				break sink
			}
		}

		out := logical.Node(s)
		for i := len(passed) - 1; i >= 0; i-- {
			if out, err = logical.NewProject(out, passed[i].Exprs); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
}

// composeSlices computes the slice equivalent to applying (o2, l2) to
// the output of (o1, l1). A negative length means to-the-end.
func composeSlices(o1, l1, o2, l2 int) (int, int) {
	offset := o1 + o2
	switch {
	case l1 < 0:
		return offset, l2
	case l2 < 0:
		if rest := l1 - o2; rest > 0 {
			return offset, rest
		}
		return offset, 0
	default:
		rest := l1 - o2
		if rest < 0 {
			rest = 0
		}
		if l2 < rest {
			rest = l2
		}
		return offset, rest
	}
}

// rowLocal reports whether every expression maps each input row to one
// output row independently, so slicing before or after is equivalent.
func rowLocal(exprs []expr.Expr) bool {
	for _, e := range exprs {
		local := true
		var walk func(expr.Expr)
		walk = func(n expr.Expr) {
			switch n.Kind() {
			case expr.KindAggregation, expr.KindWindow, expr.KindSortBy:
				local = false
				return
			}
			for _, c := range n.Children() {
				walk(c)
			}
		}
		walk(e)
		if !local {
			return false
		}
	}
	return true
}
