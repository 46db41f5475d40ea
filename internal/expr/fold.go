package expr

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/series"
)

// FoldConstants collapses operator nodes whose operands are all
// non-null literals into a single literal. Null literals are left
// alone: a folded null would lose the sibling type it adopts, and
// boolean identities like false-and-x are unsound under strict null
// propagation.
func FoldConstants(e Expr) Expr {
	return Rewrite(e, func(n Expr) Expr {
		switch ex := n.(type) {
		case *BinaryExpr:
			return foldBinary(ex)
		case *UnaryExpr:
			return foldUnary(ex)
		default:
			return n
		}
	})
}

func literalValue(e Expr) (any, bool) {
	l, ok := e.(*LiteralExpr)
	if !ok || l.value == nil {
		return nil, false
	}
	return l.value, true
}

func foldBinary(e *BinaryExpr) Expr {
	lv, lok := literalValue(e.left)
	rv, rok := literalValue(e.right)
	if !lok || !rok {
		return e
	}
	lt, err := LiteralType(lv)
	if err != nil {
		return e
	}
	rt, err := LiteralType(rv)
	if err != nil {
		return e
	}
	common, err := Promote(e.op, lt, rt)
	if err != nil {
		// Leave the type error for plan build to report.
		return e
	}

	switch {
	case e.op.IsLogical():
		x, y := lv.(bool), rv.(bool)
		if e.op == OpAnd {
			return Lit(x && y)
		}
		return Lit(x || y)
	case e.op.IsComparison():
		lv = convertBoxed(lv, common.ID())
		rv = convertBoxed(rv, common.ID())
		return Lit(compareResult(e.op, series.CompareBoxed(lv, rv)))
	default:
		lv = convertBoxed(lv, common.ID())
		rv = convertBoxed(rv, common.ID())
		return Lit(arithValue(e.op, common.ID(), lv, rv))
	}
}

func foldUnary(e *UnaryExpr) Expr {
	v, ok := literalValue(e.operand)
	if !ok {
		return e
	}
	switch e.op {
	case UnaryNeg:
		switch x := v.(type) {
		case int32:
			return Lit(-x)
		case int64:
			return Lit(-x)
		case float32:
			return Lit(-x)
		case float64:
			return Lit(-x)
		default:
			return e
		}
	case UnaryNot:
		if b, isBool := v.(bool); isBool {
			return Lit(!b)
		}
		return e
	case UnaryIsNull:
		return Lit(false)
	case UnaryIsNotNull:
		return Lit(true)
	default:
		return e
	}
}

// convertBoxed widens a boxed numeric to the promoted type.
func convertBoxed(v any, id arrow.Type) any {
	switch id {
	case arrow.INT32:
		return v.(int32)
	case arrow.INT64:
		if x, ok := v.(int32); ok {
			return int64(x)
		}
		return v.(int64)
	case arrow.FLOAT32:
		switch x := v.(type) {
		case int32:
			return float32(x)
		case int64:
			return float32(x)
		default:
			return v.(float32)
		}
	case arrow.FLOAT64:
		return toFloat(v)
	default:
		return v
	}
}
