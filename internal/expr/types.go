package expr

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/qerrors"
)

// The numeric promotion ladder. Within arithmetic and comparison the
// wider operand wins:
//
//	int32 < int64 < float32 < float64
//
// Bool and string never promote to numeric. Integer division yields
// float64. Operand pairs not covered here have no promotion rule and
// fail with a schema error.
var numericRank = map[arrow.Type]int{
	arrow.INT32:   1,
	arrow.INT64:   2,
	arrow.FLOAT32: 3,
	arrow.FLOAT64: 4,
}

// Promote resolves the common type of two operands under an operator.
func Promote(op BinaryOp, left, right arrow.DataType) (arrow.DataType, error) {
	lr, lNum := numericRank[left.ID()]
	rr, rNum := numericRank[right.ID()]

	switch {
	case op.IsLogical():
		if left.ID() == arrow.BOOL && right.ID() == arrow.BOOL {
			return arrow.FixedWidthTypes.Boolean, nil
		}
	case op.IsComparison():
		if lNum && rNum {
			if lr >= rr {
				return left, nil
			}
			return right, nil
		}
		// Same-type comparisons for the remaining comparable types.
		if left.ID() == right.ID() {
			switch left.ID() {
			case arrow.STRING, arrow.BOOL, arrow.DATE32, arrow.TIMESTAMP, arrow.DICTIONARY:
				return left, nil
			}
		}
		// Categoricals compare against plain strings by materializing.
		if left.ID() == arrow.DICTIONARY && right.ID() == arrow.STRING ||
			left.ID() == arrow.STRING && right.ID() == arrow.DICTIONARY {
			return arrow.BinaryTypes.String, nil
		}
	default: // arithmetic
		if lNum && rNum {
			if op == OpDiv {
				return arrow.PrimitiveTypes.Float64, nil
			}
			if lr >= rr {
				return left, nil
			}
			return right, nil
		}
	}

	return nil, qerrors.TypeMismatch("Promote",
		fmt.Sprintf("no promotion rule for %s %s %s", left, op, right))
}

// LiteralType reports the logical type of a literal value.
func LiteralType(v any) (arrow.DataType, error) {
	switch v.(type) {
	case nil:
		// The null literal adopts its context's type; callers treat
		// Null as a wildcard.
		return arrow.Null, nil
	case bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case int32:
		return arrow.PrimitiveTypes.Int32, nil
	case int64:
		return arrow.PrimitiveTypes.Int64, nil
	case float32:
		return arrow.PrimitiveTypes.Float32, nil
	case float64:
		return arrow.PrimitiveTypes.Float64, nil
	case string:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, qerrors.Schema("Literal", fmt.Sprintf("unsupported literal type %T", v))
	}
}

// aggType resolves the output type of an aggregation over an input type.
func aggType(op AggOp, in arrow.DataType) (arrow.DataType, error) {
	switch op {
	case AggCount, AggNUnique:
		return arrow.PrimitiveTypes.Int64, nil
	case AggMean, AggVar, AggStd:
		if _, ok := numericRank[in.ID()]; !ok {
			return nil, qerrors.TypeMismatch("Aggregate",
				fmt.Sprintf("%s requires a numeric input, got %s", op, in))
		}
		return arrow.PrimitiveTypes.Float64, nil
	case AggSum:
		if _, ok := numericRank[in.ID()]; !ok {
			return nil, qerrors.TypeMismatch("Aggregate",
				fmt.Sprintf("sum requires a numeric input, got %s", in))
		}
		// Sums widen to avoid overflow on narrow inputs.
		switch in.ID() {
		case arrow.INT32, arrow.INT64:
			return arrow.PrimitiveTypes.Int64, nil
		default:
			return arrow.PrimitiveTypes.Float64, nil
		}
	case AggMin, AggMax, AggFirst, AggLast:
		return in, nil
	default:
		return nil, qerrors.Compile("Aggregate", fmt.Sprintf("unknown aggregation %d", op))
	}
}

// frameSchema maps a frame's columns to their logical types for Resolve.
func frameSchema(df *dataframe.DataFrame) map[string]arrow.DataType {
	schema := make(map[string]arrow.DataType, df.Width())
	for _, f := range df.Fields() {
		schema[f.Name] = f.Type
	}
	return schema
}

// Resolve computes the output type of an expression against a schema
// mapping, failing with a schema error on unknown columns or operand
// pairs with no promotion rule. This is the plan-build-time type check;
// the evaluator repeats it only where literal nulls defer typing.
func Resolve(e Expr, schema map[string]arrow.DataType) (arrow.DataType, error) {
	switch ex := e.(type) {
	case *ColumnExpr:
		dt, ok := schema[ex.name]
		if !ok {
			return nil, qerrors.ColumnNotFound("Resolve", ex.name)
		}
		return dt, nil

	case *LiteralExpr:
		return LiteralType(ex.value)

	case *BinaryExpr:
		left, err := Resolve(ex.left, schema)
		if err != nil {
			return nil, err
		}
		right, err := Resolve(ex.right, schema)
		if err != nil {
			return nil, err
		}
		// A null literal adopts the other side's type.
		if left.ID() == arrow.NULL {
			left = right
		}
		if right.ID() == arrow.NULL {
			right = left
		}
		if left.ID() == arrow.NULL {
			return nil, qerrors.TypeMismatch("Resolve", "cannot type null-only expression")
		}
		common, err := Promote(ex.op, left, right)
		if err != nil {
			return nil, err
		}
		if ex.op.IsComparison() {
			return arrow.FixedWidthTypes.Boolean, nil
		}
		return common, nil

	case *UnaryExpr:
		operand, err := Resolve(ex.operand, schema)
		if err != nil {
			return nil, err
		}
		switch ex.op {
		case UnaryNeg:
			if _, ok := numericRank[operand.ID()]; !ok {
				return nil, qerrors.TypeMismatch("Resolve",
					fmt.Sprintf("cannot negate %s", operand))
			}
			return operand, nil
		case UnaryNot:
			if operand.ID() != arrow.BOOL {
				return nil, qerrors.TypeMismatch("Resolve",
					fmt.Sprintf("cannot logically negate %s", operand))
			}
			return operand, nil
		case UnaryIsNull, UnaryIsNotNull:
			return arrow.FixedWidthTypes.Boolean, nil
		default:
			return nil, qerrors.Compile("Resolve", fmt.Sprintf("unknown unary op %d", ex.op))
		}

	case *FunctionExpr:
		return resolveFunction(ex, schema)

	case *AggExpr:
		in, err := Resolve(ex.operand, schema)
		if err != nil {
			return nil, err
		}
		return aggType(ex.op, in)

	case *WindowExpr:
		for _, p := range ex.partitionBy {
			if _, err := Resolve(p, schema); err != nil {
				return nil, err
			}
		}
		for _, f := range ex.orderBy {
			if _, err := Resolve(f.Expr, schema); err != nil {
				return nil, err
			}
		}
		return Resolve(ex.inner, schema)

	case *CastExpr:
		if _, err := Resolve(ex.operand, schema); err != nil {
			return nil, err
		}
		return ex.to, nil

	case *AliasExpr:
		return Resolve(ex.operand, schema)

	case *SortByExpr:
		for _, k := range ex.keys {
			if _, err := Resolve(k.Expr, schema); err != nil {
				return nil, err
			}
		}
		return Resolve(ex.operand, schema)

	default:
		return nil, qerrors.Compile("Resolve", fmt.Sprintf("unknown expression kind %d", e.Kind()))
	}
}

func resolveFunction(f *FunctionExpr, schema map[string]arrow.DataType) (arrow.DataType, error) {
	if len(f.args) != 1 {
		return nil, qerrors.Schema("Resolve",
			fmt.Sprintf("%s takes exactly one argument, got %d", f.name, len(f.args)))
	}
	in, err := Resolve(f.args[0], schema)
	if err != nil {
		return nil, err
	}

	switch f.name {
	case FnUpper, FnLower, FnTrim:
		if in.ID() != arrow.STRING && in.ID() != arrow.DICTIONARY {
			return nil, qerrors.TypeMismatch("Resolve",
				fmt.Sprintf("%s requires a string input, got %s", f.name, in))
		}
		return arrow.BinaryTypes.String, nil
	case FnLength:
		if in.ID() != arrow.STRING && in.ID() != arrow.DICTIONARY {
			return nil, qerrors.TypeMismatch("Resolve",
				fmt.Sprintf("length requires a string input, got %s", in))
		}
		return arrow.PrimitiveTypes.Int64, nil
	case FnAbs:
		if _, ok := numericRank[in.ID()]; !ok {
			return nil, qerrors.TypeMismatch("Resolve",
				fmt.Sprintf("abs requires a numeric input, got %s", in))
		}
		return in, nil
	case FnYear, FnMonth, FnDay:
		if in.ID() != arrow.TIMESTAMP && in.ID() != arrow.DATE32 {
			return nil, qerrors.TypeMismatch("Resolve",
				fmt.Sprintf("%s requires a temporal input, got %s", f.name, in))
		}
		return arrow.PrimitiveTypes.Int64, nil
	default:
		return nil, qerrors.Compile("Resolve", fmt.Sprintf("unknown function %s", f.name))
	}
}
