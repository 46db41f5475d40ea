package expr

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// Evaluate computes an expression against a frame and returns the
// result column, named by OutputName. Binary arithmetic and comparisons
// propagate nulls row-wise: the result is null wherever either operand
// is null.
func Evaluate(e Expr, df *dataframe.DataFrame) (*series.Series, error) {
	s, err := eval(e, df)
	if err != nil {
		return nil, err
	}
	if name := OutputName(e); s.Name() != name {
		s = s.Rename(name)
	}
	return s, nil
}

// Mask evaluates a boolean predicate into a row mask. Rows where the
// predicate is null are dropped, so they map to false.
func Mask(e Expr, df *dataframe.DataFrame) ([]bool, error) {
	s, err := eval(e, df)
	if err != nil {
		return nil, err
	}
	if s.DataType().ID() != arrow.BOOL {
		return nil, qerrors.TypeMismatch("Filter",
			fmt.Sprintf("predicate must be boolean, got %s", s.DataType()))
	}
	mask := make([]bool, s.Len())
	for i := range mask {
		v, ok := s.Get(i)
		mask[i] = ok && v.(bool)
	}
	return mask, nil
}

func eval(e Expr, df *dataframe.DataFrame) (*series.Series, error) {
	switch ex := e.(type) {
	case *ColumnExpr:
		s, ok := df.Column(ex.name)
		if !ok {
			return nil, qerrors.ColumnNotFound("Evaluate", ex.name)
		}
		return s, nil
	case *LiteralExpr:
		return evalLiteral(ex, df.Len())
	case *BinaryExpr:
		return evalBinary(ex, df)
	case *UnaryExpr:
		return evalUnary(ex, df)
	case *FunctionExpr:
		return evalFunction(ex, df)
	case *AggExpr:
		return evalAgg(ex, df)
	case *WindowExpr:
		return evalWindow(ex, df)
	case *CastExpr:
		return evalCast(ex, df)
	case *AliasExpr:
		return eval(ex.operand, df)
	case *SortByExpr:
		return evalSortBy(ex, df)
	default:
		return nil, qerrors.Compile("Evaluate", fmt.Sprintf("unknown expression kind %d", e.Kind()))
	}
}

func evalLiteral(l *LiteralExpr, n int) (*series.Series, error) {
	if l.value == nil {
		return nil, qerrors.TypeMismatch("Evaluate", "null literal requires a typed context")
	}
	dtype, err := LiteralType(l.value)
	if err != nil {
		return nil, err
	}
	return constantSeries(l.String(), dtype, l.value, n)
}

func constantSeries(name string, dtype arrow.DataType, v any, n int) (*series.Series, error) {
	return series.Repeat(name, dtype, v, n)
}

func isNullLit(e Expr) bool {
	l, ok := e.(*LiteralExpr)
	return ok && l.value == nil
}

// literalSeries materializes a literal as an n-row constant. A null
// literal takes its type from the sibling operand.
func literalSeries(l *LiteralExpr, sibling *series.Series, n int) (*series.Series, error) {
	if l.value == nil {
		if sibling == nil {
			return nil, qerrors.TypeMismatch("Evaluate", "null literal requires a typed context")
		}
		return constantSeries("null", sibling.DataType(), nil, n)
	}
	dtype, err := LiteralType(l.value)
	if err != nil {
		return nil, err
	}
	return constantSeries(l.String(), dtype, l.value, n)
}

func evalBinary(ex *BinaryExpr, df *dataframe.DataFrame) (*series.Series, error) {
	lLit, lIsLit := ex.left.(*LiteralExpr)
	rLit, rIsLit := ex.right.(*LiteralExpr)
	if lIsLit && rIsLit && lLit.value == nil && rLit.value == nil {
		return nil, qerrors.TypeMismatch("Evaluate", "cannot type null-only expression")
	}

	// Literal operands adopt the other side's length (and, when null,
	// its type), so an aggregation scalar plus a literal stays scalar.
	var left, right *series.Series
	var err error
	switch {
	case !lIsLit && !rIsLit:
		if left, err = eval(ex.left, df); err != nil {
			return nil, err
		}
		if right, err = eval(ex.right, df); err != nil {
			return nil, err
		}
		// A length-1 side is an aggregation scalar; broadcast it.
		if left.Len() != right.Len() {
			switch {
			case left.Len() == 1:
				v, _ := left.Get(0)
				left, err = series.Repeat(left.Name(), left.DataType(), v, right.Len())
			case right.Len() == 1:
				v, _ := right.Get(0)
				right, err = series.Repeat(right.Name(), right.DataType(), v, left.Len())
			default:
				err = qerrors.Computation("Evaluate",
					fmt.Sprintf("operand lengths differ: %d vs %d", left.Len(), right.Len()))
			}
			if err != nil {
				return nil, err
			}
		}
	case !lIsLit:
		if left, err = eval(ex.left, df); err != nil {
			return nil, err
		}
		if right, err = literalSeries(rLit, left, left.Len()); err != nil {
			return nil, err
		}
	case !rIsLit:
		if right, err = eval(ex.right, df); err != nil {
			return nil, err
		}
		if left, err = literalSeries(lLit, right, right.Len()); err != nil {
			return nil, err
		}
	default:
		n := df.Len()
		if lLit.value != nil {
			if left, err = literalSeries(lLit, nil, n); err != nil {
				return nil, err
			}
			if right, err = literalSeries(rLit, left, n); err != nil {
				return nil, err
			}
		} else {
			if right, err = literalSeries(rLit, nil, n); err != nil {
				return nil, err
			}
			if left, err = literalSeries(lLit, right, n); err != nil {
				return nil, err
			}
		}
	}

	common, err := Promote(ex.op, left.DataType(), right.DataType())
	if err != nil {
		return nil, err
	}
	if !arrow.TypeEqual(left.DataType(), common) {
		if left, err = left.Cast(common); err != nil {
			return nil, err
		}
	}
	if !arrow.TypeEqual(right.DataType(), common) {
		if right, err = right.Cast(common); err != nil {
			return nil, err
		}
	}

	out := common
	if ex.op.IsComparison() || ex.op.IsLogical() {
		out = arrow.FixedWidthTypes.Boolean
	}
	b, err := series.NewBuilder(memory.NewGoAllocator(), out)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	n := left.Len()
	b.Reserve(n)

	for i := 0; i < n; i++ {
		av, aok := left.Get(i)
		bv, bok := right.Get(i)
		if !aok || !bok {
			b.AppendNull()
			continue
		}
		switch {
		case ex.op.IsLogical():
			x, y := av.(bool), bv.(bool)
			if ex.op == OpAnd {
				b.(*array.BooleanBuilder).Append(x && y)
			} else {
				b.(*array.BooleanBuilder).Append(x || y)
			}
		case ex.op.IsComparison():
			b.(*array.BooleanBuilder).Append(compareResult(ex.op, series.CompareBoxed(av, bv)))
		default:
			if err := series.AppendBoxed(b, arithValue(ex.op, common.ID(), av, bv)); err != nil {
				return nil, err
			}
		}
	}

	return series.FromArray(ex.String(), b.NewArray()), nil
}

func compareResult(op BinaryOp, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

func arithValue(op BinaryOp, id arrow.Type, a, b any) any {
	switch id {
	case arrow.INT32:
		x, y := a.(int32), b.(int32)
		switch op {
		case OpAdd:
			return x + y
		case OpSub:
			return x - y
		default:
			return x * y
		}
	case arrow.INT64:
		x, y := a.(int64), b.(int64)
		switch op {
		case OpAdd:
			return x + y
		case OpSub:
			return x - y
		default:
			return x * y
		}
	case arrow.FLOAT32:
		x, y := a.(float32), b.(float32)
		switch op {
		case OpAdd:
			return x + y
		case OpSub:
			return x - y
		case OpDiv:
			return x / y
		default:
			return x * y
		}
	default:
		x, y := a.(float64), b.(float64)
		switch op {
		case OpAdd:
			return x + y
		case OpSub:
			return x - y
		case OpDiv:
			return x / y
		default:
			return x * y
		}
	}
}

func evalUnary(ex *UnaryExpr, df *dataframe.DataFrame) (*series.Series, error) {
	s, err := eval(ex.operand, df)
	if err != nil {
		return nil, err
	}

	switch ex.op {
	case UnaryNeg:
		if _, ok := numericRank[s.DataType().ID()]; !ok {
			return nil, qerrors.TypeMismatch("Evaluate",
				fmt.Sprintf("cannot negate %s", s.DataType()))
		}
		return s.Apply(ex.String(), s.DataType(), func(v any) (any, error) {
			switch x := v.(type) {
			case nil:
				return nil, nil
			case int32:
				return -x, nil
			case int64:
				return -x, nil
			case float32:
				return -x, nil
			default:
				return -x.(float64), nil
			}
		})
	case UnaryNot:
		if s.DataType().ID() != arrow.BOOL {
			return nil, qerrors.TypeMismatch("Evaluate",
				fmt.Sprintf("cannot logically negate %s", s.DataType()))
		}
		return s.Apply(ex.String(), s.DataType(), func(v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			return !v.(bool), nil
		})
	case UnaryIsNull, UnaryIsNotNull:
		want := ex.op == UnaryIsNull
		b, err := series.NewBuilder(memory.NewGoAllocator(), arrow.FixedWidthTypes.Boolean)
		if err != nil {
			return nil, err
		}
		defer b.Release()
		b.Reserve(s.Len())
		for i := 0; i < s.Len(); i++ {
			b.(*array.BooleanBuilder).Append(s.IsNull(i) == want)
		}
		return series.FromArray(ex.String(), b.NewArray()), nil
	default:
		return nil, qerrors.Compile("Evaluate", fmt.Sprintf("unknown unary op %d", ex.op))
	}
}

func evalFunction(ex *FunctionExpr, df *dataframe.DataFrame) (*series.Series, error) {
	if len(ex.args) != 1 {
		return nil, qerrors.Schema("Evaluate",
			fmt.Sprintf("%s takes exactly one argument, got %d", ex.name, len(ex.args)))
	}
	s, err := eval(ex.args[0], df)
	if err != nil {
		return nil, err
	}

	switch ex.name {
	case FnUpper, FnLower, FnTrim, FnLength:
		if s.DataType().ID() == arrow.DICTIONARY {
			if s, err = s.Cast(arrow.BinaryTypes.String); err != nil {
				return nil, err
			}
		}
		if s.DataType().ID() != arrow.STRING {
			return nil, qerrors.TypeMismatch("Evaluate",
				fmt.Sprintf("%s requires a string input, got %s", ex.name, s.DataType()))
		}
		return applyString(ex, s)
	case FnAbs:
		if _, ok := numericRank[s.DataType().ID()]; !ok {
			return nil, qerrors.TypeMismatch("Evaluate",
				fmt.Sprintf("abs requires a numeric input, got %s", s.DataType()))
		}
		return s.Apply(ex.String(), s.DataType(), func(v any) (any, error) {
			switch x := v.(type) {
			case nil:
				return nil, nil
			case int32:
				if x < 0 {
					return -x, nil
				}
				return x, nil
			case int64:
				if x < 0 {
					return -x, nil
				}
				return x, nil
			case float32:
				return float32(math.Abs(float64(x))), nil
			default:
				return math.Abs(x.(float64)), nil
			}
		})
	case FnYear, FnMonth, FnDay:
		return applyTemporal(ex, s)
	default:
		return nil, qerrors.Compile("Evaluate", fmt.Sprintf("unknown function %s", ex.name))
	}
}

func applyString(ex *FunctionExpr, s *series.Series) (*series.Series, error) {
	if ex.name == FnLength {
		return s.Apply(ex.String(), arrow.PrimitiveTypes.Int64, func(v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			return int64(utf8.RuneCountInString(v.(string))), nil
		})
	}
	var fn func(string) string
	switch ex.name {
	case FnUpper:
		fn = strings.ToUpper
	case FnLower:
		fn = strings.ToLower
	default:
		fn = strings.TrimSpace
	}
	return s.Apply(ex.String(), arrow.BinaryTypes.String, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return fn(v.(string)), nil
	})
}

func applyTemporal(ex *FunctionExpr, s *series.Series) (*series.Series, error) {
	var toTime func(any) time.Time
	switch s.DataType().ID() {
	case arrow.TIMESTAMP:
		toTime = func(v any) time.Time { return time.UnixMicro(v.(int64)).UTC() }
	case arrow.DATE32:
		toTime = func(v any) time.Time { return time.Unix(int64(v.(int32))*86400, 0).UTC() }
	default:
		return nil, qerrors.TypeMismatch("Evaluate",
			fmt.Sprintf("%s requires a temporal input, got %s", ex.name, s.DataType()))
	}

	return s.Apply(ex.String(), arrow.PrimitiveTypes.Int64, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		t := toTime(v)
		switch ex.name {
		case FnYear:
			return int64(t.Year()), nil
		case FnMonth:
			return int64(t.Month()), nil
		default:
			return int64(t.Day()), nil
		}
	})
}

func evalAgg(ex *AggExpr, df *dataframe.DataFrame) (*series.Series, error) {
	s, err := eval(ex.operand, df)
	if err != nil {
		return nil, err
	}
	out, err := aggType(ex.op, s.DataType())
	if err != nil {
		return nil, err
	}
	v, err := Reduce(ex.op, s)
	if err != nil {
		return nil, err
	}
	return constantSeries(ex.String(), out, v, 1)
}

// Reduce folds a whole series to one boxed value under an aggregation
// operator. Nulls are skipped; an empty or all-null input reduces to nil
// for every operator except count and n_unique. Sums over integer
// inputs accumulate in int64, mean/var/std in float64 with ddof 1.
func Reduce(op AggOp, s *series.Series) (any, error) {
	n := s.Len()
	switch op {
	case AggCount:
		return int64(n - s.NullCount()), nil

	case AggNUnique:
		seen := make(map[any]struct{}, n)
		sawNull := false
		for i := 0; i < n; i++ {
			v, ok := s.Get(i)
			if !ok {
				sawNull = true
				continue
			}
			seen[v] = struct{}{}
		}
		u := int64(len(seen))
		if sawNull {
			u++
		}
		return u, nil

	case AggFirst:
		if n == 0 {
			return nil, nil
		}
		v, _ := s.Get(0)
		return v, nil

	case AggLast:
		if n == 0 {
			return nil, nil
		}
		v, _ := s.Get(n - 1)
		return v, nil

	case AggMin, AggMax:
		var best any
		for i := 0; i < n; i++ {
			v, ok := s.Get(i)
			if !ok {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := series.CompareBoxed(v, best)
			if (op == AggMin && c < 0) || (op == AggMax && c > 0) {
				best = v
			}
		}
		return best, nil

	case AggSum:
		return reduceSum(s)

	case AggMean:
		sum, count := 0.0, 0
		for i := 0; i < n; i++ {
			v, ok := s.Get(i)
			if !ok {
				continue
			}
			sum += toFloat(v)
			count++
		}
		if count == 0 {
			return nil, nil
		}
		return sum / float64(count), nil

	case AggVar, AggStd:
		vals := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			v, ok := s.Get(i)
			if !ok {
				continue
			}
			vals = append(vals, toFloat(v))
		}
		if len(vals) < 2 {
			return nil, nil
		}
		mean := 0.0
		for _, v := range vals {
			mean += v
		}
		mean /= float64(len(vals))
		ss := 0.0
		for _, v := range vals {
			d := v - mean
			ss += d * d
		}
		variance := ss / float64(len(vals)-1)
		if op == AggStd {
			return math.Sqrt(variance), nil
		}
		return variance, nil

	default:
		return nil, qerrors.Compile("Reduce", fmt.Sprintf("unknown aggregation %d", op))
	}
}

func reduceSum(s *series.Series) (any, error) {
	switch s.DataType().ID() {
	case arrow.INT32, arrow.INT64:
		var sum int64
		saw := false
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Get(i)
			if !ok {
				continue
			}
			if x, isNarrow := v.(int32); isNarrow {
				sum += int64(x)
			} else {
				sum += v.(int64)
			}
			saw = true
		}
		if !saw {
			return nil, nil
		}
		return sum, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		var sum float64
		saw := false
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Get(i)
			if !ok {
				continue
			}
			sum += toFloat(v)
			saw = true
		}
		if !saw {
			return nil, nil
		}
		return sum, nil
	default:
		return nil, qerrors.TypeMismatch("Reduce",
			fmt.Sprintf("sum requires a numeric input, got %s", s.DataType()))
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return x.(float64)
	}
}

func evalCast(ex *CastExpr, df *dataframe.DataFrame) (*series.Series, error) {
	if isNullLit(ex.operand) {
		return constantSeries("null", ex.to, nil, df.Len())
	}
	s, err := eval(ex.operand, df)
	if err != nil {
		return nil, err
	}
	return s.Cast(ex.to)
}

func evalSortBy(ex *SortByExpr, df *dataframe.DataFrame) (*series.Series, error) {
	operand, err := eval(ex.operand, df)
	if err != nil {
		return nil, err
	}
	keys := make([]*series.Series, len(ex.keys))
	opts := make([]series.SortKey, len(ex.keys))
	for i, k := range ex.keys {
		if keys[i], err = eval(k.Expr, df); err != nil {
			return nil, err
		}
		if keys[i].Len() != operand.Len() {
			return nil, qerrors.Computation("Evaluate",
				fmt.Sprintf("sort key length %d does not match operand length %d",
					keys[i].Len(), operand.Len()))
		}
		opts[i] = series.SortKey{Descending: k.Descending, NullsFirst: k.NullsFirst}
	}
	return operand.Take(series.SortIndices(keys, opts))
}
