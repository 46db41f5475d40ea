// Package expr provides the typed expression trees evaluated against
// DataFrames: column references, literals, arithmetic and comparison
// operators, aggregations, window expressions, casts, and aliases.
//
// Expression nodes are immutable tagged variants behind a closed
// interface; every builder call wraps its receiver in a new node, so
// trees share structure and are never mutated after construction.
package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind tags the variant of an expression node.
type Kind int

const (
	KindColumn Kind = iota
	KindLiteral
	KindBinary
	KindUnary
	KindFunction
	KindAggregation
	KindWindow
	KindCast
	KindAlias
	KindSortBy
)

// Expr is an immutable, pure expression node. The variant set is closed:
// only this package can implement the interface.
type Expr interface {
	Kind() Kind
	String() string
	// Children returns operand subtrees in a fixed order.
	Children() []Expr

	// Fluent builders. Each returns a new node wrapping the receiver.
	Add(other Expr) Expr
	Sub(other Expr) Expr
	Mul(other Expr) Expr
	Div(other Expr) Expr
	Eq(other Expr) Expr
	Ne(other Expr) Expr
	Lt(other Expr) Expr
	Le(other Expr) Expr
	Gt(other Expr) Expr
	Ge(other Expr) Expr
	And(other Expr) Expr
	Or(other Expr) Expr
	Neg() Expr
	Not() Expr
	IsNull() Expr
	IsNotNull() Expr
	Cast(to arrow.DataType) Expr
	As(name string) Expr

	Sum() Expr
	Mean() Expr
	Min() Expr
	Max() Expr
	Count() Expr
	First() Expr
	Last() Expr
	NUnique() Expr
	Var() Expr
	Std() Expr

	// Over turns an aggregation into a window expression partitioned by
	// the given key expressions.
	Over(partitionBy ...Expr) Expr

	sealed()
}

// base supplies the fluent builder methods to every variant.
type base struct {
	self Expr
}

func (b *base) sealed() {}

func (b *base) binary(op BinaryOp, other Expr) Expr { return NewBinary(b.self, op, other) }

func (b *base) Add(other Expr) Expr { return b.binary(OpAdd, other) }
func (b *base) Sub(other Expr) Expr { return b.binary(OpSub, other) }
func (b *base) Mul(other Expr) Expr { return b.binary(OpMul, other) }
func (b *base) Div(other Expr) Expr { return b.binary(OpDiv, other) }
func (b *base) Eq(other Expr) Expr  { return b.binary(OpEq, other) }
func (b *base) Ne(other Expr) Expr  { return b.binary(OpNe, other) }
func (b *base) Lt(other Expr) Expr  { return b.binary(OpLt, other) }
func (b *base) Le(other Expr) Expr  { return b.binary(OpLe, other) }
func (b *base) Gt(other Expr) Expr  { return b.binary(OpGt, other) }
func (b *base) Ge(other Expr) Expr  { return b.binary(OpGe, other) }
func (b *base) And(other Expr) Expr { return b.binary(OpAnd, other) }
func (b *base) Or(other Expr) Expr  { return b.binary(OpOr, other) }

func (b *base) Neg() Expr       { return NewUnary(UnaryNeg, b.self) }
func (b *base) Not() Expr       { return NewUnary(UnaryNot, b.self) }
func (b *base) IsNull() Expr    { return NewUnary(UnaryIsNull, b.self) }
func (b *base) IsNotNull() Expr { return NewUnary(UnaryIsNotNull, b.self) }

func (b *base) Cast(to arrow.DataType) Expr { return NewCast(b.self, to) }
func (b *base) As(name string) Expr         { return NewAlias(b.self, name) }

func (b *base) agg(op AggOp) Expr { return NewAgg(op, b.self) }

func (b *base) Sum() Expr     { return b.agg(AggSum) }
func (b *base) Mean() Expr    { return b.agg(AggMean) }
func (b *base) Min() Expr     { return b.agg(AggMin) }
func (b *base) Max() Expr     { return b.agg(AggMax) }
func (b *base) Count() Expr   { return b.agg(AggCount) }
func (b *base) First() Expr   { return b.agg(AggFirst) }
func (b *base) Last() Expr    { return b.agg(AggLast) }
func (b *base) NUnique() Expr { return b.agg(AggNUnique) }
func (b *base) Var() Expr     { return b.agg(AggVar) }
func (b *base) Std() Expr     { return b.agg(AggStd) }

func (b *base) Over(partitionBy ...Expr) Expr {
	return NewWindow(b.self, partitionBy, nil)
}

// ColumnExpr references a column by name.
type ColumnExpr struct {
	base
	name string
}

// Col creates a column reference.
func Col(name string) Expr {
	c := &ColumnExpr{name: name}
	c.self = c
	return c
}

func (c *ColumnExpr) Kind() Kind       { return KindColumn }
func (c *ColumnExpr) Name() string     { return c.name }
func (c *ColumnExpr) Children() []Expr { return nil }
func (c *ColumnExpr) String() string   { return fmt.Sprintf("col(%s)", c.name) }

// LiteralExpr holds a constant value: bool, int32, int64, float32,
// float64, string, or nil (the null literal).
type LiteralExpr struct {
	base
	value any
}

// Lit creates a literal. Plain ints are normalized to int64.
func Lit(value any) Expr {
	if v, ok := value.(int); ok {
		value = int64(v)
	}
	l := &LiteralExpr{value: value}
	l.self = l
	return l
}

func (l *LiteralExpr) Kind() Kind       { return KindLiteral }
func (l *LiteralExpr) Value() any       { return l.value }
func (l *LiteralExpr) Children() []Expr { return nil }

func (l *LiteralExpr) String() string {
	if s, ok := l.value.(string); ok {
		return fmt.Sprintf("lit(%q)", s)
	}
	return fmt.Sprintf("lit(%v)", l.value)
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// IsComparison reports whether the operator yields a boolean.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// IsLogical reports whether the operator combines booleans.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// BinaryExpr applies an operator to two operands.
type BinaryExpr struct {
	base
	left  Expr
	op    BinaryOp
	right Expr
}

// NewBinary creates a binary operator node.
func NewBinary(left Expr, op BinaryOp, right Expr) Expr {
	b := &BinaryExpr{left: left, op: op, right: right}
	b.self = b
	return b
}

func (b *BinaryExpr) Kind() Kind       { return KindBinary }
func (b *BinaryExpr) Left() Expr       { return b.left }
func (b *BinaryExpr) Op() BinaryOp     { return b.op }
func (b *BinaryExpr) Right() Expr      { return b.right }
func (b *BinaryExpr) Children() []Expr { return []Expr{b.left, b.right} }

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left, b.op, b.right)
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryIsNull
	UnaryIsNotNull
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	case UnaryIsNull:
		return "is_null"
	case UnaryIsNotNull:
		return "is_not_null"
	default:
		return "?"
	}
}

// UnaryExpr applies an operator to one operand.
type UnaryExpr struct {
	base
	op      UnaryOp
	operand Expr
}

// NewUnary creates a unary operator node.
func NewUnary(op UnaryOp, operand Expr) Expr {
	u := &UnaryExpr{op: op, operand: operand}
	u.self = u
	return u
}

func (u *UnaryExpr) Kind() Kind       { return KindUnary }
func (u *UnaryExpr) Op() UnaryOp      { return u.op }
func (u *UnaryExpr) Operand() Expr    { return u.operand }
func (u *UnaryExpr) Children() []Expr { return []Expr{u.operand} }

func (u *UnaryExpr) String() string {
	switch u.op {
	case UnaryIsNull, UnaryIsNotNull:
		return fmt.Sprintf("%s.%s()", u.operand, u.op)
	default:
		return fmt.Sprintf("(%s%s)", u.op, u.operand)
	}
}

// FunctionName enumerates the supported scalar functions.
type FunctionName string

const (
	FnUpper  FunctionName = "upper"
	FnLower  FunctionName = "lower"
	FnTrim   FunctionName = "trim"
	FnLength FunctionName = "length"
	FnAbs    FunctionName = "abs"
	FnYear   FunctionName = "year"
	FnMonth  FunctionName = "month"
	FnDay    FunctionName = "day"
)

// FunctionExpr applies a named scalar function to its arguments.
type FunctionExpr struct {
	base
	name FunctionName
	args []Expr
}

// NewFunction creates a scalar function node.
func NewFunction(name FunctionName, args ...Expr) Expr {
	f := &FunctionExpr{name: name, args: args}
	f.self = f
	return f
}

func (f *FunctionExpr) Kind() Kind         { return KindFunction }
func (f *FunctionExpr) Name() FunctionName { return f.name }
func (f *FunctionExpr) Args() []Expr       { return f.args }
func (f *FunctionExpr) Children() []Expr   { return f.args }

func (f *FunctionExpr) String() string {
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.name, strings.Join(parts, ", "))
}

// AggOp enumerates aggregation operators.
type AggOp int

const (
	AggSum AggOp = iota
	AggMean
	AggMin
	AggMax
	AggCount
	AggFirst
	AggLast
	AggNUnique
	AggVar
	AggStd
)

func (op AggOp) String() string {
	switch op {
	case AggSum:
		return "sum"
	case AggMean:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggCount:
		return "count"
	case AggFirst:
		return "first"
	case AggLast:
		return "last"
	case AggNUnique:
		return "n_unique"
	case AggVar:
		return "var"
	case AggStd:
		return "std"
	default:
		return "?"
	}
}

// AggExpr reduces its operand to one value, or one value per group in a
// group-by context.
type AggExpr struct {
	base
	op      AggOp
	operand Expr
}

// NewAgg creates an aggregation node.
func NewAgg(op AggOp, operand Expr) Expr {
	a := &AggExpr{op: op, operand: operand}
	a.self = a
	return a
}

func (a *AggExpr) Kind() Kind       { return KindAggregation }
func (a *AggExpr) Op() AggOp        { return a.op }
func (a *AggExpr) Operand() Expr    { return a.operand }
func (a *AggExpr) Children() []Expr { return []Expr{a.operand} }
func (a *AggExpr) String() string   { return fmt.Sprintf("%s(%s)", a.op, a.operand) }

// SortField orders a sort or window by one key expression.
type SortField struct {
	Expr       Expr
	Descending bool
	NullsFirst bool
}

func (f SortField) String() string {
	dir := "asc"
	if f.Descending {
		dir = "desc"
	}
	nulls := "nulls_last"
	if f.NullsFirst {
		nulls = "nulls_first"
	}
	return fmt.Sprintf("%s %s %s", f.Expr, dir, nulls)
}

// WindowExpr evaluates its inner expression per partition and
// broadcasts results back to the original row order. Output length
// always equals input length.
type WindowExpr struct {
	base
	inner       Expr
	partitionBy []Expr
	orderBy     []SortField
}

// NewWindow creates a window node.
func NewWindow(inner Expr, partitionBy []Expr, orderBy []SortField) Expr {
	w := &WindowExpr{inner: inner, partitionBy: partitionBy, orderBy: orderBy}
	w.self = w
	return w
}

func (w *WindowExpr) Kind() Kind           { return KindWindow }
func (w *WindowExpr) Inner() Expr          { return w.inner }
func (w *WindowExpr) PartitionBy() []Expr  { return w.partitionBy }
func (w *WindowExpr) OrderBy() []SortField { return w.orderBy }

func (w *WindowExpr) Children() []Expr {
	children := []Expr{w.inner}
	children = append(children, w.partitionBy...)
	for _, f := range w.orderBy {
		children = append(children, f.Expr)
	}
	return children
}

func (w *WindowExpr) String() string {
	parts := make([]string, len(w.partitionBy))
	for i, p := range w.partitionBy {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s.over(%s)", w.inner, strings.Join(parts, ", "))
}

// CastExpr converts its operand to a target logical type.
type CastExpr struct {
	base
	operand Expr
	to      arrow.DataType
}

// NewCast creates a cast node.
func NewCast(operand Expr, to arrow.DataType) Expr {
	c := &CastExpr{operand: operand, to: to}
	c.self = c
	return c
}

func (c *CastExpr) Kind() Kind         { return KindCast }
func (c *CastExpr) Operand() Expr      { return c.operand }
func (c *CastExpr) To() arrow.DataType { return c.to }
func (c *CastExpr) Children() []Expr   { return []Expr{c.operand} }
func (c *CastExpr) String() string     { return fmt.Sprintf("%s.cast(%s)", c.operand, c.to) }

// AliasExpr renames the result of its operand.
type AliasExpr struct {
	base
	operand Expr
	name    string
}

// NewAlias creates an alias node.
func NewAlias(operand Expr, name string) Expr {
	a := &AliasExpr{operand: operand, name: name}
	a.self = a
	return a
}

func (a *AliasExpr) Kind() Kind       { return KindAlias }
func (a *AliasExpr) Operand() Expr    { return a.operand }
func (a *AliasExpr) Name() string     { return a.name }
func (a *AliasExpr) Children() []Expr { return []Expr{a.operand} }
func (a *AliasExpr) String() string   { return fmt.Sprintf("%s.alias(%s)", a.operand, a.name) }

// SortByExpr reorders its operand by independent key expressions.
type SortByExpr struct {
	base
	operand Expr
	keys    []SortField
}

// NewSortBy creates a sort-by node.
func NewSortBy(operand Expr, keys []SortField) Expr {
	s := &SortByExpr{operand: operand, keys: keys}
	s.self = s
	return s
}

func (s *SortByExpr) Kind() Kind        { return KindSortBy }
func (s *SortByExpr) Operand() Expr     { return s.operand }
func (s *SortByExpr) Keys() []SortField { return s.keys }

func (s *SortByExpr) Children() []Expr {
	children := []Expr{s.operand}
	for _, k := range s.keys {
		children = append(children, k.Expr)
	}
	return children
}

func (s *SortByExpr) String() string {
	parts := make([]string, len(s.keys))
	for i, k := range s.keys {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%s.sort_by(%s)", s.operand, strings.Join(parts, ", "))
}

// OutputName resolves the column name an expression produces: the alias
// if present, else the leftmost column reference, else the expression
// text.
func OutputName(e Expr) string {
	switch ex := e.(type) {
	case *AliasExpr:
		return ex.name
	case *ColumnExpr:
		return ex.name
	case *AggExpr:
		return OutputName(ex.operand)
	case *CastExpr:
		return OutputName(ex.operand)
	case *WindowExpr:
		return OutputName(ex.inner)
	case *SortByExpr:
		return OutputName(ex.operand)
	case *BinaryExpr:
		return OutputName(ex.left)
	case *UnaryExpr:
		return OutputName(ex.operand)
	case *FunctionExpr:
		if len(ex.args) > 0 {
			return OutputName(ex.args[0])
		}
		return ex.String()
	default:
		return e.String()
	}
}
