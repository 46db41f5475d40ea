// Package logical builds and type-checks the lazy query plan. Every
// node resolves its output schema from its inputs at construction, so
// unknown columns and unpromotable operand types surface when the plan
// is built, not when it runs.
package logical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/source"
)

// Node is one operator in the logical plan tree.
type Node interface {
	Schema() *Schema
	Inputs() []Node
	describe() string
}

// Scan reads a source. Projection and Predicate start empty and are
// narrowed by the optimizer; the predicate is a hint the source may
// ignore, so the plan keeps its Filter nodes regardless.
type Scan struct {
	Src        source.Source
	Projection []string
	Predicate  expr.Expr

	full   *Schema
	output *Schema
}

// NewScan builds a scan over a source, reading its schema.
func NewScan(src source.Source) (*Scan, error) {
	fields, err := src.Fields()
	if err != nil {
		return nil, qerrors.WrapSource(src.Name(), err)
	}
	schema, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &Scan{Src: src, full: schema, output: schema}, nil
}

// WithProjection narrows the scan to the given columns, in the given
// order.
func (s *Scan) WithProjection(cols []string) (*Scan, error) {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		f, ok := s.full.Field(c)
		if !ok {
			return nil, qerrors.ColumnNotFound("Scan", c)
		}
		fields[i] = f
	}
	output, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &Scan{Src: s.Src, Projection: cols, Predicate: s.Predicate, full: s.full, output: output}, nil
}

// WithPredicate attaches a filter hint for the source.
func (s *Scan) WithPredicate(p expr.Expr) *Scan {
	return &Scan{Src: s.Src, Projection: s.Projection, Predicate: p, full: s.full, output: s.output}
}

// FullNames returns the source's complete column list, ignoring any
// projection already applied.
func (s *Scan) FullNames() []string { return s.full.Names() }

func (s *Scan) Schema() *Schema { return s.output }
func (s *Scan) Inputs() []Node  { return nil }

func (s *Scan) describe() string {
	d := fmt.Sprintf("Scan %s", s.Src.Name())
	if s.Projection != nil {
		d += fmt.Sprintf(" project=%v", s.Projection)
	}
	if s.Predicate != nil {
		d += fmt.Sprintf(" hint=%s", s.Predicate)
	}
	return d
}

// Filter keeps rows where the predicate is true. Rows where it is null
// are dropped.
type Filter struct {
	Input     Node
	Predicate expr.Expr
}

// NewFilter builds a filter, checking the predicate resolves to boolean.
func NewFilter(input Node, predicate expr.Expr) (*Filter, error) {
	dt, err := expr.Resolve(predicate, input.Schema().Types())
	if err != nil {
		return nil, err
	}
	if dt.ID() != arrow.BOOL {
		return nil, qerrors.TypeMismatch("Filter",
			fmt.Sprintf("predicate must be boolean, got %s", dt))
	}
	return &Filter{Input: input, Predicate: predicate}, nil
}

func (f *Filter) Schema() *Schema { return f.Input.Schema() }
func (f *Filter) Inputs() []Node  { return []Node{f.Input} }
func (f *Filter) describe() string {
	return fmt.Sprintf("Filter %s", f.Predicate)
}

// Project evaluates one expression per output column. An expression
// containing a bare aggregation reduces the frame to a single row.
type Project struct {
	Input  Node
	Exprs  []expr.Expr
	output *Schema
}

// NewProject builds a projection, resolving every expression's type and
// rejecting duplicate output names.
func NewProject(input Node, exprs []expr.Expr) (*Project, error) {
	if len(exprs) == 0 {
		return nil, qerrors.Schema("Project", "projection requires at least one expression")
	}
	types := input.Schema().Types()
	fields := make([]arrow.Field, len(exprs))
	for i, e := range exprs {
		dt, err := expr.Resolve(e, types)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: expr.OutputName(e), Type: dt, Nullable: true}
	}
	output, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &Project{Input: input, Exprs: exprs, output: output}, nil
}

func (p *Project) Schema() *Schema { return p.output }
func (p *Project) Inputs() []Node  { return []Node{p.Input} }
func (p *Project) describe() string {
	return fmt.Sprintf("Project %s", exprList(p.Exprs))
}

// GroupBy groups rows by key expressions and reduces each group with
// aggregation expressions. Output rows appear in first-seen key order.
type GroupBy struct {
	Input  Node
	Keys   []expr.Expr
	Aggs   []expr.Expr
	output *Schema
}

// NewGroupBy builds a group-by. Keys must be aggregation-free and every
// aggregation expression must actually aggregate.
func NewGroupBy(input Node, keys, aggs []expr.Expr) (*GroupBy, error) {
	if len(keys) == 0 {
		return nil, qerrors.Schema("GroupBy", "group-by requires at least one key")
	}
	if len(aggs) == 0 {
		return nil, qerrors.Schema("GroupBy", "group-by requires at least one aggregation")
	}

	types := input.Schema().Types()
	fields := make([]arrow.Field, 0, len(keys)+len(aggs))
	for _, k := range keys {
		if expr.HasAgg(k) {
			return nil, qerrors.Schema("GroupBy",
				fmt.Sprintf("key %s must not aggregate", k))
		}
		dt, err := expr.Resolve(k, types)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: expr.OutputName(k), Type: dt, Nullable: true})
	}
	for _, a := range aggs {
		if !expr.HasAgg(a) {
			return nil, qerrors.Schema("GroupBy",
				fmt.Sprintf("%s does not aggregate", a))
		}
		dt, err := expr.Resolve(a, types)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: expr.OutputName(a), Type: dt, Nullable: true})
	}

	output, err := NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return &GroupBy{Input: input, Keys: keys, Aggs: aggs, output: output}, nil
}

func (g *GroupBy) Schema() *Schema { return g.output }
func (g *GroupBy) Inputs() []Node  { return []Node{g.Input} }
func (g *GroupBy) describe() string {
	return fmt.Sprintf("GroupBy keys=%s aggs=%s", exprList(g.Keys), exprList(g.Aggs))
}

// JoinType enumerates join kinds.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinAsof
)

func (t JoinType) String() string {
	switch t {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinFull:
		return "full"
	case JoinCross:
		return "cross"
	case JoinAsof:
		return "asof"
	default:
		return "?"
	}
}

// AsofStrategy picks the match direction for an as-of join.
type AsofStrategy int

const (
	// AsofBackward matches the nearest right key less than or equal to
	// the left key.
	AsofBackward AsofStrategy = iota
	// AsofForward matches the nearest right key greater than or equal
	// to the left key.
	AsofForward
)

func (s AsofStrategy) String() string {
	if s == AsofForward {
		return "forward"
	}
	return "backward"
}

// JoinOptions configures a join.
type JoinOptions struct {
	How      JoinType
	LeftOn   []string
	RightOn  []string
	Strategy AsofStrategy
	// Suffix disambiguates right-side columns that collide with left
	// names. Defaults to "_right".
	Suffix string
}

// Join combines two inputs. A right join is stored as a left join with
// the inputs flipped, so the planner only ever sees five kinds.
type Join struct {
	Left   Node
	Right  Node
	Opts   JoinOptions
	output *Schema
}

// NewJoin builds a join, validating key columns and computing the
// output schema. Right-side join keys are dropped for equality joins;
// a full outer join keeps them, suffixed on collision, because the
// right keys survive on unmatched right rows.
func NewJoin(left, right Node, opts JoinOptions) (*Join, error) {
	if opts.Suffix == "" {
		opts.Suffix = "_right"
	}
	if opts.How == JoinRight {
		opts.How = JoinLeft
		opts.LeftOn, opts.RightOn = opts.RightOn, opts.LeftOn
		left, right = right, left
	}

	switch opts.How {
	case JoinCross:
		if len(opts.LeftOn) != 0 || len(opts.RightOn) != 0 {
			return nil, qerrors.Schema("Join", "cross join takes no key columns")
		}
	case JoinAsof:
		if len(opts.LeftOn) != 1 || len(opts.RightOn) != 1 {
			return nil, qerrors.Schema("Join", "as-of join takes exactly one key per side")
		}
	default:
		if len(opts.LeftOn) == 0 || len(opts.LeftOn) != len(opts.RightOn) {
			return nil, qerrors.Schema("Join",
				fmt.Sprintf("key count mismatch: %d left vs %d right", len(opts.LeftOn), len(opts.RightOn)))
		}
	}

	for i := range opts.LeftOn {
		lf, ok := left.Schema().Field(opts.LeftOn[i])
		if !ok {
			return nil, qerrors.ColumnNotFound("Join", opts.LeftOn[i])
		}
		rf, ok := right.Schema().Field(opts.RightOn[i])
		if !ok {
			return nil, qerrors.ColumnNotFound("Join", opts.RightOn[i])
		}
		if _, err := expr.Promote(expr.OpEq, lf.Type, rf.Type); err != nil {
			return nil, qerrors.TypeMismatch("Join",
				fmt.Sprintf("cannot compare %s (%s) with %s (%s)", lf.Name, lf.Type, rf.Name, rf.Type))
		}
		if opts.How == JoinAsof && !asofOrderable(lf.Type) {
			return nil, qerrors.TypeMismatch("Join",
				fmt.Sprintf("as-of key %s must be numeric or temporal, got %s", lf.Name, lf.Type))
		}
	}

	output, err := joinSchema(left.Schema(), right.Schema(), opts)
	if err != nil {
		return nil, err
	}
	return &Join{Left: left, Right: right, Opts: opts, output: output}, nil
}

func asofOrderable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT32, arrow.INT64, arrow.FLOAT32, arrow.FLOAT64, arrow.DATE32, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}

func joinSchema(left, right *Schema, opts JoinOptions) (*Schema, error) {
	dropRightKeys := opts.How == JoinInner || opts.How == JoinLeft || opts.How == JoinAsof
	rightKey := make(map[string]bool, len(opts.RightOn))
	for _, k := range opts.RightOn {
		rightKey[k] = true
	}

	fields := append([]arrow.Field{}, left.Fields()...)
	for _, f := range right.Fields() {
		if dropRightKeys && rightKey[f.Name] {
			continue
		}
		if left.Has(f.Name) {
			f.Name += opts.Suffix
		}
		// Outer joins introduce nulls on unmatched rows.
		f.Nullable = true
		fields = append(fields, f)
	}
	return NewSchema(fields)
}

// RightColumns returns the right-side column names that survive into
// the output, paired with their output names.
func (j *Join) RightColumns() (src, dst []string) {
	dropRightKeys := j.Opts.How == JoinInner || j.Opts.How == JoinLeft || j.Opts.How == JoinAsof
	rightKey := make(map[string]bool, len(j.Opts.RightOn))
	for _, k := range j.Opts.RightOn {
		rightKey[k] = true
	}
	for _, f := range j.Right.Schema().Fields() {
		if dropRightKeys && rightKey[f.Name] {
			continue
		}
		name := f.Name
		if j.Left.Schema().Has(name) {
			name += j.Opts.Suffix
		}
		src = append(src, f.Name)
		dst = append(dst, name)
	}
	return src, dst
}

func (j *Join) Schema() *Schema { return j.output }
func (j *Join) Inputs() []Node  { return []Node{j.Left, j.Right} }

func (j *Join) describe() string {
	d := fmt.Sprintf("Join %s", j.Opts.How)
	if len(j.Opts.LeftOn) > 0 {
		d += fmt.Sprintf(" on=%v/%v", j.Opts.LeftOn, j.Opts.RightOn)
	}
	if j.Opts.How == JoinAsof {
		d += fmt.Sprintf(" strategy=%s", j.Opts.Strategy)
	}
	return d
}

// Sort orders rows by key expressions. The sort is stable.
type Sort struct {
	Input Node
	Keys  []expr.SortField
}

// NewSort builds a sort, resolving every key expression.
func NewSort(input Node, keys []expr.SortField) (*Sort, error) {
	if len(keys) == 0 {
		return nil, qerrors.Schema("Sort", "sort requires at least one key")
	}
	types := input.Schema().Types()
	for _, k := range keys {
		if _, err := expr.Resolve(k.Expr, types); err != nil {
			return nil, err
		}
	}
	return &Sort{Input: input, Keys: keys}, nil
}

func (s *Sort) Schema() *Schema { return s.Input.Schema() }
func (s *Sort) Inputs() []Node  { return []Node{s.Input} }

func (s *Sort) describe() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = k.String()
	}
	return "Sort [" + strings.Join(parts, ", ") + "]"
}

// Slice keeps Length rows starting at Offset. A negative Length keeps
// everything from Offset on.
type Slice struct {
	Input  Node
	Offset int
	Length int
}

// NewSlice builds a row slice.
func NewSlice(input Node, offset, length int) (*Slice, error) {
	if offset < 0 {
		return nil, qerrors.Schema("Slice", fmt.Sprintf("negative offset %d", offset))
	}
	return &Slice{Input: input, Offset: offset, Length: length}, nil
}

func (s *Slice) Schema() *Schema { return s.Input.Schema() }
func (s *Slice) Inputs() []Node  { return []Node{s.Input} }

func (s *Slice) describe() string {
	if s.Length < 0 {
		return fmt.Sprintf("Slice offset=%d", s.Offset)
	}
	return fmt.Sprintf("Slice offset=%d length=%d", s.Offset, s.Length)
}

// Distinct keeps the first row of each duplicate group. A nil subset
// compares whole rows.
type Distinct struct {
	Input  Node
	Subset []string
}

// NewDistinct builds a distinct, validating the subset columns.
func NewDistinct(input Node, subset []string) (*Distinct, error) {
	for _, c := range subset {
		if !input.Schema().Has(c) {
			return nil, qerrors.ColumnNotFound("Distinct", c)
		}
	}
	return &Distinct{Input: input, Subset: subset}, nil
}

func (d *Distinct) Schema() *Schema { return d.Input.Schema() }
func (d *Distinct) Inputs() []Node  { return []Node{d.Input} }

func (d *Distinct) describe() string {
	if d.Subset == nil {
		return "Distinct"
	}
	return fmt.Sprintf("Distinct subset=%v", d.Subset)
}

// Union concatenates inputs with identical schemas, in input order.
type Union struct {
	inputs []Node
}

// NewUnion builds a union, requiring at least two inputs with equal
// schemas.
func NewUnion(inputs ...Node) (*Union, error) {
	if len(inputs) < 2 {
		return nil, qerrors.Schema("Union", "union requires at least two inputs")
	}
	first := inputs[0].Schema()
	for _, in := range inputs[1:] {
		if !first.Equal(in.Schema()) {
			return nil, qerrors.Schema("Union",
				fmt.Sprintf("schema mismatch: %s vs %s", first, in.Schema()))
		}
	}
	return &Union{inputs: inputs}, nil
}

func (u *Union) Schema() *Schema  { return u.inputs[0].Schema() }
func (u *Union) Inputs() []Node   { return u.inputs }
func (u *Union) describe() string { return fmt.Sprintf("Union inputs=%d", len(u.inputs)) }

func exprList(exprs []expr.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
