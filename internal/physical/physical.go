// Package physical lowers logical plans to executable operators and
// runs them. Execution is whole-frame and bottom-up: every operator
// materializes its full result before its parent runs, and the first
// error anywhere cancels the rest of the query.
package physical

import (
	"context"
	"fmt"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/parallel"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// Operator is one executable plan node.
type Operator interface {
	Execute(ctx context.Context) (*dataframe.DataFrame, error)
}

// Engine compiles and runs logical plans against a shared worker pool.
type Engine struct {
	cfg  *config.Config
	pool *parallel.Pool
}

// NewEngine creates an engine from a configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg, pool: parallel.NewPool(cfg.Workers())}
}

// Close releases the engine's worker pool.
func (e *Engine) Close() {
	e.pool.Close()
}

// Execute compiles the plan and runs it.
func (e *Engine) Execute(ctx context.Context, plan logical.Node) (*dataframe.DataFrame, error) {
	op, err := e.Compile(plan)
	if err != nil {
		return nil, err
	}
	return op.Execute(ctx)
}

// Compile lowers a logical node to its operator tree.
func (e *Engine) Compile(n logical.Node) (Operator, error) {
	switch node := n.(type) {
	case *logical.Scan:
		return &scanOp{scan: node}, nil

	case *logical.Filter:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &filterOp{input: input, predicate: node.Predicate}, nil

	case *logical.Project:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &projectOp{input: input, exprs: node.Exprs, pool: e.pool}, nil

	case *logical.GroupBy:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &groupByOp{input: input, keys: node.Keys, aggs: node.Aggs, cfg: e.cfg, pool: e.pool}, nil

	case *logical.Join:
		left, err := e.Compile(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.Compile(node.Right)
		if err != nil {
			return nil, err
		}
		switch node.Opts.How {
		case logical.JoinAsof:
			return &asofJoinOp{left: left, right: right, join: node}, nil
		case logical.JoinCross:
			return &crossJoinOp{left: left, right: right, join: node}, nil
		case logical.JoinInner, logical.JoinLeft, logical.JoinFull:
			return &hashJoinOp{left: left, right: right, join: node, cfg: e.cfg, pool: e.pool}, nil
		default:
			return nil, qerrors.Compile("Compile", fmt.Sprintf("unsupported join kind %s", node.Opts.How))
		}

	case *logical.Sort:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &sortOp{input: input, keys: node.Keys, cfg: e.cfg, pool: e.pool}, nil

	case *logical.Slice:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &sliceOp{input: input, offset: node.Offset, length: node.Length}, nil

	case *logical.Distinct:
		input, err := e.Compile(node.Input)
		if err != nil {
			return nil, err
		}
		return &distinctOp{input: input, subset: node.Subset}, nil

	case *logical.Union:
		inputs := make([]Operator, len(node.Inputs()))
		for i, in := range node.Inputs() {
			op, err := e.Compile(in)
			if err != nil {
				return nil, err
			}
			inputs[i] = op
		}
		return &unionOp{inputs: inputs, pool: e.pool}, nil

	default:
		return nil, qerrors.Compile("Compile", fmt.Sprintf("unknown plan node %T", n))
	}
}

type scanOp struct {
	scan *logical.Scan
}

func (o *scanOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batches, err := o.scan.Src.Open(o.scan.Projection, o.scan.Predicate)
	if err != nil {
		return nil, qerrors.WrapSource(o.scan.Src.Name(), err)
	}
	if len(batches) == 0 {
		return emptyFrame(o.scan.Schema())
	}
	df := batches[0]
	if len(batches) > 1 {
		if df, err = df.Concat(batches[1:]...); err != nil {
			return nil, qerrors.WrapSource(o.scan.Src.Name(), err)
		}
	}
	for _, name := range o.scan.Schema().Names() {
		if !df.HasColumn(name) {
			return nil, qerrors.WrapSource(o.scan.Src.Name(),
				qerrors.ColumnNotFound("Scan", name))
		}
	}
	return df, nil
}

// emptyFrame builds a zero-row frame matching a schema.
func emptyFrame(schema *logical.Schema) (*dataframe.DataFrame, error) {
	cols := make([]*series.Series, schema.Len())
	for i, f := range schema.Fields() {
		s, err := series.Zero(f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = s
	}
	return dataframe.New(cols...)
}

type filterOp struct {
	input     Operator
	predicate expr.Expr
}

func (o *filterOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	mask, err := expr.Mask(o.predicate, df)
	if err != nil {
		return nil, err
	}
	return df.FilterMask(mask)
}

type projectOp struct {
	input Operator
	exprs []expr.Expr
	pool  *parallel.Pool
}

func (o *projectOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}

	// A projection with a bare aggregation reduces the whole frame, so
	// every expression must then produce one row.
	cols, err := parallel.Run(o.pool, o.exprs, func(_ int, e expr.Expr) (*series.Series, error) {
		return expr.Evaluate(e, df)
	})
	if err != nil {
		return nil, err
	}

	height := 0
	for _, c := range cols {
		if c.Len() > height {
			height = c.Len()
		}
	}
	for i, c := range cols {
		if c.Len() == height {
			continue
		}
		if c.Len() != 1 {
			return nil, qerrors.Computation("Project",
				fmt.Sprintf("column %s has %d rows, expected %d", c.Name(), c.Len(), height))
		}
		// Broadcast scalars alongside full-length columns.
		v, _ := c.Get(0)
		b, err := series.Repeat(c.Name(), c.DataType(), v, height)
		if err != nil {
			return nil, err
		}
		cols[i] = b
	}
	return dataframe.New(cols...)
}

type sliceOp struct {
	input  Operator
	offset int
	length int
}

func (o *sliceOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}
	length := o.length
	if length < 0 {
		length = df.Len() - o.offset
	}
	return df.Slice(o.offset, length)
}

type unionOp struct {
	inputs []Operator
	pool   *parallel.Pool
}

func (o *unionOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	frames, err := parallel.Run(o.pool, o.inputs, func(_ int, in Operator) (*dataframe.DataFrame, error) {
		return in.Execute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return frames[0].Concat(frames[1:]...)
}

type distinctOp struct {
	input  Operator
	subset []string
}

func (o *distinctOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}

	names := o.subset
	if names == nil {
		names = df.Columns()
	}
	keys := make([]*series.Series, len(names))
	for i, name := range names {
		keys[i] = df.MustColumn(name)
	}

	groups, err := hashGroups(keys)
	if err != nil {
		return nil, err
	}
	firsts := make([]int, len(groups))
	for i, rows := range groups {
		firsts[i] = rows[0]
	}
	return df.Take(firsts)
}
