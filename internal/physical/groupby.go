package physical

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/hash"
	"github.com/quiverdata/quiver/internal/parallel"
	"github.com/quiverdata/quiver/internal/series"
)

// groupByOp evaluates key expressions once over the whole frame, hash
// partitions row indices by key tuple, then reduces every group's rows
// with the aggregation expressions. Output rows keep first-seen key
// order; groups are reduced in parallel.
type groupByOp struct {
	input Operator
	keys  []expr.Expr
	aggs  []expr.Expr
	cfg   *config.Config
	pool  *parallel.Pool
}

// groupRow is one reduced output row: key tuple plus aggregate values.
type groupRow struct {
	keyVals []any
	aggVals []any
}

func (o *groupByOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}

	keyCols := make([]*series.Series, len(o.keys))
	for i, k := range o.keys {
		if keyCols[i], err = expr.Evaluate(k, df); err != nil {
			return nil, err
		}
	}

	groups, err := o.partition(keyCols)
	if err != nil {
		return nil, err
	}

	// One result row per group; each worker reduces a whole group.
	rows, err := parallel.Run(o.pool, groups, func(_ int, rows []int) (groupRow, error) {
		res := groupRow{keyVals: make([]any, len(keyCols)), aggVals: make([]any, len(o.aggs))}
		for i, kc := range keyCols {
			v, _ := kc.Get(rows[0])
			res.keyVals[i] = v
		}
		sub, err := df.Take(rows)
		if err != nil {
			return groupRow{}, err
		}
		for i, a := range o.aggs {
			out, err := expr.Evaluate(a, sub)
			if err != nil {
				return groupRow{}, err
			}
			v, _ := out.Get(0)
			res.aggVals[i] = v
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	types := make(map[string]arrow.DataType, df.Width())
	for _, f := range df.Fields() {
		types[f.Name] = f.Type
	}

	cols := make([]*series.Series, 0, len(o.keys)+len(o.aggs))
	for i, k := range o.keys {
		vals := make([]any, len(rows))
		for g, r := range rows {
			vals[g] = r.keyVals[i]
		}
		col, err := series.FromBoxed(expr.OutputName(k), keyCols[i].DataType(), vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	for i, a := range o.aggs {
		dt, err := expr.Resolve(a, types)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(rows))
		for g, r := range rows {
			vals[g] = r.aggVals[i]
		}
		col, err := series.FromBoxed(expr.OutputName(a), dt, vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return dataframe.New(cols...)
}

// partition clusters row indices by key tuple. Large frames hash
// partition per range in parallel and merge; order stays first-seen.
func (o *groupByOp) partition(keyCols []*series.Series) ([][]int, error) {
	n := 0
	if len(keyCols) > 0 {
		n = keyCols[0].Len()
	}
	if n < o.cfg.ParallelThreshold {
		return hashGroups(keyCols)
	}

	hashes, err := hash.Rows(keyCols)
	if err != nil {
		return nil, err
	}
	ranges := o.pool.Ranges(n)
	parts, err := parallel.Run(o.pool, ranges, func(_ int, r parallel.Range) ([][]int, error) {
		return hash.GroupsByHash(keyCols, hashes, r.Start, r.End), nil
	})
	if err != nil {
		return nil, err
	}
	return hash.MergeGroups(keyCols, hashes, parts), nil
}

func hashGroups(keys []*series.Series) ([][]int, error) {
	return hash.Groups(keys)
}
