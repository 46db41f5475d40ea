package physical

import (
	"context"
	"sort"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/hash"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/parallel"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// hashJoinOp implements inner, left and full outer equality joins. One
// side is built into a hash table keyed by row hash and the other
// probes it, verifying candidates by exact key comparison. Inner joins
// build on the smaller side; outer joins build on the right. Rows with
// a null in any key column never match.
type hashJoinOp struct {
	left  Operator
	right Operator
	join  *logical.Join
	cfg   *config.Config
	pool  *parallel.Pool
}

// probeResult holds matched index pairs for one probe range. lidx and
// ridx are parallel; -1 marks the missing side of an outer row.
type probeResult struct {
	lidx    []int
	ridx    []int
	matched []bool
}

func (o *hashJoinOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	ldf, err := o.left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rdf, err := o.right.Execute(ctx)
	if err != nil {
		return nil, err
	}

	lk, rk, err := joinKeys(ldf, rdf, o.join.Opts.LeftOn, o.join.Opts.RightOn)
	if err != nil {
		return nil, err
	}
	lh, err := hash.Rows(lk)
	if err != nil {
		return nil, qerrors.Computation("Join", err.Error())
	}
	rh, err := hash.Rows(rk)
	if err != nil {
		return nil, qerrors.Computation("Join", err.Error())
	}

	how := o.join.Opts.How

	// Inner joins are symmetric, so the table goes on the smaller side.
	// Outer joins always build on the right; the unmatched-row
	// bookkeeping below assumes the left side is the probe side.
	swapped := how == logical.JoinInner && ldf.Len() < rdf.Len()
	bk, bh, bn := rk, rh, rdf.Len()
	pk, ph, pn := lk, lh, ldf.Len()
	if swapped {
		bk, bh, bn = lk, lh, ldf.Len()
		pk, ph, pn = rk, rh, rdf.Len()
	}

	table := make(map[uint64][]int, bn)
	for i := 0; i < bn; i++ {
		if hash.RowHasNull(bk, i) {
			continue
		}
		table[bh[i]] = append(table[bh[i]], i)
	}

	keepLeft := how == logical.JoinLeft || how == logical.JoinFull
	trackRight := how == logical.JoinFull

	probe := func(r parallel.Range) probeResult {
		res := probeResult{}
		if trackRight {
			res.matched = make([]bool, bn)
		}
		for i := r.Start; i < r.End; i++ {
			found := false
			if !hash.RowHasNull(pk, i) {
				for _, bi := range table[ph[i]] {
					if hash.RowsEqual(pk, i, bk, bi) {
						res.lidx = append(res.lidx, i)
						res.ridx = append(res.ridx, bi)
						found = true
						if trackRight {
							res.matched[bi] = true
						}
					}
				}
			}
			if !found && keepLeft {
				res.lidx = append(res.lidx, i)
				res.ridx = append(res.ridx, -1)
			}
		}
		return res
	}

	var res probeResult
	if pn < o.cfg.ParallelThreshold {
		res = probe(parallel.Range{Start: 0, End: pn})
	} else {
		parts, err := parallel.Run(o.pool, o.pool.Ranges(pn), func(_ int, r parallel.Range) (probeResult, error) {
			return probe(r), nil
		})
		if err != nil {
			return nil, err
		}
		if trackRight {
			res.matched = make([]bool, bn)
		}
		for _, p := range parts {
			res.lidx = append(res.lidx, p.lidx...)
			res.ridx = append(res.ridx, p.ridx...)
			for bi, m := range p.matched {
				if m {
					res.matched[bi] = true
				}
			}
		}
	}

	if trackRight {
		for bi := 0; bi < bn; bi++ {
			if !res.matched[bi] {
				res.lidx = append(res.lidx, -1)
				res.ridx = append(res.ridx, bi)
			}
		}
	}

	if swapped {
		res.lidx, res.ridx = res.ridx, res.lidx
	}
	return materializeJoin(ldf, rdf, o.join, res.lidx, res.ridx)
}

// crossJoinOp emits the cartesian product, left-major: every left row
// is paired with every right row before moving to the next left row.
type crossJoinOp struct {
	left  Operator
	right Operator
	join  *logical.Join
}

func (o *crossJoinOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	ldf, err := o.left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rdf, err := o.right.Execute(ctx)
	if err != nil {
		return nil, err
	}

	ln, rn := ldf.Len(), rdf.Len()
	lidx := make([]int, 0, ln*rn)
	ridx := make([]int, 0, ln*rn)
	for i := 0; i < ln; i++ {
		for j := 0; j < rn; j++ {
			lidx = append(lidx, i)
			ridx = append(ridx, j)
		}
	}
	return materializeJoin(ldf, rdf, o.join, lidx, ridx)
}

// asofJoinOp matches every left row with at most one right row: the
// nearest right key at or before the left key (backward) or at or
// after it (forward). Null left keys match nothing; null right keys
// are never candidates. Left row order is preserved.
type asofJoinOp struct {
	left  Operator
	right Operator
	join  *logical.Join
}

func (o *asofJoinOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	ldf, err := o.left.Execute(ctx)
	if err != nil {
		return nil, err
	}
	rdf, err := o.right.Execute(ctx)
	if err != nil {
		return nil, err
	}

	lk, rk, err := joinKeys(ldf, rdf, o.join.Opts.LeftOn, o.join.Opts.RightOn)
	if err != nil {
		return nil, err
	}
	lkey, rkey := lk[0], rk[0]

	type entry struct {
		val any
		row int
	}
	entries := make([]entry, 0, rkey.Len())
	for i := 0; i < rkey.Len(); i++ {
		if v, ok := rkey.Get(i); ok {
			entries = append(entries, entry{val: v, row: i})
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return series.CompareBoxed(entries[a].val, entries[b].val) < 0
	})

	forward := o.join.Opts.Strategy == logical.AsofForward
	ln := ldf.Len()
	lidx := make([]int, ln)
	ridx := make([]int, ln)
	for i := 0; i < ln; i++ {
		lidx[i] = i
		ridx[i] = -1
		v, ok := lkey.Get(i)
		if !ok {
			continue
		}
		if forward {
			// First right key >= the left key.
			pos := sort.Search(len(entries), func(k int) bool {
				return series.CompareBoxed(entries[k].val, v) >= 0
			})
			if pos < len(entries) {
				ridx[i] = entries[pos].row
			}
		} else {
			// Last right key <= the left key.
			pos := sort.Search(len(entries), func(k int) bool {
				return series.CompareBoxed(entries[k].val, v) > 0
			})
			if pos > 0 {
				ridx[i] = entries[pos-1].row
			}
		}
	}
	return materializeJoin(ldf, rdf, o.join, lidx, ridx)
}

// joinKeys resolves both sides' key columns and casts each pair to its
// promoted common type. Right keys are renamed to the left names so
// both sides hash with identical column salts.
func joinKeys(ldf, rdf *dataframe.DataFrame, leftOn, rightOn []string) ([]*series.Series, []*series.Series, error) {
	lk := make([]*series.Series, len(leftOn))
	rk := make([]*series.Series, len(rightOn))
	for i := range leftOn {
		lcol, ok := ldf.Column(leftOn[i])
		if !ok {
			return nil, nil, qerrors.ColumnNotFound("Join", leftOn[i])
		}
		rcol, ok := rdf.Column(rightOn[i])
		if !ok {
			return nil, nil, qerrors.ColumnNotFound("Join", rightOn[i])
		}
		common, err := expr.Promote(expr.OpEq, lcol.DataType(), rcol.DataType())
		if err != nil {
			return nil, nil, err
		}
		if lk[i], err = lcol.Cast(common); err != nil {
			return nil, nil, err
		}
		cast, err := rcol.Cast(common)
		if err != nil {
			return nil, nil, err
		}
		rk[i] = cast.Rename(leftOn[i])
	}
	return lk, rk, nil
}

// materializeJoin gathers both sides through the matched index pairs
// and renames surviving right columns per the join's output schema.
func materializeJoin(ldf, rdf *dataframe.DataFrame, j *logical.Join, lidx, ridx []int) (*dataframe.DataFrame, error) {
	out, err := ldf.Take(lidx)
	if err != nil {
		return nil, err
	}
	cols := out.Series()
	src, dst := j.RightColumns()
	for i := range src {
		col, ok := rdf.Column(src[i])
		if !ok {
			return nil, qerrors.ColumnNotFound("Join", src[i])
		}
		taken, err := col.Take(ridx)
		if err != nil {
			return nil, err
		}
		cols = append(cols, taken.Rename(dst[i]))
	}
	return dataframe.New(cols...)
}
