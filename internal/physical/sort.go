package physical

import (
	"context"
	"sort"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/parallel"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// sortOp orders rows by the key expressions. Small frames use a single
// stable sort; large frames use a sample sort whose result is identical
// to the serial stable sort.
type sortOp struct {
	input Operator
	keys  []expr.SortField
	cfg   *config.Config
	pool  *parallel.Pool
}

func (o *sortOp) Execute(ctx context.Context) (*dataframe.DataFrame, error) {
	df, err := o.input.Execute(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]*series.Series, len(o.keys))
	opts := make([]series.SortKey, len(o.keys))
	for i, k := range o.keys {
		s, err := expr.Evaluate(k.Expr, df)
		if err != nil {
			return nil, err
		}
		if s.Len() != df.Len() {
			return nil, qerrors.Computation("Sort", "sort key length does not match frame length")
		}
		keys[i] = s
		opts[i] = series.SortKey{Descending: k.Descending, NullsFirst: k.NullsFirst}
	}

	n := df.Len()
	var perm []int
	if n < o.cfg.SortParallelThreshold || o.pool.Workers() < 2 {
		perm = series.SortIndices(keys, opts)
	} else {
		if perm, err = o.sampleSort(keys, opts, n); err != nil {
			return nil, err
		}
	}
	return df.Take(perm)
}

// sampleSort partitions rows into ordered buckets around sampled
// splitters, then stable sorts each bucket in parallel. Equal rows
// always land in the same bucket and buckets keep original row order,
// so the concatenated result matches a serial stable sort.
func (o *sortOp) sampleSort(keys []*series.Series, opts []series.SortKey, n int) ([]int, error) {
	w := o.pool.Workers()

	// Oversample, then keep w-1 evenly spaced splitters.
	sampleCount := w * 16
	if sampleCount > n {
		sampleCount = n
	}
	samples := make([]int, sampleCount)
	for i := range samples {
		samples[i] = i * n / sampleCount
	}
	sort.SliceStable(samples, func(a, b int) bool {
		return series.CompareRows(keys, opts, samples[a], samples[b]) < 0
	})
	splitters := make([]int, 0, w-1)
	for i := 1; i < w; i++ {
		splitters = append(splitters, samples[i*len(samples)/w])
	}

	// Bucket index is the count of splitters strictly below the row, so
	// equal rows share a bucket regardless of which range saw them.
	ranges := o.pool.Ranges(n)
	parts, err := parallel.Run(o.pool, ranges, func(_ int, r parallel.Range) ([][]int, error) {
		local := make([][]int, w)
		for i := r.Start; i < r.End; i++ {
			b := sort.Search(len(splitters), func(k int) bool {
				return series.CompareRows(keys, opts, splitters[k], i) >= 0
			})
			local[b] = append(local[b], i)
		}
		return local, nil
	})
	if err != nil {
		return nil, err
	}

	buckets := make([][]int, w)
	for _, local := range parts {
		for b := range local {
			buckets[b] = append(buckets[b], local[b]...)
		}
	}

	if _, err := parallel.Run(o.pool, buckets, func(_ int, b []int) (struct{}, error) {
		sort.SliceStable(b, func(x, y int) bool {
			return series.CompareRows(keys, opts, b[x], b[y]) < 0
		})
		return struct{}{}, nil
	}); err != nil {
		return nil, err
	}

	perm := make([]int, 0, n)
	for _, b := range buckets {
		perm = append(perm, b...)
	}
	return perm, nil
}
