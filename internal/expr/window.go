package expr

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/hash"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// evalWindow evaluates the inner expression once per partition and maps
// the results back onto the original row order, so the output length
// always equals the frame length. A length-1 inner result (an
// aggregation) broadcasts over its partition; a full-length result
// scatters element-wise.
func evalWindow(w *WindowExpr, df *dataframe.DataFrame) (*series.Series, error) {
	if len(w.partitionBy) == 0 {
		return nil, qerrors.Schema("Evaluate", "window expression requires at least one partition key")
	}

	keys := make([]*series.Series, len(w.partitionBy))
	for i, p := range w.partitionBy {
		s, err := eval(p, df)
		if err != nil {
			return nil, err
		}
		keys[i] = s
	}

	groups, err := hash.Groups(keys)
	if err != nil {
		return nil, err
	}

	var orderKeys []*series.Series
	var orderOpts []series.SortKey
	for _, f := range w.orderBy {
		s, err := eval(f.Expr, df)
		if err != nil {
			return nil, err
		}
		orderKeys = append(orderKeys, s)
		orderOpts = append(orderOpts, series.SortKey{Descending: f.Descending, NullsFirst: f.NullsFirst})
	}

	out := make([]any, df.Len())
	for _, rows := range groups {
		if len(orderKeys) > 0 {
			sort.SliceStable(rows, func(a, b int) bool {
				return series.CompareRows(orderKeys, orderOpts, rows[a], rows[b]) < 0
			})
		}
		sub, err := df.Take(rows)
		if err != nil {
			return nil, err
		}
		res, err := eval(w.inner, sub)
		if err != nil {
			return nil, err
		}
		switch res.Len() {
		case 1:
			v, _ := res.Get(0)
			for _, r := range rows {
				out[r] = v
			}
		case len(rows):
			for j, r := range rows {
				v, _ := res.Get(j)
				out[r] = v
			}
		default:
			return nil, qerrors.Computation("Evaluate",
				fmt.Sprintf("window result length %d does not match partition size %d", res.Len(), len(rows)))
		}
	}

	dtype, err := Resolve(w.inner, frameSchema(df))
	if err != nil {
		return nil, err
	}
	b, err := series.NewBuilder(memory.NewGoAllocator(), dtype)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(len(out))
	for _, v := range out {
		if err := series.AppendBoxed(b, v); err != nil {
			return nil, err
		}
	}
	return series.FromArray(w.String(), b.NewArray()), nil
}
