package source

import (
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// Parquet reads a Parquet file as a scan source. Column projection is
// pushed into the reader; each row group becomes one batch.
type Parquet struct {
	path string
}

// NewParquet creates a Parquet source over a file path.
func NewParquet(path string) *Parquet {
	return &Parquet{path: path}
}

func (p *Parquet) Name() string { return filepath.Base(p.path) }

func (p *Parquet) Fields() ([]arrow.Field, error) {
	pf, closer, err := p.open()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	fields := make([]arrow.Field, 0, len(pf.Schema().Fields()))
	for _, f := range pf.Schema().Fields() {
		fields = append(fields, arrow.Field{
			Name:     f.Name(),
			Type:     parquetKindToArrow(f.Type().Kind()),
			Nullable: true,
		})
	}
	return fields, nil
}

func (p *Parquet) Open(projection []string, _ expr.Expr) ([]*dataframe.DataFrame, error) {
	pf, closer, err := p.open()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	schema := pf.Schema()
	names := projection
	if names == nil {
		for _, f := range schema.Fields() {
			names = append(names, f.Name())
		}
	}

	// Leaf index per column name; flat schemas only.
	leafIndex := make(map[string]int)
	for i, col := range schema.Columns() {
		if len(col) == 1 {
			leafIndex[col[0]] = i
		}
	}

	types := make([]arrow.DataType, len(names))
	indices := make([]int, len(names))
	for i, name := range names {
		idx, ok := leafIndex[name]
		if !ok {
			return nil, qerrors.WrapSource(p.Name(),
				errors.Errorf("column %q not found in parquet schema", name))
		}
		indices[i] = idx
		types[i] = arrow.BinaryTypes.String
		for _, f := range schema.Fields() {
			if f.Name() == name {
				types[i] = parquetKindToArrow(f.Type().Kind())
			}
		}
	}

	var batches []*dataframe.DataFrame
	for _, rg := range pf.RowGroups() {
		df, err := p.readRowGroup(rg, names, indices, types)
		if err != nil {
			return nil, err
		}
		batches = append(batches, df)
	}
	if len(batches) == 0 {
		cols := make([]*series.Series, len(names))
		for i, name := range names {
			if cols[i], err = series.Zero(name, types[i]); err != nil {
				return nil, qerrors.WrapSource(p.Name(), err)
			}
		}
		df, err := dataframe.New(cols...)
		if err != nil {
			return nil, err
		}
		batches = append(batches, df)
	}
	return batches, nil
}

func (p *Parquet) readRowGroup(rg parquet.RowGroup, names []string, indices []int, types []arrow.DataType) (*dataframe.DataFrame, error) {
	vals := make([][]any, len(names))
	for i := range vals {
		vals[i] = make([]any, 0, rg.NumRows())
	}

	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 1000)
	for {
		n, err := rows.ReadRows(buf)
		if err != nil && err != io.EOF {
			return nil, qerrors.WrapSource(p.Name(), errors.Wrap(err, "reading parquet rows"))
		}
		if n == 0 {
			break
		}
		for _, row := range buf[:n] {
			for i, colIdx := range indices {
				if colIdx < len(row) {
					vals[i] = append(vals[i], boxParquetValue(row[colIdx], types[i]))
				} else {
					vals[i] = append(vals[i], nil)
				}
			}
		}
	}

	cols := make([]*series.Series, len(names))
	for i, name := range names {
		col, err := series.FromBoxed(name, types[i], vals[i])
		if err != nil {
			return nil, qerrors.WrapSource(p.Name(), err)
		}
		cols[i] = col
	}
	return dataframe.New(cols...)
}

func (p *Parquet) open() (*parquet.File, io.Closer, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, nil, qerrors.WrapSource(p.Name(), errors.Wrap(err, "opening parquet"))
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, qerrors.WrapSource(p.Name(), errors.Wrap(err, "stat parquet"))
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, nil, qerrors.WrapSource(p.Name(), errors.Wrap(err, "opening parquet file"))
	}
	return pf, f, nil
}

func parquetKindToArrow(kind parquet.Kind) arrow.DataType {
	switch kind {
	case parquet.Boolean:
		return arrow.FixedWidthTypes.Boolean
	case parquet.Int32:
		return arrow.PrimitiveTypes.Int32
	case parquet.Int64:
		return arrow.PrimitiveTypes.Int64
	case parquet.Float:
		return arrow.PrimitiveTypes.Float32
	case parquet.Double:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func boxParquetValue(v parquet.Value, dt arrow.DataType) any {
	if v.IsNull() {
		return nil
	}
	switch dt.ID() {
	case arrow.BOOL:
		return v.Boolean()
	case arrow.INT32:
		return v.Int32()
	case arrow.INT64:
		return v.Int64()
	case arrow.FLOAT32:
		return v.Float()
	case arrow.FLOAT64:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

// WriteParquet writes a frame to a Parquet file. All columns are
// written as optional leaves so nulls round-trip.
func WriteParquet(path string, df *dataframe.DataFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating parquet")
	}
	defer f.Close()
	if err := writeParquet(f, df); err != nil {
		return err
	}
	return errors.Wrap(f.Close(), "closing parquet")
}

func writeParquet(w io.Writer, df *dataframe.DataFrame) error {
	group := make(parquet.Group)
	for _, col := range df.Series() {
		node, err := arrowToParquetNode(col.DataType())
		if err != nil {
			return err
		}
		group[col.Name()] = parquet.Optional(node)
	}
	schema := parquet.NewSchema("frame", group)

	gw := parquet.NewGenericWriter[map[string]any](w, schema, parquet.Compression(&parquet.Snappy))

	const batch = 1000
	cols := df.Series()
	rows := make([]map[string]any, 0, batch)
	for i := 0; i < df.Len(); i++ {
		rec := make(map[string]any, len(cols))
		for _, col := range cols {
			if v, ok := col.Get(i); ok {
				rec[col.Name()] = v
			}
		}
		rows = append(rows, rec)
		if len(rows) == batch {
			if _, err := gw.Write(rows); err != nil {
				return errors.Wrap(err, "writing parquet rows")
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := gw.Write(rows); err != nil {
			return errors.Wrap(err, "writing parquet rows")
		}
	}
	return errors.Wrap(gw.Close(), "closing parquet writer")
}

func arrowToParquetNode(dt arrow.DataType) (parquet.Node, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return parquet.Leaf(parquet.BooleanType), nil
	case arrow.INT32:
		return parquet.Leaf(parquet.Int32Type), nil
	case arrow.INT64:
		return parquet.Leaf(parquet.Int64Type), nil
	case arrow.FLOAT32:
		return parquet.Leaf(parquet.FloatType), nil
	case arrow.FLOAT64:
		return parquet.Leaf(parquet.DoubleType), nil
	case arrow.STRING:
		return parquet.Leaf(parquet.ByteArrayType), nil
	default:
		return nil, errors.Errorf("unsupported parquet column type %s", dt)
	}
}
