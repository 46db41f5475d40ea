// Package dataframe provides the typed table: an ordered collection of
// equal-length Series with unique names.
package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// DataFrame is an immutable table. Every transformation returns a new
// frame; chunk buffers are shared with inputs wherever the operation
// permits.
type DataFrame struct {
	columns map[string]*series.Series
	order   []string
}

// New creates a DataFrame, validating that names are unique and lengths
// match.
func New(cols ...*series.Series) (*DataFrame, error) {
	columns := make(map[string]*series.Series, len(cols))
	order := make([]string, 0, len(cols))

	length := -1
	for _, s := range cols {
		name := s.Name()
		if _, exists := columns[name]; exists {
			return nil, qerrors.DuplicateColumn("NewDataFrame", name)
		}
		if length >= 0 && s.Len() != length {
			return nil, qerrors.Schema("NewDataFrame",
				fmt.Sprintf("column %q has length %d, expected %d", name, s.Len(), length))
		}
		length = s.Len()
		columns[name] = s
		order = append(order, name)
	}

	return &DataFrame{columns: columns, order: order}, nil
}

// Empty returns a zero-column, zero-row frame.
func Empty() *DataFrame {
	return &DataFrame{columns: map[string]*series.Series{}}
}

// Columns returns the column names in display order.
func (df *DataFrame) Columns() []string {
	return append([]string(nil), df.order...)
}

// Width returns the number of columns.
func (df *DataFrame) Width() int {
	return len(df.order)
}

// Len returns the number of rows.
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Column returns the named series.
func (df *DataFrame) Column(name string) (*series.Series, bool) {
	s, ok := df.columns[name]
	return s, ok
}

// MustColumn returns the named series or panics; for internal callers
// that already validated the schema.
func (df *DataFrame) MustColumn(name string) *series.Series {
	s, ok := df.columns[name]
	if !ok {
		panic(fmt.Sprintf("dataframe: column %q vanished after schema validation", name))
	}
	return s
}

// HasColumn reports whether the column exists.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.columns[name]
	return ok
}

// Fields returns the schema as ordered Arrow fields.
func (df *DataFrame) Fields() []arrow.Field {
	fields := make([]arrow.Field, 0, len(df.order))
	for _, name := range df.order {
		fields = append(fields, arrow.Field{
			Name:     name,
			Type:     df.columns[name].DataType(),
			Nullable: true,
		})
	}
	return fields
}

// Select returns a frame with only the named columns, in the given
// order, sharing the underlying series.
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	cols := make([]*series.Series, 0, len(names))
	for _, name := range names {
		s, ok := df.columns[name]
		if !ok {
			return nil, qerrors.ColumnNotFound("Select", name)
		}
		cols = append(cols, s)
	}
	return New(cols...)
}

// Drop returns a frame without the named columns.
func (df *DataFrame) Drop(names ...string) (*DataFrame, error) {
	dropped := make(map[string]bool, len(names))
	for _, name := range names {
		dropped[name] = true
	}

	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		if !dropped[name] {
			cols = append(cols, df.columns[name])
		}
	}
	return New(cols...)
}

// WithColumn returns a frame with the series added, or replaced when a
// column of that name exists. The new column keeps its position when
// replacing, otherwise appends.
func (df *DataFrame) WithColumn(s *series.Series) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, qerrors.Schema("WithColumn",
			fmt.Sprintf("column %q has length %d, expected %d", s.Name(), s.Len(), df.Len()))
	}

	cols := make([]*series.Series, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			cols = append(cols, s)
			replaced = true
		} else {
			cols = append(cols, df.columns[name])
		}
	}
	if !replaced {
		cols = append(cols, s)
	}
	return New(cols...)
}

// Slice returns rows [offset, offset+length) of every column, zero-copy.
func (df *DataFrame) Slice(offset, length int) (*DataFrame, error) {
	if offset < 0 {
		offset = 0
	}
	if length < 0 {
		length = 0
	}
	if offset > df.Len() {
		offset = df.Len()
	}
	if offset+length > df.Len() {
		length = df.Len() - offset
	}

	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		s, err := df.columns[name].Slice(offset, length)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...)
}

// Concat appends the rows of other frames, zero-copy per column. All
// frames must share column names, order, and types.
func (df *DataFrame) Concat(others ...*DataFrame) (*DataFrame, error) {
	for _, o := range others {
		if o.Width() != df.Width() {
			return nil, qerrors.Schema("Concat",
				fmt.Sprintf("cannot concat %d-column frame onto %d-column frame", o.Width(), df.Width()))
		}
		for i, name := range df.order {
			if o.order[i] != name {
				return nil, qerrors.Schema("Concat",
					fmt.Sprintf("column %d is %q, expected %q", i, o.order[i], name))
			}
		}
	}

	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		parts := make([]*series.Series, 0, len(others))
		for _, o := range others {
			parts = append(parts, o.columns[name])
		}
		joined, err := df.columns[name].Concat(parts...)
		if err != nil {
			return nil, err
		}
		cols = append(cols, joined)
	}
	return New(cols...)
}

// Take gathers rows by index into a new frame. Negative indices emit
// null rows; join operators rely on this for unmatched sides.
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		s, err := df.columns[name].Take(indices)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...)
}

// FilterMask keeps rows where mask is true.
func (df *DataFrame) FilterMask(mask []bool) (*DataFrame, error) {
	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		s, err := df.columns[name].Filter(mask)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...)
}

// Series returns the columns in order.
func (df *DataFrame) Series() []*series.Series {
	cols := make([]*series.Series, 0, len(df.order))
	for _, name := range df.order {
		cols = append(cols, df.columns[name])
	}
	return cols
}

// Equal reports value equality including column order and null
// positions. Used by tests.
func (df *DataFrame) Equal(o *DataFrame) bool {
	if df.Width() != o.Width() || df.Len() != o.Len() {
		return false
	}
	for i, name := range df.order {
		if o.order[i] != name {
			return false
		}
		if !df.columns[name].Equal(o.columns[name]) {
			return false
		}
	}
	return true
}

// Release releases the underlying Arrow memory of every column.
func (df *DataFrame) Release() {
	for _, name := range df.order {
		df.columns[name].Release()
	}
}
