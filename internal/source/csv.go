package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/qerrors"
	"github.com/quiverdata/quiver/internal/series"
)

// CSVOptions configures CSV reading and writing.
type CSVOptions struct {
	// Delimiter is the field separator. Defaults to ','.
	Delimiter rune
	// Header controls whether the first row is column names. Without a
	// header, columns are named column_0, column_1, and so on.
	Header bool
	// Comment, when non-zero, marks lines to skip on read.
	Comment rune
}

// DefaultCSVOptions returns the standard comma-separated, headered form.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Delimiter: ',', Header: true}
}

// CSV reads a CSV file as a scan source. Column types are inferred
// from the data: bool, then int64, then float64, then string. Empty
// cells are null. The file is read once and cached.
type CSV struct {
	path string
	opts CSVOptions
	df   *dataframe.DataFrame
}

// NewCSV creates a CSV source over a file path.
func NewCSV(path string, opts ...CSVOptions) *CSV {
	opt := DefaultCSVOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	return &CSV{path: path, opts: opt}
}

func (c *CSV) Name() string { return filepath.Base(c.path) }

func (c *CSV) Fields() ([]arrow.Field, error) {
	df, err := c.frame()
	if err != nil {
		return nil, err
	}
	return df.Fields(), nil
}

func (c *CSV) Open(projection []string, _ expr.Expr) ([]*dataframe.DataFrame, error) {
	df, err := c.frame()
	if err != nil {
		return nil, err
	}
	if projection != nil {
		if df, err = df.Select(projection...); err != nil {
			return nil, qerrors.WrapSource(c.Name(), err)
		}
	}
	return []*dataframe.DataFrame{df}, nil
}

func (c *CSV) frame() (*dataframe.DataFrame, error) {
	if c.df != nil {
		return c.df, nil
	}
	f, err := os.Open(c.path)
	if err != nil {
		return nil, qerrors.WrapSource(c.Name(), errors.Wrap(err, "opening csv"))
	}
	defer f.Close()

	df, err := ReadCSV(f, c.opts)
	if err != nil {
		return nil, qerrors.WrapSource(c.Name(), err)
	}
	c.df = df
	return df, nil
}

// ReadCSV parses CSV data into a frame, inferring column types.
func ReadCSV(r io.Reader, opts ...CSVOptions) (*dataframe.DataFrame, error) {
	opt := DefaultCSVOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Delimiter
	if opt.Comment != 0 {
		cr.Comment = opt.Comment
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) == 0 {
		return dataframe.Empty(), nil
	}

	var headers []string
	var rows [][]string
	if opt.Header {
		headers = records[0]
		rows = records[1:]
	} else {
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		rows = records
	}

	cols := make([]*series.Series, len(headers))
	for i, name := range headers {
		vals := make([]string, len(rows))
		for j, row := range rows {
			if i < len(row) {
				vals[j] = row[i]
			}
		}
		if cols[i], err = inferColumn(name, vals); err != nil {
			return nil, err
		}
	}
	return dataframe.New(cols...)
}

// inferColumn picks the narrowest type that parses every non-empty
// cell, in the order bool, int64, float64, string. Empty cells become
// nulls; an all-empty column is a null string column.
func inferColumn(name string, vals []string) (*series.Series, error) {
	canBool, canInt, canFloat := true, true, true
	empty := true
	for _, v := range vals {
		if v == "" {
			continue
		}
		empty = false
		lower := strings.ToLower(v)
		if canBool && lower != "true" && lower != "false" {
			canBool = false
		}
		if canInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				canInt = false
			}
		}
		if canFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				canFloat = false
			}
		}
	}

	valid := make([]bool, len(vals))
	for i, v := range vals {
		valid[i] = v != ""
	}

	switch {
	case empty:
		return series.NewWithNulls(name, make([]string, len(vals)), valid), nil
	case canBool:
		data := make([]bool, len(vals))
		for i, v := range vals {
			data[i] = strings.EqualFold(v, "true")
		}
		return series.NewWithNulls(name, data, valid), nil
	case canInt:
		data := make([]int64, len(vals))
		for i, v := range vals {
			if valid[i] {
				data[i], _ = strconv.ParseInt(v, 10, 64)
			}
		}
		return series.NewWithNulls(name, data, valid), nil
	case canFloat:
		data := make([]float64, len(vals))
		for i, v := range vals {
			if valid[i] {
				data[i], _ = strconv.ParseFloat(v, 64)
			}
		}
		return series.NewWithNulls(name, data, valid), nil
	default:
		return series.NewWithNulls(name, vals, valid), nil
	}
}

// WriteCSV writes a frame as CSV. Nulls render as empty cells.
func WriteCSV(w io.Writer, df *dataframe.DataFrame, opts ...CSVOptions) error {
	opt := DefaultCSVOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	cw := csv.NewWriter(w)
	cw.Comma = opt.Delimiter
	defer cw.Flush()

	if opt.Header {
		if err := cw.Write(df.Columns()); err != nil {
			return errors.Wrap(err, "writing csv header")
		}
	}

	cols := df.Series()
	row := make([]string, len(cols))
	for i := 0; i < df.Len(); i++ {
		for j, col := range cols {
			row[j] = cellString(col, i)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing csv row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// WriteCSVFile writes a frame to a CSV file path.
func WriteCSVFile(path string, df *dataframe.DataFrame, opts ...CSVOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating csv")
	}
	defer f.Close()
	if err := WriteCSV(f, df, opts...); err != nil {
		return err
	}
	return errors.Wrap(f.Close(), "closing csv")
}

func cellString(col *series.Series, i int) string {
	v, ok := col.Get(i)
	if !ok {
		return ""
	}
	switch n := v.(type) {
	case bool:
		return strconv.FormatBool(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}
