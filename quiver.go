// Package quiver is a lazy, columnar query engine. Frames are built
// from Arrow-backed series; queries are composed as logical plans,
// optimized, and executed in parallel on Collect.
//
// This package is the sole public API. Build a LazyFrame with Scan,
// ScanCSV, ScanParquet, or FromFrame, chain operations, then Collect.
package quiver

import (
	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/series"
	"github.com/quiverdata/quiver/internal/source"
)

// DataFrame is a materialized columnar frame.
type DataFrame = dataframe.DataFrame

// Series is a single named, typed column.
type Series = series.Series

// Expr is a query expression. Build expressions with Col and Lit and
// compose them with their fluent methods.
type Expr = expr.Expr

// SortField orders one sort key.
type SortField = expr.SortField

// Config tunes parallelism and optimizer passes.
type Config = config.Config

// JoinOptions configures Join.
type JoinOptions = logical.JoinOptions

// JoinType selects the join flavor.
type JoinType = logical.JoinType

// AsofStrategy picks the as-of match direction.
type AsofStrategy = logical.AsofStrategy

// Source is the contract scan inputs implement.
type Source = source.Source

const (
	JoinInner = logical.JoinInner
	JoinLeft  = logical.JoinLeft
	JoinRight = logical.JoinRight
	JoinFull  = logical.JoinFull
	JoinCross = logical.JoinCross
	JoinAsof  = logical.JoinAsof

	AsofBackward = logical.AsofBackward
	AsofForward  = logical.AsofForward
)

// Col references a column by name.
func Col(name string) Expr { return expr.Col(name) }

// Lit creates a literal. Plain ints normalize to int64; nil is the
// null literal and adopts the type of its sibling operand.
func Lit(value any) Expr { return expr.Lit(value) }

// NewSeries creates a column from a typed slice.
func NewSeries[T any](name string, values []T) *Series {
	return series.New(name, values)
}

// NewSeriesWithNulls creates a column with a validity mask; false
// entries are null.
func NewSeriesWithNulls[T any](name string, values []T, valid []bool) *Series {
	return series.NewWithNulls(name, values, valid)
}

// Frame assembles a DataFrame from columns of equal length.
func Frame(cols ...*Series) (*DataFrame, error) {
	return dataframe.New(cols...)
}

// Scan starts a lazy query over any source.
func Scan(src Source) *LazyFrame {
	node, err := logical.NewScan(src)
	if err != nil {
		return &LazyFrame{err: err}
	}
	return &LazyFrame{node: node}
}

// FromFrame starts a lazy query over an in-memory frame.
func FromFrame(df *DataFrame) *LazyFrame {
	return Scan(source.NewMemory("memory", df))
}

// ScanCSV starts a lazy query over a CSV file.
func ScanCSV(path string, opts ...source.CSVOptions) *LazyFrame {
	return Scan(source.NewCSV(path, opts...))
}

// ScanParquet starts a lazy query over a Parquet file.
func ScanParquet(path string) *LazyFrame {
	return Scan(source.NewParquet(path))
}

// ReadCSV eagerly reads a CSV file.
func ReadCSV(path string, opts ...source.CSVOptions) (*DataFrame, error) {
	return ScanCSV(path, opts...).Collect()
}

// ReadParquet eagerly reads a Parquet file.
func ReadParquet(path string) (*DataFrame, error) {
	return ScanParquet(path).Collect()
}

// WriteCSV writes a frame to a CSV file.
func WriteCSV(path string, df *DataFrame) error {
	return source.WriteCSVFile(path, df)
}

// WriteParquet writes a frame to a Parquet file.
func WriteParquet(path string, df *DataFrame) error {
	return source.WriteParquet(path, df)
}

// DefaultConfig returns the built-in tuning defaults.
func DefaultConfig() Config { return config.Default() }

// SetConfig replaces the process-wide configuration.
func SetConfig(c Config) { config.SetGlobal(c) }

// CurrentConfig returns the process-wide configuration.
func CurrentConfig() Config { return config.Global() }
