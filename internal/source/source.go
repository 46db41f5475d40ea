// Package source defines the data-source contract the engine scans
// from, plus the built-in in-memory, CSV, and Parquet implementations.
//
// A source advertises its schema up front and produces column batches
// on Open. Open receives the scan's projected columns and a predicate
// hint; a source may use both to reduce I/O, or ignore them. The hint
// is best-effort only: the engine re-applies filters after the scan, so
// a source that returns extra rows is still correct. Projection is not
// optional the same way; a source that cannot project returns full rows
// and the scan narrows them.
package source

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/dataframe"
	"github.com/quiverdata/quiver/internal/expr"
	"github.com/quiverdata/quiver/internal/qerrors"
)

// Source produces frames for a scan.
type Source interface {
	// Name identifies the source in errors and Explain output.
	Name() string
	// Fields returns the full schema, before projection.
	Fields() ([]arrow.Field, error)
	// Open materializes the source as one or more batches. A nil
	// projection means all columns. Batches share one schema.
	Open(projection []string, predicate expr.Expr) ([]*dataframe.DataFrame, error)
}

// Memory wraps an existing frame as a source. Projection is honored;
// the predicate hint is ignored.
type Memory struct {
	name string
	df   *dataframe.DataFrame
}

// NewMemory creates an in-memory source over a frame.
func NewMemory(name string, df *dataframe.DataFrame) *Memory {
	return &Memory{name: name, df: df}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Fields() ([]arrow.Field, error) {
	return m.df.Fields(), nil
}

func (m *Memory) Open(projection []string, _ expr.Expr) ([]*dataframe.DataFrame, error) {
	if projection == nil {
		return []*dataframe.DataFrame{m.df}, nil
	}
	out, err := m.df.Select(projection...)
	if err != nil {
		return nil, qerrors.WrapSource(m.name, err)
	}
	return []*dataframe.DataFrame{out}, nil
}
