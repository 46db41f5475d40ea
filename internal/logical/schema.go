package logical

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/qerrors"
)

// Schema is the ordered column layout a plan node produces. Names are
// unique; every constructor that could violate that fails at build
// time instead of at execution.
type Schema struct {
	fields []arrow.Field
	index  map[string]int
}

// NewSchema builds a schema, rejecting duplicate column names.
func NewSchema(fields []arrow.Field) (*Schema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := index[f.Name]; dup {
			return nil, qerrors.DuplicateColumn("Schema", f.Name)
		}
		index[f.Name] = i
	}
	return &Schema{fields: fields, index: index}, nil
}

// Fields returns the ordered fields. Callers must not mutate the slice.
func (s *Schema) Fields() []arrow.Field { return s.fields }

// Len returns the column count.
func (s *Schema) Len() int { return len(s.fields) }

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks a column up by name.
func (s *Schema) Field(name string) (arrow.Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return arrow.Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether the schema contains the column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Types returns a name-to-type map for expression resolution.
func (s *Schema) Types() map[string]arrow.DataType {
	types := make(map[string]arrow.DataType, len(s.fields))
	for _, f := range s.fields {
		types[f.Name] = f.Type
	}
	return types
}

// Equal reports whether two schemas have identical names and types in
// the same order.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i, f := range s.fields {
		if f.Name != o.fields[i].Name || !arrow.TypeEqual(f.Type, o.fields[i].Type) {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
