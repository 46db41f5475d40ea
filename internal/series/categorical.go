package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CategoricalType is the dictionary encoding used for categorical
// columns: int32 codes over an ordered set of unique strings.
var CategoricalType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
}

// NewCategorical builds a dictionary-encoded string Series. The
// dictionary holds unique values in first-seen order.
func NewCategorical(name string, values []string) *Series {
	return NewCategoricalWithNulls(name, values, nil)
}

// NewCategoricalWithNulls builds a categorical Series with a validity
// mask (true = valid; nil mask = all valid).
func NewCategoricalWithNulls(name string, values []string, valid []bool) *Series {
	mem := memory.NewGoAllocator()
	b := array.NewDictionaryBuilder(mem, CategoricalType).(*array.BinaryDictionaryBuilder)
	defer b.Release()

	for i, v := range values {
		if valid != nil && !valid[i] {
			b.AppendNull()
			continue
		}
		if err := b.AppendString(v); err != nil {
			panic("series: categorical append: " + err.Error())
		}
	}

	return FromArray(name, b.NewArray())
}

// IsCategorical reports whether the series is dictionary-encoded.
func (s *Series) IsCategorical() bool {
	return s.dtype.ID() == arrow.DICTIONARY
}

// CategoricalCodes returns the integer code of every row (-1 for null)
// and the shared dictionary when all chunks agree on one dictionary.
// Chunks with diverging dictionaries return ok=false; callers then fall
// back to comparing materialized strings.
func (s *Series) CategoricalCodes() (codes []int32, dict *array.String, ok bool) {
	if !s.IsCategorical() {
		return nil, nil, false
	}

	codes = make([]int32, 0, s.length)
	for _, c := range s.chunks {
		d := c.(*array.Dictionary)
		chunkDict := d.Dictionary().(*array.String)
		if dict == nil {
			dict = chunkDict
		} else if !sameDictionary(dict, chunkDict) {
			return nil, nil, false
		}
		for i := 0; i < d.Len(); i++ {
			if d.IsNull(i) {
				codes = append(codes, -1)
			} else {
				codes = append(codes, int32(d.GetValueIndex(i)))
			}
		}
	}
	return codes, dict, true
}

func sameDictionary(a, b *array.String) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Value(i) != b.Value(i) {
			return false
		}
	}
	return true
}
