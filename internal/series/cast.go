package series

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/quiverdata/quiver/internal/qerrors"
)

// Cast converts the series to the target logical type, truncating or
// promoting per standard numeric conversion rules. Unsupported target
// combinations fail with a computation error. Nulls stay null.
func (s *Series) Cast(to arrow.DataType) (*Series, error) {
	if arrow.TypeEqual(s.dtype, to) {
		return s, nil
	}

	fromNumeric := isNumeric(s.dtype)
	switch {
	case fromNumeric && isNumeric(to):
		return s.castNumeric(to)
	case fromNumeric && to.ID() == arrow.STRING:
		return s.castToString()
	case s.dtype.ID() == arrow.STRING && isNumeric(to):
		return s.castStringToNumeric(to)
	case s.dtype.ID() == arrow.DICTIONARY && to.ID() == arrow.STRING:
		// Materialize a categorical back into plain strings.
		return s.Apply(s.name, to, func(v any) (any, error) { return v, nil })
	case s.dtype.ID() == arrow.BOOL && isNumeric(to):
		return s.castBoolToNumeric(to)
	default:
		return nil, unsupportedCast(s.dtype.String(), to.String())
	}
}

func unsupportedCast(from, to string) error {
	return qerrors.UnsupportedCast("Cast", from, to)
}

func castParseError(value string, to arrow.DataType) error {
	return qerrors.Computation("Cast", fmt.Sprintf("cannot parse %q as %s", value, to))
}

func isNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT32, arrow.INT64, arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}

// asFloat widens any boxed numeric to float64.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		panic(fmt.Sprintf("series: not numeric: %T", v))
	}
}

// asInt truncates any boxed numeric to int64.
func asInt(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		panic(fmt.Sprintf("series: not numeric: %T", v))
	}
}

func (s *Series) castNumeric(to arrow.DataType) (*Series, error) {
	return s.Apply(s.name, to, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		switch to.ID() {
		case arrow.INT32:
			return int32(asInt(v)), nil
		case arrow.INT64:
			return asInt(v), nil
		case arrow.FLOAT32:
			return float32(asFloat(v)), nil
		case arrow.FLOAT64:
			return asFloat(v), nil
		default:
			return nil, unsupportedCast(s.dtype.String(), to.String())
		}
	})
}

func (s *Series) castToString() (*Series, error) {
	return s.Apply(s.name, arrow.BinaryTypes.String, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		switch n := v.(type) {
		case int32:
			return strconv.FormatInt(int64(n), 10), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case float32:
			return strconv.FormatFloat(float64(n), 'g', -1, 32), nil
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	})
}

func (s *Series) castStringToNumeric(to arrow.DataType) (*Series, error) {
	return s.Apply(s.name, to, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		str := v.(string)
		switch to.ID() {
		case arrow.INT32, arrow.INT64:
			n, err := strconv.ParseInt(str, 10, 64)
			if err != nil {
				return nil, castParseError(str, to)
			}
			if to.ID() == arrow.INT32 {
				return int32(n), nil
			}
			return n, nil
		case arrow.FLOAT32, arrow.FLOAT64:
			f, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, castParseError(str, to)
			}
			if to.ID() == arrow.FLOAT32 {
				return float32(f), nil
			}
			return f, nil
		default:
			return nil, unsupportedCast("utf8", to.String())
		}
	})
}

func (s *Series) castBoolToNumeric(to arrow.DataType) (*Series, error) {
	return s.Apply(s.name, to, func(v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		n := int64(0)
		if v.(bool) {
			n = 1
		}
		switch to.ID() {
		case arrow.INT32:
			return int32(n), nil
		case arrow.INT64:
			return n, nil
		case arrow.FLOAT32:
			return float32(n), nil
		case arrow.FLOAT64:
			return float64(n), nil
		default:
			return nil, unsupportedCast("bool", to.String())
		}
	})
}
