package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/livinlefevreloca/dinesync/internal/batch"
)

// Transform converts a raw column value into its uploaded form
type Transform func(v any) (any, error)

// isoLayout matches the naive ISO 8601 form the API expects
const isoLayout = "2006-01-02T15:04:05.999999"

// Trim strips surrounding whitespace from text values. Nil stays nil.
func Trim(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.TrimSpace(x), nil
	case []byte:
		return strings.TrimSpace(string(x)), nil
	default:
		return strings.TrimSpace(fmt.Sprint(x)), nil
	}
}

// TrimOrEmpty is Trim but maps nil to the empty string
func TrimOrEmpty(v any) (any, error) {
	if v == nil {
		return "", nil
	}
	return Trim(v)
}

// Float converts numeric and decimal-text values to float64
func Float(v any) (any, error) {
	f, ok, err := toFloat(v)
	if err != nil || !ok {
		return nil, err
	}
	return f, nil
}

// IntString renders a numeric identifier stored as a decimal (e.g. 1042.0)
// as its integer text form ("1042")
func IntString(v any) (any, error) {
	f, ok, err := toFloat(v)
	if err != nil || !ok {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot convert %v to an integer", f)
	}
	return strconv.FormatInt(int64(f), 10), nil
}

// ISOTime formats time values as naive ISO 8601 text. Values that are
// already text are passed through as strings.
func ISOTime(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.Format(isoLayout), nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func toFloat(v any) (float64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case []byte:
		return parseFloat(string(x))
	case string:
		return parseFloat(x)
	default:
		return 0, false, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func parseFloat(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, true, nil
}

// Normalize builds a record from scanned column values, applying the
// task's transforms. Driver byte slices become strings so records always
// serialize as JSON scalars.
func (t *Task) Normalize(names []string, values []any) (batch.Record, error) {
	record := make(batch.Record, len(names))
	for i, name := range names {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if fn, ok := t.Transforms[name]; ok {
			out, err := fn(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			v = out
		}
		record[i] = batch.Field{Name: name, Value: v}
	}
	return record, nil
}
