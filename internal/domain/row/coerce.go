package row

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// AsString coerces scalar values to string. nil becomes "".
func AsString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// AsInt coerces numbers and numeric strings to int. nil becomes 0.
func AsInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		if t < math.MinInt || t >= math.MaxInt+1 {
			return 0, fmt.Errorf("%v overflows int", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("parse int %q: %w", t, err)
		}
		return n, nil
	case []byte:
		return AsInt(string(t))
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// AsFloat coerces numbers and numeric strings to float64.
func AsFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("parse float %q: %w", t, err)
		}
		return f, nil
	case []byte:
		return AsFloat(string(t))
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// AsVector coerces an array of numbers, or a JSON array text, to []float32.
// nil becomes a nil vector.
func AsVector(v any) ([]float32, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []float32:
		return t, nil
	case []float64:
		out := make([]float32, len(t))
		for i, f := range t {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(t))
		for i, item := range t {
			f, err := AsFloat(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = float32(f)
		}
		return out, nil
	case string:
		return ParseVector(t)
	case []byte:
		return ParseVector(string(t))
	default:
		return nil, fmt.Errorf("cannot convert %T to vector", v)
	}
}

// ParseVector decodes a JSON array of numbers.
func ParseVector(text string) ([]float32, error) {
	res := gjson.Parse(text)
	if !res.IsArray() {
		return nil, fmt.Errorf("not a JSON array")
	}
	items := res.Array()
	out := make([]float32, len(items))
	for i, it := range items {
		if it.Type != gjson.Number {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = float32(it.Num)
	}
	return out, nil
}
