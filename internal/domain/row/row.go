// Package row holds the ordered key/value representation of a store result
// row and the explicit column mappings used to turn rows into typed records.
package row

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when JSON input is not an object.
var ErrNotObject = errors.New("row: not a JSON object")

// Row is an ordered key/value map. Values are nil, bool, float64, int64,
// string, []byte, []any or *Row.
type Row struct {
	keys []string
	vals map[string]any
}

// New creates an empty row.
func New() *Row {
	return &Row{vals: make(map[string]any)}
}

// Set stores a value, appending the key if it is new.
func (r *Row) Set(key string, val any) {
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = val
}

// Get returns the value at key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Row) Has(key string) bool {
	_, ok := r.vals[key]
	return ok
}

// Remove deletes key. Returns false if it was absent.
func (r *Row) Remove(key string) bool {
	if _, ok := r.vals[key]; !ok {
		return false
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves the value at from to to, keeping its position.
// An existing value at to is replaced.
func (r *Row) Rename(from, to string) bool {
	v, ok := r.vals[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	r.Remove(to)
	delete(r.vals, from)
	r.vals[to] = v
	for i, k := range r.keys {
		if k == from {
			r.keys[i] = to
			break
		}
	}
	return true
}

// Unwrap replaces the row contents with the nested object stored at key.
// The nested value may be a *Row or a JSON object encoded as string or bytes.
func (r *Row) Unwrap(key string) error {
	v, ok := r.vals[key]
	if !ok {
		return fmt.Errorf("unwrap %q: column missing", key)
	}

	var nested *Row
	switch t := v.(type) {
	case *Row:
		nested = t
	case string:
		parsed, err := Parse([]byte(t))
		if err != nil {
			return fmt.Errorf("unwrap %q: %w", key, err)
		}
		nested = parsed
	case []byte:
		parsed, err := Parse(t)
		if err != nil {
			return fmt.Errorf("unwrap %q: %w", key, err)
		}
		nested = parsed
	default:
		return fmt.Errorf("unwrap %q: unexpected %T", key, v)
	}

	r.keys = nested.keys
	r.vals = nested.vals
	return nil
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r *Row) Len() int { return len(r.keys) }

// Parse decodes a JSON object into a Row keeping document key order.
func Parse(data []byte) (*Row, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("row: invalid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, ErrNotObject
	}
	return fromObject(res), nil
}

func fromObject(res gjson.Result) *Row {
	r := New()
	res.ForEach(func(key, value gjson.Result) bool {
		r.Set(key.String(), fromResult(value))
		return true
	})
	return r
}

func fromResult(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return res.Num
	case gjson.String:
		return res.Str
	case gjson.JSON:
		if res.IsObject() {
			return fromObject(res)
		}
		items := res.Array()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = fromResult(it)
		}
		return out
	}
	return nil
}
