package row

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/kailas-cloud/incidex/internal/domain"
)

// Field binds one column to a typed record field.
type Field[T any] struct {
	Column   string
	Required bool
	set      func(*T, any) error
	get      func(*T) (any, bool)
}

// Require marks the column as mandatory on decode.
func (f Field[T]) Require() Field[T] {
	f.Required = true
	return f
}

// String binds a string column.
func String[T any](column string, ref func(*T) *string) Field[T] {
	return Field[T]{
		Column: column,
		set: func(item *T, v any) error {
			s, err := AsString(v)
			if err != nil {
				return err
			}
			*ref(item) = s
			return nil
		},
		get: func(item *T) (any, bool) { return *ref(item), true },
	}
}

// Int binds an integer column.
func Int[T any](column string, ref func(*T) *int) Field[T] {
	return Field[T]{
		Column: column,
		set: func(item *T, v any) error {
			n, err := AsInt(v)
			if err != nil {
				return err
			}
			*ref(item) = n
			return nil
		},
		get: func(item *T) (any, bool) { return *ref(item), true },
	}
}

// Float binds a float column.
func Float[T any](column string, ref func(*T) *float64) Field[T] {
	return Field[T]{
		Column: column,
		set: func(item *T, v any) error {
			if v == nil {
				return nil
			}
			f, err := AsFloat(v)
			if err != nil {
				return err
			}
			*ref(item) = f
			return nil
		},
		get: func(item *T) (any, bool) { return *ref(item), true },
	}
}

// Vector binds an embedding column. Empty vectors are omitted on encode.
func Vector[T any](column string, ref func(*T) *[]float32) Field[T] {
	return Field[T]{
		Column: column,
		set: func(item *T, v any) error {
			vec, err := AsVector(v)
			if err != nil {
				return err
			}
			*ref(item) = vec
			return nil
		},
		get: func(item *T) (any, bool) {
			vec := *ref(item)
			return vec, len(vec) > 0
		},
	}
}

// Mapping is the column table for T, declared once per record type.
type Mapping[T any] struct {
	fields []Field[T]
}

// NewMapping creates a mapping from the given fields. Column order is kept for encoding.
func NewMapping[T any](fields ...Field[T]) Mapping[T] {
	return Mapping[T]{fields: fields}
}

// Columns returns the mapped column names.
func (m Mapping[T]) Columns() []string {
	out := make([]string, len(m.fields))
	for i := range m.fields {
		out[i] = m.fields[i].Column
	}
	return out
}

// Decode builds a T from r. Unknown columns are ignored.
// A missing required column or a failed coercion returns a *domain.ProjectionError.
func (m Mapping[T]) Decode(r *Row) (T, error) {
	var item T
	for i := range m.fields {
		f := &m.fields[i]
		v, ok := r.Get(f.Column)
		if !ok {
			if f.Required {
				return item, domain.NewProjectionError(f.Column, "required column missing")
			}
			continue
		}
		if err := f.set(&item, v); err != nil {
			return item, domain.NewProjectionError(f.Column, err.Error())
		}
	}
	return item, nil
}

// Encode renders item as a JSON object in mapping order.
func (m Mapping[T]) Encode(item *T) ([]byte, error) {
	doc := []byte("{}")
	for i := range m.fields {
		f := &m.fields[i]
		v, ok := f.get(item)
		if !ok {
			continue
		}
		var err error
		doc, err = sjson.SetBytes(doc, f.Column, v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Column, err)
		}
	}
	return doc, nil
}
