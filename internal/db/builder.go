package db

import (
	"strconv"
	"strings"
)

// ContainerBuilder is a fluent builder for container specs.
type ContainerBuilder struct {
	spec ContainerSpec
}

// NewContainer starts building a container spec.
func NewContainer(name string) *ContainerBuilder {
	return &ContainerBuilder{spec: ContainerSpec{Name: name}}
}

// Key sets the unique key field.
func (b *ContainerBuilder) Key(field string) *ContainerBuilder {
	b.spec.KeyField = field
	return b
}

// PartitionKey sets the partition key path (e.g. "/IncidentId").
func (b *ContainerBuilder) PartitionKey(path string) *ContainerBuilder {
	b.spec.PartitionKeyPath = path
	return b
}

// String declares string fields.
func (b *ContainerBuilder) String(names ...string) *ContainerBuilder {
	for _, n := range names {
		b.spec.Fields = append(b.spec.Fields, ContainerField{Name: n, Type: FieldString})
	}
	return b
}

// Number declares numeric fields.
func (b *ContainerBuilder) Number(names ...string) *ContainerBuilder {
	for _, n := range names {
		b.spec.Fields = append(b.spec.Fields, ContainerField{Name: n, Type: FieldNumber})
	}
	return b
}

// Vector declares a vector field with its index policy.
func (b *ContainerBuilder) Vector(name string, dims int, distance DistanceMetric, kind VectorIndexKind) *ContainerBuilder {
	b.spec.Fields = append(b.spec.Fields, ContainerField{
		Name:       name,
		Type:       FieldVector,
		Dimensions: dims,
		Distance:   distance,
		IndexKind:  kind,
	})
	return b
}

// Build validates and returns the container spec.
func (b *ContainerBuilder) Build() (*ContainerSpec, error) {
	spec := b.spec
	if spec.PartitionKeyPath == "" && spec.KeyField != "" {
		spec.PartitionKeyPath = "/" + spec.KeyField
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// MustBuild calls Build and panics on error.
func (b *ContainerBuilder) MustBuild() *ContainerSpec {
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

// String returns a debug representation of the container policy.
func (s *ContainerSpec) String() string {
	parts := []string{"CONTAINER", s.Name, "PK", s.PartitionKeyPath, "KEY", s.KeyField, "FIELDS"}
	for i := range s.Fields {
		f := &s.Fields[i]
		switch f.Type {
		case FieldString:
			parts = append(parts, f.Name, "STRING")
		case FieldNumber:
			parts = append(parts, f.Name, "NUMBER")
		case FieldVector:
			parts = append(parts, f.Name, "VECTOR", strconv.Itoa(f.Dimensions), string(f.Distance), string(f.IndexKind))
		}
	}
	return strings.Join(parts, " ")
}
