package db

import (
	"errors"
	"strconv"
	"strings"
)

// DistanceMetric is the function VectorDistance applies to a vector field.
type DistanceMetric string

const (
	// DistanceCosine is cosine distance (1 - cosine similarity).
	DistanceCosine DistanceMetric = "cosine"
	// DistanceEuclidean is L2 distance.
	DistanceEuclidean DistanceMetric = "euclidean"
	// DistanceDotProduct is negated inner product.
	DistanceDotProduct DistanceMetric = "dotproduct"
)

// VectorIndexKind selects the vector index kind declared for a field.
type VectorIndexKind string

const (
	// IndexFlat is brute force.
	IndexFlat VectorIndexKind = "flat"
	// IndexQuantizedFlat is brute force over quantized vectors.
	IndexQuantizedFlat VectorIndexKind = "quantizedFlat"
	// IndexDiskANN is a graph index.
	IndexDiskANN VectorIndexKind = "diskANN"
)

// FieldType enumerates declared document field types.
type FieldType int

const (
	// FieldString is a string field.
	FieldString FieldType = iota
	// FieldNumber is a numeric field.
	FieldNumber
	// FieldVector is an embedding field.
	FieldVector
)

// ContainerField describes one declared field of a container.
type ContainerField struct {
	Name string
	Type FieldType

	// VECTOR options
	Dimensions int
	Distance   DistanceMetric
	IndexKind  VectorIndexKind
}

// ContainerSpec is a complete container definition used by EnsureContainer.
type ContainerSpec struct {
	Name             string
	PartitionKeyPath string // e.g. "/IncidentId"
	KeyField         string
	Fields           []ContainerField
}

// VectorFields returns the declared vector fields.
func (s *ContainerSpec) VectorFields() []ContainerField {
	var out []ContainerField
	for _, f := range s.Fields {
		if f.Type == FieldVector {
			out = append(out, f)
		}
	}
	return out
}

// PartitionKeyField returns the document field named by PartitionKeyPath.
func (s *ContainerSpec) PartitionKeyField() string {
	return strings.ReplaceAll(strings.TrimPrefix(s.PartitionKeyPath, "/"), "/", ".")
}

// Validate checks that the container definition is well-formed.
func (s *ContainerSpec) Validate() error {
	if s.Name == "" {
		return errors.New("container name is required")
	}
	if !IsValidIdentifier(s.Name) {
		return errors.New("container name contains invalid characters")
	}
	if s.KeyField == "" {
		return errors.New("key field is required")
	}
	if !strings.HasPrefix(s.PartitionKeyPath, "/") || len(s.PartitionKeyPath) < 2 {
		return errors.New("partition key path must look like /field")
	}
	if len(s.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if !IsValidIdentifier(f.Name) {
			return errors.New("field name contains invalid characters: " + f.Name)
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[key] = true

		if f.Type == FieldVector && f.Dimensions <= 0 {
			return errors.New("vector field requires positive dimensions: " + f.Name)
		}
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z_][a-zA-Z0-9_]*.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && (!isDigit || i == 0) {
			return false
		}
	}
	return true
}
