// Package search holds the weighted multi-field similarity query model.
package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/incidex/internal/domain"
)

// Spec is a weighted multi-field vector query against one container.
type Spec struct {
	Container    string
	Vectors      map[string][]float32
	Weights      map[string]float64
	SelectFields []string // empty selects the whole document
	Filter       string   // WHERE clause body, optional
	MaxResults   int      // <= 0 means no limit
}

// Validate rejects malformed specs before any remote call.
func (s *Spec) Validate() error {
	if s.Container == "" {
		return domain.NewValidationError("container", "container name cannot be empty")
	}
	if len(s.Vectors) == 0 {
		return domain.NewValidationError("vectors", "embeddings cannot be empty")
	}
	if len(s.Weights) == 0 {
		return domain.NewValidationError("weights", "weights cannot be empty")
	}
	for name, vec := range s.Vectors {
		if name == "" {
			return domain.NewValidationError("vectors", "vector field name cannot be empty")
		}
		if len(vec) == 0 {
			return domain.NewValidationError(name, "embedding vector cannot be empty")
		}
		w, ok := s.Weights[name]
		if !ok {
			return domain.NewValidationError(name, "weight not provided")
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return domain.NewValidationError(name, fmt.Sprintf("weight must be a non-negative number, got %v", w))
		}
	}
	for name := range s.Weights {
		if _, ok := s.Vectors[name]; !ok {
			return domain.NewValidationError(name, "weight given for field without embedding")
		}
	}
	for _, f := range s.SelectFields {
		if f == "" {
			return domain.NewValidationError("select", "select field cannot be empty")
		}
	}
	return nil
}

// Fields returns the vector field names in the fixed order used for both
// expression text and parameter binding.
func (s *Spec) Fields() []string {
	fields := make([]string, 0, len(s.Vectors))
	for name := range s.Vectors {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// SelectsDocument reports whether the whole document is selected under the alias c.
func (s *Spec) SelectsDocument() bool {
	return len(s.SelectFields) == 0
}

// Hit is a projected item paired with its combined score (lower is closer).
type Hit[T any] struct {
	Item  T
	Score float64
}
