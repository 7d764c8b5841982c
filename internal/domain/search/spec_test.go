package search

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/incidex/internal/domain"
)

func validSpec() Spec {
	return Spec{
		Container: "incidents",
		Vectors: map[string][]float32{
			"TittleEmbedding":  {1, 0, 0},
			"SummaryEmbedding": {0, 1, 0},
		},
		Weights: map[string]float64{
			"TittleEmbedding":  0.7,
			"SummaryEmbedding": 0.3,
		},
		MaxResults: 5,
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Spec)
		field  string
	}{
		{"empty container", func(s *Spec) { s.Container = "" }, "container"},
		{"no vectors", func(s *Spec) { s.Vectors = nil }, "vectors"},
		{"no weights", func(s *Spec) { s.Weights = nil }, "weights"},
		{"empty vector", func(s *Spec) { s.Vectors["TittleEmbedding"] = nil }, "TittleEmbedding"},
		{"missing weight", func(s *Spec) { delete(s.Weights, "SummaryEmbedding") }, "SummaryEmbedding"},
		{"extra weight", func(s *Spec) { s.Weights["Other"] = 1 }, "Other"},
		{"negative weight", func(s *Spec) { s.Weights["TittleEmbedding"] = -0.1 }, "TittleEmbedding"},
		{"empty field name", func(s *Spec) { s.Vectors[""] = []float32{1}; s.Weights[""] = 1 }, "vectors"},
		{"empty select field", func(s *Spec) { s.SelectFields = []string{"c.Title", ""} }, "select"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSpec()
			tc.mutate(&s)

			err := s.Validate()
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestSpec_ValidateOK(t *testing.T) {
	s := validSpec()
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Weights["TittleEmbedding"] = 0
	if err := s.Validate(); err != nil {
		t.Fatalf("zero weight should be accepted: %v", err)
	}
}

func TestSpec_FieldsSorted(t *testing.T) {
	s := validSpec()
	want := []string{"SummaryEmbedding", "TittleEmbedding"}
	for i := 0; i < 5; i++ {
		if got := s.Fields(); !reflect.DeepEqual(got, want) {
			t.Fatalf("fields = %v, want %v", got, want)
		}
	}
}

func TestSpec_SelectsDocument(t *testing.T) {
	s := validSpec()
	if !s.SelectsDocument() {
		t.Error("expected whole-document select by default")
	}
	s.SelectFields = []string{"c.IncidentId"}
	if s.SelectsDocument() {
		t.Error("expected explicit select")
	}
}
