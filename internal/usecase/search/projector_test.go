package search

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/row"
)

type ticket struct {
	ID       string
	Title    string
	Severity int
	Vec      []float32
}

var ticketMapping = row.NewMapping(
	row.String("ID", func(t *ticket) *string { return &t.ID }).Require(),
	row.String("Title", func(t *ticket) *string { return &t.Title }),
	row.Int("Severity", func(t *ticket) *int { return &t.Severity }),
	row.Vector("Vec", func(t *ticket) *[]float32 { return &t.Vec }),
)

func docQuery() *Query {
	return &Query{ScoreColumns: []string{"Vec_Score", CombinedScoreColumn}, SelectsDocument: true}
}

func TestProjector_UnwrapsDocument(t *testing.T) {
	r := row.New()
	r.Set("c", `{"ID":"T-1","Title":"disk full","Severity":2,"Vec":[0.5,0.5],"Extra":true}`)
	r.Set("Vec_Score", 0.25)
	r.Set(CombinedScoreColumn, 0.25)

	item, score, err := NewProjector(ticketMapping, docQuery()).Project(r)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if score != 0.25 {
		t.Errorf("score = %v, want 0.25", score)
	}
	if item.ID != "T-1" || item.Title != "disk full" || item.Severity != 2 || len(item.Vec) != 2 {
		t.Errorf("unexpected item %+v", item)
	}
	if r.Has(CombinedScoreColumn) || r.Has("Vec_Score") {
		t.Errorf("synthetic columns left in row: %v", r.Keys())
	}
}

func TestProjector_ExplicitFields(t *testing.T) {
	r := row.New()
	r.Set("ID", "T-2")
	r.Set("Severity", int64(3))
	r.Set("Vec_Score", 0.1)
	r.Set(CombinedScoreColumn, int64(0))

	q := &Query{ScoreColumns: []string{"Vec_Score", CombinedScoreColumn}}
	item, score, err := NewProjector(ticketMapping, q).Project(r)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if score != 0 || item.ID != "T-2" || item.Severity != 3 {
		t.Errorf("unexpected result %+v score=%v", item, score)
	}
}

func TestProjector_Errors(t *testing.T) {
	tests := []struct {
		name string
		row  func() *row.Row
		col  string
	}{
		{"missing score", func() *row.Row {
			r := row.New()
			r.Set("c", `{"ID":"x"}`)
			return r
		}, CombinedScoreColumn},
		{"null score", func() *row.Row {
			r := row.New()
			r.Set("c", `{"ID":"x"}`)
			r.Set(CombinedScoreColumn, nil)
			return r
		}, CombinedScoreColumn},
		{"bad document", func() *row.Row {
			r := row.New()
			r.Set("c", `[1,2]`)
			r.Set(CombinedScoreColumn, 0.1)
			return r
		}, "c"},
		{"missing required", func() *row.Row {
			r := row.New()
			r.Set("c", `{"Title":"no id"}`)
			r.Set(CombinedScoreColumn, 0.1)
			return r
		}, "ID"},
		{"bad type", func() *row.Row {
			r := row.New()
			r.Set("c", `{"ID":"x","Severity":"high"}`)
			r.Set(CombinedScoreColumn, 0.1)
			return r
		}, "Severity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := NewProjector(ticketMapping, docQuery()).Project(tc.row())
			if !errors.Is(err, domain.ErrProjection) {
				t.Fatalf("expected ErrProjection, got %v", err)
			}
			var pe *domain.ProjectionError
			if !errors.As(err, &pe) || pe.Column != tc.col {
				t.Errorf("expected column %q, got %v", tc.col, err)
			}
		})
	}
}
