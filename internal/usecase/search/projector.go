package search

import (
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/row"
)

// Projector turns raw result rows of one query into typed items.
type Projector[T any] struct {
	mapping      row.Mapping[T]
	scoreColumns []string
	unwrap       bool
}

// NewProjector creates a projector for rows produced by q.
func NewProjector[T any](mapping row.Mapping[T], q *Query) *Projector[T] {
	return &Projector[T]{
		mapping:      mapping,
		scoreColumns: q.ScoreColumns,
		unwrap:       q.SelectsDocument,
	}
}

// Project reads CombinedScore, strips the synthetic score columns, unwraps
// the bare document when it was selected and decodes the rest. r is modified.
// Failures are *domain.ProjectionError.
func (p *Projector[T]) Project(r *row.Row) (T, float64, error) {
	var zero T

	raw, ok := r.Get(CombinedScoreColumn)
	if !ok {
		return zero, 0, domain.NewProjectionError(CombinedScoreColumn, "column missing")
	}
	score, err := row.AsFloat(raw)
	if err != nil {
		return zero, 0, domain.NewProjectionError(CombinedScoreColumn, err.Error())
	}

	for _, col := range p.scoreColumns {
		r.Remove(col)
	}

	if p.unwrap && r.Has(DocumentAlias) {
		if err := r.Unwrap(DocumentAlias); err != nil {
			return zero, 0, domain.NewProjectionError(DocumentAlias, err.Error())
		}
	}

	item, err := p.mapping.Decode(r)
	if err != nil {
		return zero, 0, err //nolint:wrapcheck // already a ProjectionError
	}
	return item, score, nil
}
