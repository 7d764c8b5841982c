// Package search runs weighted multi-vector similarity queries and projects
// the rows into typed hits.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/row"
	domsearch "github.com/kailas-cloud/incidex/internal/domain/search"
	logpkg "github.com/kailas-cloud/incidex/internal/logger"
	"github.com/kailas-cloud/incidex/internal/metrics"
)

// Querier executes dialect query text against a container.
type Querier interface {
	Query(ctx context.Context, container, text string, params []db.Param) (db.Pager, error)
}

// Searcher runs weighted searches whose rows decode into T.
type Searcher[T any] struct {
	store   Querier
	mapping row.Mapping[T]
	logger  *zap.Logger
}

// NewSearcher creates a searcher over store using mapping to decode rows.
func NewSearcher[T any](store Querier, mapping row.Mapping[T], logger *zap.Logger) *Searcher[T] {
	return &Searcher[T]{store: store, mapping: mapping, logger: logger}
}

// Search validates spec, runs the query and returns hits in store order,
// lowest combined distance first. Rows that cannot be projected are logged
// and skipped.
func (s *Searcher[T]) Search(ctx context.Context, spec *domsearch.Spec) ([]domsearch.Hit[T], error) {
	q, err := Build(spec)
	if err != nil {
		return nil, err
	}

	log := logpkg.FromContextOr(ctx, s.logger)
	if spec.MaxResults <= 0 {
		log.Warn("Search without result limit may return the whole container",
			zap.String("container", spec.Container),
		)
	}

	start := time.Now()
	hits, err := s.run(ctx, log, spec.Container, q)
	metrics.SearchDuration.WithLabelValues(spec.Container).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(spec.Container, "error").Inc()
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(spec.Container, "success").Inc()
	return hits, nil
}

func (s *Searcher[T]) run(ctx context.Context, log *zap.Logger, container string, q *Query) ([]domsearch.Hit[T], error) {
	pager, err := s.store.Query(ctx, container, q.Text, q.Params)
	if err != nil {
		return nil, domain.NewStoreError("query", err)
	}
	defer pager.Close()

	projector := NewProjector(s.mapping, q)
	var hits []domsearch.Hit[T]
	dropped := 0

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, domain.NewStoreError("query", err)
		}
		for _, r := range page {
			item, score, err := projector.Project(r)
			if err != nil {
				dropped++
				log.Warn("Skipping result row",
					zap.String("container", container),
					zap.Error(err),
				)
				continue
			}
			hits = append(hits, domsearch.Hit[T]{Item: item, Score: score})
		}
	}

	if dropped > 0 {
		metrics.SearchRowsDroppedTotal.WithLabelValues(container).Add(float64(dropped))
	}
	log.Debug("Search completed",
		zap.String("container", container),
		zap.Int("hits", len(hits)),
		zap.Int("dropped", dropped),
	)
	return hits, nil
}
