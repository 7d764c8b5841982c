package incident

import (
	"context"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain/reduce"
)

// Store creates containers, writes documents and runs queries.
type Store interface {
	EnsureContainer(ctx context.Context, spec *db.ContainerSpec) error
	Upsert(ctx context.Context, container string, docs []db.Document) error
	Query(ctx context.Context, container, text string, params []db.Param) (db.Pager, error)
}

// ModelRepo persists reduction models per container field.
type ModelRepo interface {
	Save(ctx context.Context, container, field string, m *reduce.Model) error
	Load(ctx context.Context, container, field string) (*reduce.Model, error)
	Delete(ctx context.Context, container, field string) error
}
