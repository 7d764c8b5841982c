package ingest

import (
	"context"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain/reduce"
)

// Store creates the target container and writes documents to it.
type Store interface {
	EnsureContainer(ctx context.Context, spec *db.ContainerSpec) error
	Upsert(ctx context.Context, container string, docs []db.Document) error
}

// ModelStore persists fitted reduction models per container field.
// Delete of a missing model is not an error.
type ModelStore interface {
	Save(ctx context.Context, container, field string, m *reduce.Model) error
	Delete(ctx context.Context, container, field string) error
}
