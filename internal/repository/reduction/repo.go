// Package reduction persists fitted PCA models per container field so that
// query vectors can be projected into the space the stored vectors live in.
package reduction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/domain"
	"github.com/kailas-cloud/incidex/internal/domain/reduce"
)

const keyPrefix = "incidex:pca:"

// store is the consumer interface for model persistence (ISP).
type store interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
}

// Repo stores reduce.Model values as JSON in a key-value store.
type Repo struct {
	store store
}

// New creates a reduction model repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save stores the model for container/field, replacing any previous one.
func (r *Repo) Save(ctx context.Context, container, field string, m *reduce.Model) error {
	if m == nil {
		return fmt.Errorf("save model %s/%s: nil model", container, field)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := r.store.SetValue(ctx, modelKey(container, field), data); err != nil {
		return fmt.Errorf("save model %s/%s: %w", container, field, err)
	}
	return nil
}

// Load returns the stored model or domain.ErrNotFound.
func (r *Repo) Load(ctx context.Context, container, field string) (*reduce.Model, error) {
	data, err := r.store.GetValue(ctx, modelKey(container, field))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load model %s/%s: %w", container, field, err)
	}

	var m reduce.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s/%s: %w", container, field, err)
	}
	if m.Dim() == 0 || m.K() == 0 {
		return nil, fmt.Errorf("decode model %s/%s: empty model", container, field)
	}
	return &m, nil
}

// Delete removes the stored model. Missing models are not an error.
func (r *Repo) Delete(ctx context.Context, container, field string) error {
	if err := r.store.DeleteValue(ctx, modelKey(container, field)); err != nil {
		return fmt.Errorf("delete model %s/%s: %w", container, field, err)
	}
	return nil
}

func modelKey(container, field string) string {
	return keyPrefix + container + ":" + field
}
