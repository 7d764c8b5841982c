// Package source reads upstream records to feed the ingestion pipeline.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/domain/row"
)

// Kinds of upstream sources.
const (
	KindSQL   = "sql"
	KindJSONL = "jsonl"
)

// Source fetches the full upstream record set.
type Source[T any] interface {
	Fetch(ctx context.Context) ([]T, error)
}

// decoder turns rows into records, skipping the ones that do not fit the mapping.
type decoder[T any] struct {
	mapping row.Mapping[T]
	logger  *zap.Logger
	origin  string
	skipped int
}

func (d *decoder[T]) decode(r *row.Row, pos int, out []T) []T {
	item, err := d.mapping.Decode(r)
	if err != nil {
		d.skipped++
		d.logger.Warn("Skipping upstream record",
			zap.String("source", d.origin),
			zap.Int("position", pos),
			zap.Error(err),
		)
		return out
	}
	return append(out, item)
}

func (d *decoder[T]) done(out []T) []T {
	d.logger.Info("Upstream records fetched",
		zap.String("source", d.origin),
		zap.Int("records", len(out)),
		zap.Int("skipped", d.skipped),
	)
	return out
}

// Config selects and parameterizes a source.
type Config struct {
	Kind  string
	DSN   string
	Query string
	Path  string
}

// New builds the source described by cfg.
// The returned close function releases the underlying connection, if any.
func New[T any](cfg Config, mapping row.Mapping[T], logger *zap.Logger) (Source[T], func() error, error) {
	switch cfg.Kind {
	case KindSQL:
		conn, err := OpenSQL(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewSQL(conn, cfg.Query, mapping, logger), conn.Close, nil
	case KindJSONL:
		return NewJSONL(cfg.Path, mapping, logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
