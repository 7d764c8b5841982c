package source

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/incidex/internal/domain/row"
)

// OpenSQL opens an upstream SQLite database read through database/sql.
func OpenSQL(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("source dsn is required")
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return conn, nil
}

// SQL runs one query and maps every result row by column name.
type SQL[T any] struct {
	db      *sql.DB
	query   string
	mapping row.Mapping[T]
	logger  *zap.Logger
}

// NewSQL creates a SQL source.
func NewSQL[T any](conn *sql.DB, query string, mapping row.Mapping[T], logger *zap.Logger) *SQL[T] {
	return &SQL[T]{db: conn, query: query, mapping: mapping, logger: logger}
}

// Fetch runs the query and decodes all rows.
func (s *SQL[T]) Fetch(ctx context.Context) ([]T, error) {
	if s.query == "" {
		return nil, fmt.Errorf("source query is required")
	}
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	d := &decoder[T]{mapping: s.mapping, logger: s.logger, origin: KindSQL}
	var out []T
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for pos := 0; rows.Next(); pos++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", pos, err)
		}
		r := row.New()
		for i, col := range cols {
			r.Set(col, vals[i])
		}
		out = d.decode(r, pos, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return d.done(out), nil
}
