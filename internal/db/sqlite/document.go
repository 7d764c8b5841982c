package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/incidex/internal/db"
)

// Upsert inserts or replaces documents by key. Writes are chunked, one
// transaction per chunk.
func (s *Store) Upsert(ctx context.Context, container string, docs []db.Document) error {
	spec, err := s.spec(ctx, container)
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	pkField := spec.PartitionKeyField()

	for start := 0; start < len(docs); start += s.chunk {
		end := min(start+s.chunk, len(docs))
		if err := s.upsertChunk(ctx, container, pkField, docs[start:end]); err != nil {
			return &db.Error{Op: db.OpUpsert, Err: err}
		}
	}
	return nil
}

func (s *Store) upsertChunk(ctx context.Context, table, pkField string, docs []db.Document) (err error) {
	for i := range docs {
		if docs[i].Key == "" {
			return fmt.Errorf("document key is required")
		}
		if !gjson.ValidBytes(docs[i].Body) || !gjson.ParseBytes(docs[i].Body).IsObject() {
			return fmt.Errorf("document %q: body is not a JSON object", docs[i].Key)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quoteIdent(table)+` (id, pk, doc) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET pk = excluded.pk, doc = excluded.doc`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		var pk any
		if v := gjson.GetBytes(docs[i].Body, pkField); v.Exists() {
			pk = v.String()
		}
		if _, err = stmt.ExecContext(ctx, docs[i].Key, pk, string(docs[i].Body)); err != nil {
			return fmt.Errorf("document %q: %w", docs[i].Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the stored document body.
func (s *Store) Get(ctx context.Context, container, key string) ([]byte, error) {
	if _, err := s.spec(ctx, container); err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM `+quoteIdent(container)+` WHERE id = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return []byte(doc), nil
}

// Count returns the number of documents in the container.
func (s *Store) Count(ctx context.Context, container string) (int, error) {
	if _, err := s.spec(ctx, container); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quoteIdent(container)).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}
