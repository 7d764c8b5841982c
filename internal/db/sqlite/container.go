package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/incidex/internal/db"
)

// EnsureContainer creates the container table and records its spec.
// Concurrent first-time calls for the same name share one creation.
func (s *Store) EnsureContainer(ctx context.Context, spec *db.ContainerSpec) error {
	if spec == nil {
		return &db.Error{Op: db.OpEnsureContainer, Err: db.ErrInvalidContainer}
	}
	if err := spec.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureContainer, Err: fmt.Errorf("%w: %w", db.ErrInvalidContainer, err)}
	}
	if strings.HasPrefix(spec.Name, "__") {
		return &db.Error{Op: db.OpEnsureContainer, Err: fmt.Errorf("%w: reserved name %q", db.ErrInvalidContainer, spec.Name)}
	}

	_, err, _ := s.ensure.Do(spec.Name, func() (any, error) {
		return nil, s.createContainer(ctx, spec)
	})
	if err != nil {
		return &db.Error{Op: db.OpEnsureContainer, Err: err}
	}
	return nil
}

func (s *Store) createContainer(ctx context.Context, spec *db.ContainerSpec) (err error) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
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

	table := quoteIdent(spec.Name)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (id TEXT PRIMARY KEY, pk TEXT, doc TEXT NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS ` + quoteIdent(spec.Name+"_pk") + ` ON ` + table + ` (pk)`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO __containers (name, spec) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET spec = excluded.spec`,
		spec.Name, string(raw)); err != nil {
		return fmt.Errorf("record spec: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	stored := *spec
	stored.Fields = append([]db.ContainerField(nil), spec.Fields...)
	s.specs.Store(spec.Name, &stored)
	return nil
}

// ContainerExists reports whether the container has been created.
func (s *Store) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := s.spec(ctx, name)
	if errors.Is(err, db.ErrContainerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &db.Error{Op: db.OpContainerInfo, Err: err}
	}
	return true, nil
}

// DropContainer removes the container table and its spec.
func (s *Store) DropContainer(ctx context.Context, name string) error {
	if _, err := s.spec(ctx, name); err != nil {
		return &db.Error{Op: db.OpDropContainer, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpDropContainer, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		_ = tx.Rollback()
		return &db.Error{Op: db.OpDropContainer, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM __containers WHERE name = ?`, name); err != nil {
		_ = tx.Rollback()
		return &db.Error{Op: db.OpDropContainer, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpDropContainer, Err: err}
	}

	s.specs.Delete(name)
	return nil
}

// spec returns the recorded container spec, loading it on first use.
func (s *Store) spec(ctx context.Context, name string) (*db.ContainerSpec, error) {
	if v, ok := s.specs.Load(name); ok {
		return v.(*db.ContainerSpec), nil
	}
	if !db.IsValidIdentifier(name) {
		return nil, fmt.Errorf("%w: %q", db.ErrContainerNotFound, name)
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM __containers WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", db.ErrContainerNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load spec: %w", err)
	}

	var spec db.ContainerSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("decode spec: %w", err)
	}
	actual, _ := s.specs.LoadOrStore(name, &spec)
	return actual.(*db.ContainerSpec), nil
}
