// Package sqlite implements db.Store on an embedded SQLite database. Each
// container is a table of JSON documents and queries in the document dialect
// run over a CTE named c that exposes the declared fields as columns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/incidex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const (
	defaultPageSize  = 100
	defaultChunkSize = 100
	memoryPath       = ":memory:"
)

// Config holds connection parameters for a SQLite store.
type Config struct {
	Path            string // file path or ":memory:"
	PageSize        int
	UpsertChunkSize int
}

// Store implements db.Store via modernc.org/sqlite.
type Store struct {
	db       *sql.DB
	pageSize int
	chunk    int

	specs  sync.Map // container name -> *db.ContainerSpec
	ensure singleflight.Group
	now    func() time.Time
}

// NewStore opens the database, registers the SQL functions and creates the
// metadata tables.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register functions: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Path == memoryPath {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	s := &Store{
		db:       conn,
		pageSize: cfg.PageSize,
		chunk:    cfg.UpsertChunkSize,
		now:      time.Now,
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.chunk <= 0 {
		s.chunk = defaultChunkSize
	}

	if err := s.bootstrap(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	if path == memoryPath {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS __containers (name TEXT PRIMARY KEY, spec TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS __kv (key TEXT PRIMARY KEY, value BLOB NOT NULL, expires_at INTEGER)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// quoteIdent quotes a validated identifier for use as a table or column name.
func quoteIdent(name string) string {
	return `"` + name + `"`
}
