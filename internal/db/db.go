package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/incidex/internal/domain/row"
)

// Store is the document store facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	ContainerManager
	DocumentStore
	Querier
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// KV is a standalone key-value backend (Valkey) usable in place of the store's own KV.
type KV interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ContainerManager provides idempotent container lifecycle operations.
// Concurrent first-time EnsureContainer calls are deduplicated by the store.
type ContainerManager interface {
	EnsureContainer(ctx context.Context, spec *ContainerSpec) error
	ContainerExists(ctx context.Context, name string) (bool, error)
	DropContainer(ctx context.Context, name string) error
}

// Document is one item to upsert, addressed by its unique key.
type Document struct {
	Key  string
	Body []byte // JSON object
}

// DocumentStore provides keyed document writes and reads.
type DocumentStore interface {
	Upsert(ctx context.Context, container string, docs []Document) error
	Get(ctx context.Context, container, key string) ([]byte, error)
	Count(ctx context.Context, container string) (int, error)
}

// Param is a named query parameter such as @embedding0.
type Param struct {
	Name  string
	Value any
}

// Querier executes dialect query text and returns rows page by page.
type Querier interface {
	Query(ctx context.Context, container, text string, params []Param) (Pager, error)
}

// Pager is a sequential, single-consumer page iterator.
type Pager interface {
	More() bool
	NextPage(ctx context.Context) ([]*row.Row, error)
	Close() error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	SetValueWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteValue(ctx context.Context, key string) error
}
