package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound       = errors.New("db: key not found")
	ErrContainerNotFound = errors.New("db: container not found")
	ErrInvalidContainer  = errors.New("db: invalid container spec")
	ErrInvalidQuery      = errors.New("db: invalid query")
)

// Op names used for error context.
const (
	OpEnsureContainer = "ENSURE_CONTAINER"
	OpDropContainer   = "DROP_CONTAINER"
	OpContainerInfo   = "CONTAINER_INFO"
	OpUpsert          = "UPSERT"
	OpQuery           = "QUERY"
	OpGet             = "GET"
	OpSet             = "SET"
	OpDel             = "DEL"
	OpCount           = "COUNT"
	OpPing            = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
