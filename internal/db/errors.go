package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrUnavailable wraps transport-level failures (timeout, connection refused).
	ErrUnavailable = errors.New("db: unavailable")
)

// Op constants map to Redis command names for error context.
const (
	OpGet      = "GET"
	OpMGet     = "MGET"
	OpSet      = "SET"
	OpDel      = "DEL"
	OpExists   = "EXISTS"
	OpSAdd     = "SADD"
	OpSRem     = "SREM"
	OpSMembers = "SMEMBERS"
	OpSCard    = "SCARD"
	OpExec     = "EXEC"
	OpPing     = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
