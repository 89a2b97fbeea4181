// Package db defines the narrow interfaces the durable store backend consumes.
package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	KVStore
	SetStore
	TxRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides plain key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// MGet fetches multiple keys in one round-trip. Missing keys yield nil entries.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// SetStore provides remote set operations used for secondary indexes.
type SetStore interface {
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	// SCardMulti returns cardinalities for multiple sets in one round-trip.
	SCardMulti(ctx context.Context, keys []string) ([]int64, error)
}

// Batch collects write commands for one atomic multi-command execution.
type Batch interface {
	Set(key string, value []byte)
	Del(key string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// TxRunner executes a batch of writes atomically: all apply or none do.
type TxRunner interface {
	Tx(ctx context.Context, fn func(b Batch)) error
}
