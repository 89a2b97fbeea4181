// Package store defines the backend contract for context storage and the
// factory that selects the active backend at process startup.
package store

import (
	"context"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
)

// Store is implemented identically by every backend.
//
// Query ordering contract: relevance score descending, createdAt descending,
// id ascending — stable across repeated calls with unchanged data.
type Store interface {
	// Create persists a new record, assigning createdAt/updatedAt.
	// Fails with domain.ErrAlreadyExists if the id is present.
	Create(ctx context.Context, rec record.Record) (record.Record, error)
	// Get returns the record or domain.ErrNotFound.
	Get(ctx context.Context, id string) (record.Record, error)
	// Update merges the patch, recomputes updatedAt and re-indexes changed
	// attributes. Returns domain.ErrNotFound for a missing id.
	Update(ctx context.Context, id string, p patch.Patch) (record.Record, error)
	// Delete removes the record and all its index memberships.
	// Idempotent; reports whether a record was actually removed.
	Delete(ctx context.Context, id string) (bool, error)
	// Query returns one page of matching records plus the total match count
	// before pagination.
	Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error)
	// Count returns the number of records matching the filter.
	Count(ctx context.Context, f filter.Filter) (int, error)
	// BatchCreate persists records in bounded chunks. Each chunk is
	// all-or-nothing; the whole batch is not one transaction.
	BatchCreate(ctx context.Context, recs []record.Record) ([]string, error)
	// Stats returns aggregate counts per kind and per tag.
	Stats(ctx context.Context) (domain.Stats, error)
	Close()
}
