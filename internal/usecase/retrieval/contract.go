package retrieval

import (
	"context"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
)

// Store defines the storage contract the service consumes. The active backend
// is selected once at startup and never swapped at runtime.
type Store interface {
	Create(ctx context.Context, rec record.Record) (record.Record, error)
	Get(ctx context.Context, id string) (record.Record, error)
	Update(ctx context.Context, id string, p patch.Patch) (record.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error)
	Count(ctx context.Context, f filter.Filter) (int, error)
	BatchCreate(ctx context.Context, recs []record.Record) ([]string, error)
	Stats(ctx context.Context) (domain.Stats, error)
}
