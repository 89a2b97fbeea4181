package retrieval

import (
	"context"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
)

// mockStore is a function-field double for the Store contract.
type mockStore struct {
	createFn      func(ctx context.Context, rec record.Record) (record.Record, error)
	getFn         func(ctx context.Context, id string) (record.Record, error)
	updateFn      func(ctx context.Context, id string, p patch.Patch) (record.Record, error)
	deleteFn      func(ctx context.Context, id string) (bool, error)
	queryFn       func(ctx context.Context, f filter.Filter) ([]record.Record, int, error)
	countFn       func(ctx context.Context, f filter.Filter) (int, error)
	batchCreateFn func(ctx context.Context, recs []record.Record) ([]string, error)
	statsFn       func(ctx context.Context) (domain.Stats, error)
}

func (m *mockStore) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	return m.createFn(ctx, rec)
}

func (m *mockStore) Get(ctx context.Context, id string) (record.Record, error) {
	return m.getFn(ctx, id)
}

func (m *mockStore) Update(ctx context.Context, id string, p patch.Patch) (record.Record, error) {
	return m.updateFn(ctx, id, p)
}

func (m *mockStore) Delete(ctx context.Context, id string) (bool, error) {
	return m.deleteFn(ctx, id)
}

func (m *mockStore) Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error) {
	return m.queryFn(ctx, f)
}

func (m *mockStore) Count(ctx context.Context, f filter.Filter) (int, error) {
	return m.countFn(ctx, f)
}

func (m *mockStore) BatchCreate(ctx context.Context, recs []record.Record) ([]string, error) {
	return m.batchCreateFn(ctx, recs)
}

func (m *mockStore) Stats(ctx context.Context) (domain.Stats, error) {
	return m.statsFn(ctx)
}
