package store

import (
	"context"
	"time"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
	"github.com/kontext-io/kontext/internal/metrics"
)

// instrumented wraps a Store and records an operation counter and a duration
// histogram per call, labelled with the backend name. The inner store stays
// free of metrics concerns.
type instrumented struct {
	inner   Store
	backend string
}

// NewInstrumented wraps a store with operation metrics.
func NewInstrumented(inner Store, backend string) Store {
	return &instrumented{inner: inner, backend: backend}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(s.backend, op, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	start := time.Now()
	created, err := s.inner.Create(ctx, rec)
	s.observe("create", start, err)
	return created, err
}

func (s *instrumented) Get(ctx context.Context, id string) (record.Record, error) {
	start := time.Now()
	rec, err := s.inner.Get(ctx, id)
	s.observe("get", start, err)
	return rec, err
}

func (s *instrumented) Update(ctx context.Context, id string, p patch.Patch) (record.Record, error) {
	start := time.Now()
	rec, err := s.inner.Update(ctx, id, p)
	s.observe("update", start, err)
	return rec, err
}

func (s *instrumented) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	removed, err := s.inner.Delete(ctx, id)
	s.observe("delete", start, err)
	return removed, err
}

func (s *instrumented) Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error) {
	start := time.Now()
	records, total, err := s.inner.Query(ctx, f)
	s.observe("query", start, err)
	return records, total, err
}

func (s *instrumented) Count(ctx context.Context, f filter.Filter) (int, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx, f)
	s.observe("count", start, err)
	return n, err
}

func (s *instrumented) BatchCreate(ctx context.Context, recs []record.Record) ([]string, error) {
	start := time.Now()
	ids, err := s.inner.BatchCreate(ctx, recs)
	s.observe("batch_create", start, err)
	return ids, err
}

func (s *instrumented) Stats(ctx context.Context) (domain.Stats, error) {
	start := time.Now()
	stats, err := s.inner.Stats(ctx)
	s.observe("stats", start, err)
	return stats, err
}

func (s *instrumented) Close() {
	s.inner.Close()
}
