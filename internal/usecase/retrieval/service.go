// Package retrieval composes the active store and the ranker into the
// operations external consumers use.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
	"github.com/kontext-io/kontext/internal/rank"
)

// CreateInput carries the caller-supplied fields of a new record.
// The id and timestamps are assigned internally.
type CreateInput struct {
	Kind           record.Kind
	Title          string
	Description    string
	Content        string
	Tags           []string
	Language       string
	DomainCategory string
	BaseScore      float64
	RelatedIDs     []string
}

// Service validates inputs, delegates to the active store and applies the
// ranker to read results.
type Service struct {
	store           Store
	defaultPageSize int
	maxPageSize     int
	logger          *zap.Logger
}

// New creates a retrieval service.
func New(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:           store,
		defaultPageSize: 20,
		maxPageSize:     100,
		logger:          logger,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// Create assigns a fresh id and persists the record.
func (s *Service) Create(ctx context.Context, in CreateInput) (record.Record, error) {
	rec, err := s.buildRecord(in)
	if err != nil {
		return record.Record{}, err
	}

	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return record.Record{}, fmt.Errorf("create record: %w", err)
	}
	return created, nil
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, id string) (record.Record, error) {
	if id == "" {
		return record.Record{}, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, p patch.Patch) (record.Record, error) {
	if id == "" {
		return record.Record{}, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	if p.IsEmpty() {
		return record.Record{}, fmt.Errorf("empty patch: %w", domain.ErrValidation)
	}
	rec, err := s.store.Update(ctx, id, p)
	if err != nil {
		return record.Record{}, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

// Delete removes a record. Idempotent; reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	return removed, nil
}

// Query returns one ranked page of matching records plus the total match count.
func (s *Service) Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error) {
	if err := s.prepareFilter(&f); err != nil {
		return nil, 0, err
	}
	records, total, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	return records, total, nil
}

// Count returns the number of records matching the filter.
func (s *Service) Count(ctx context.Context, f filter.Filter) (int, error) {
	if err := s.prepareFilter(&f); err != nil {
		return 0, err
	}
	n, err := s.store.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// BatchCreate ingests many records, assigning fresh ids. Chunking and
// per-chunk atomicity are the store's concern.
func (s *Service) BatchCreate(ctx context.Context, ins []CreateInput) ([]string, error) {
	recs := make([]record.Record, len(ins))
	for i, in := range ins {
		rec, err := s.buildRecord(in)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs[i] = rec
	}
	ids, err := s.store.BatchCreate(ctx, recs)
	if err != nil {
		return ids, fmt.Errorf("batch create: %w", err)
	}
	return ids, nil
}

// Similar returns the topK records most similar to the given one, ranked by a
// synthetic filter built from its own tags, kind and domain category. The
// source record itself is never part of the result.
func (s *Service) Similar(ctx context.Context, id string, topK int) ([]record.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	if topK < 0 {
		return nil, fmt.Errorf("topK must be >= 0, got %d: %w", topK, domain.ErrValidation)
	}

	source, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get source record: %w", err)
	}
	if topK == 0 {
		return nil, nil
	}

	// Rank the whole corpus against the synthetic filter; structural filter
	// fields stay empty so zero-overlap records are still considered.
	total, err := s.store.Count(ctx, filter.Filter{})
	if err != nil {
		return nil, fmt.Errorf("count corpus: %w", err)
	}
	if total <= 1 {
		return nil, nil
	}
	all, _, err := s.store.Query(ctx, filter.Filter{Limit: total})
	if err != nil {
		return nil, fmt.Errorf("fetch corpus: %w", err)
	}

	synthetic := filter.Filter{
		Kinds:          []record.Kind{source.Kind()},
		Tags:           source.Tags(),
		DomainCategory: source.DomainCategory(),
	}

	candidates := make([]record.Record, 0, len(all))
	for i := range all {
		if all[i].ID() == source.ID() {
			continue
		}
		candidates = append(candidates, all[i])
	}
	rank.Order(candidates, &synthetic)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// Stats returns aggregate counts per kind and per tag.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// EnhanceQuery appends the best-matching context snippets to free text.
// Best-effort: when retrieval fails the original text comes back unchanged.
func (s *Service) EnhanceQuery(ctx context.Context, text string, maxSnippets int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is required: %w", domain.ErrValidation)
	}
	if maxSnippets <= 0 {
		maxSnippets = 3
	}
	if maxSnippets > s.maxPageSize {
		maxSnippets = s.maxPageSize
	}

	f := filter.Filter{TextQuery: text, Limit: maxSnippets}
	matches, _, err := s.store.Query(ctx, f)
	if err != nil {
		s.logger.Warn("query enhancement skipped", zap.Error(err))
		return text, nil
	}
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nRelevant context:\n")
	for i := range matches {
		b.WriteString("\n## ")
		b.WriteString(matches[i].Title())
		b.WriteString("\n")
		b.WriteString(matches[i].Content())
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (s *Service) buildRecord(in CreateInput) (record.Record, error) {
	rec, err := record.New(
		uuid.NewString(), in.Kind, in.Title, in.Description, in.Content,
		in.Tags, in.Language, in.DomainCategory, in.BaseScore, in.RelatedIDs,
	)
	if err != nil {
		return record.Record{}, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	return rec, nil
}

func (s *Service) prepareFilter(f *filter.Filter) error {
	if err := f.Normalize(s.defaultPageSize, s.maxPageSize); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	return nil
}
