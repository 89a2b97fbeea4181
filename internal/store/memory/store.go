// Package memory implements the bounded in-process context store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
	"github.com/kontext-io/kontext/internal/metrics"
	"github.com/kontext-io/kontext/internal/rank"
)

// Config holds bounded store settings.
type Config struct {
	MaxSize   int
	Evict     bool // FIFO eviction; when false a full store rejects creates
	ChunkSize int  // batch ingest chunk size
}

// Store is the capacity-limited in-process backend. The primary map and all
// index maps are mutated under one write lock, so readers never observe a
// record present in one but missing from the other.
type Store struct {
	mu sync.RWMutex

	maxSize   int
	evict     bool
	chunkSize int

	records map[string]record.Record
	// order holds ids oldest-first. Insertion order equals createdAt order
	// because timestamps are assigned under the same lock. Deleted ids are
	// skipped lazily during eviction; stale counts them so the queue can be
	// compacted once they outnumber live records.
	order []string
	stale int

	byKind     map[record.Kind]map[string]bool
	byTag      map[string]map[string]bool
	byCategory map[string]map[string]bool

	now    func() time.Time
	logger *zap.Logger
}

// New creates a bounded in-process store.
func New(cfg Config, logger *zap.Logger) *Store {
	return &Store{
		maxSize:    cfg.MaxSize,
		evict:      cfg.Evict,
		chunkSize:  cfg.ChunkSize,
		records:    make(map[string]record.Record),
		byKind:     make(map[record.Kind]map[string]bool),
		byTag:      make(map[string]map[string]bool),
		byCategory: make(map[string]map[string]bool),
		now:        time.Now,
		logger:     logger,
	}
}

// Create persists a new record, evicting the oldest one when at capacity.
func (s *Store) Create(_ context.Context, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(rec)
}

func (s *Store) createLocked(rec record.Record) (record.Record, error) {
	if _, ok := s.records[rec.ID()]; ok {
		return record.Record{}, fmt.Errorf("create %s: %w", rec.ID(), domain.ErrAlreadyExists)
	}
	if len(s.records) >= s.maxSize {
		if !s.evict {
			return record.Record{}, fmt.Errorf("create %s: store full (%d): %w",
				rec.ID(), s.maxSize, domain.ErrCapacityExceeded)
		}
		s.evictOldestLocked()
	}

	now := s.now()
	rec = rec.WithTimestamps(now, now)
	s.records[rec.ID()] = rec
	s.order = append(s.order, rec.ID())
	s.indexLocked(&rec)
	return rec, nil
}

// Get returns the record or domain.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return record.Record{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Update merges the patch and re-indexes changed attributes in one critical section.
func (s *Store) Update(_ context.Context, id string, p patch.Patch) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok {
		return record.Record{}, fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
	}

	updated := p.Apply(old).WithTimestamps(old.CreatedAt(), s.now())
	s.unindexLocked(&old)
	s.records[id] = updated
	s.indexLocked(&updated)
	return updated, nil
}

// Delete removes the record and every index membership. Idempotent.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	s.unindexLocked(&rec)
	delete(s.records, id)
	s.stale++
	s.maybeCompactLocked()
	return true, nil
}

// Query returns the matching page plus the pre-pagination total.
func (s *Store) Query(_ context.Context, f filter.Filter) ([]record.Record, int, error) {
	s.mu.RLock()
	matches := s.collectLocked(&f)
	s.mu.RUnlock()

	rank.Order(matches, &f)
	total := len(matches)

	if f.Offset >= len(matches) {
		return nil, total, nil
	}
	matches = matches[f.Offset:]
	if len(matches) > f.Limit {
		matches = matches[:f.Limit]
	}
	return matches, total, nil
}

// Count returns the number of matching records.
func (s *Store) Count(_ context.Context, f filter.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidateIDsLocked(&f)), nil
}

// BatchCreate ingests records in chunks; each chunk applies all-or-nothing.
func (s *Store) BatchCreate(ctx context.Context, recs []record.Record) ([]string, error) {
	ids := make([]string, 0, len(recs))
	for start := 0; start < len(recs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		chunkIDs, err := s.createChunk(recs[start:end])
		if err != nil {
			return ids, fmt.Errorf("batch chunk at %d: %w", start, err)
		}
		ids = append(ids, chunkIDs...)
		if err := ctx.Err(); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (s *Store) createChunk(recs []record.Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Pre-check so a failing chunk leaves no partial state behind.
	seen := make(map[string]bool, len(recs))
	for i := range recs {
		id := recs[i].ID()
		if _, ok := s.records[id]; ok || seen[id] {
			return nil, fmt.Errorf("record %s: %w", id, domain.ErrAlreadyExists)
		}
		seen[id] = true
	}
	if !s.evict && len(s.records)+len(recs) > s.maxSize {
		return nil, fmt.Errorf("chunk of %d over capacity %d: %w",
			len(recs), s.maxSize, domain.ErrCapacityExceeded)
	}

	ids := make([]string, 0, len(recs))
	for i := range recs {
		created, err := s.createLocked(recs[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, created.ID())
	}
	return ids, nil
}

// Stats returns aggregate counts per kind and per tag.
func (s *Store) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.Stats{
		Total:  len(s.records),
		ByKind: make(map[string]int, len(s.byKind)),
		ByTag:  make(map[string]int, len(s.byTag)),
	}
	for kind, ids := range s.byKind {
		stats.ByKind[kind.String()] = len(ids)
	}
	for tag, ids := range s.byTag {
		stats.ByTag[tag] = len(ids)
	}
	return stats, nil
}

// Close is a no-op for the in-process backend.
func (s *Store) Close() {}

// Len returns the current record count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// evictOldestLocked removes the oldest surviving record from the primary map
// and all indexes. Must hold the write lock.
func (s *Store) evictOldestLocked() {
	for len(s.order) > 0 {
		id := s.order[0]
		s.order = s.order[1:]
		rec, ok := s.records[id]
		if !ok {
			s.stale--
			continue // deleted earlier, skip
		}
		s.unindexLocked(&rec)
		delete(s.records, id)
		metrics.StoreEvictionsTotal.Inc()
		s.logger.Debug("evicted oldest record",
			zap.String("id", id),
			zap.Time("created_at", rec.CreatedAt()),
		)
		return
	}
}

// maybeCompactLocked drops stale ids from the eviction queue once they
// outnumber live records, keeping the queue proportional to the store size
// even under create/delete churn that never reaches capacity.
func (s *Store) maybeCompactLocked() {
	if s.stale <= len(s.records) {
		return
	}
	live := make([]string, 0, len(s.records))
	for _, id := range s.order {
		if _, ok := s.records[id]; ok {
			live = append(live, id)
		}
	}
	s.order = live
	s.stale = 0
}

func (s *Store) indexLocked(rec *record.Record) {
	addMember(s.byKind, rec.Kind(), rec.ID())
	for _, tag := range rec.Tags() {
		addMember(s.byTag, tag, rec.ID())
	}
	if cat := rec.DomainCategory(); cat != "" {
		addMember(s.byCategory, cat, rec.ID())
	}
}

func (s *Store) unindexLocked(rec *record.Record) {
	removeMember(s.byKind, rec.Kind(), rec.ID())
	for _, tag := range rec.Tags() {
		removeMember(s.byTag, tag, rec.ID())
	}
	if cat := rec.DomainCategory(); cat != "" {
		removeMember(s.byCategory, cat, rec.ID())
	}
}

// candidateIDsLocked computes the matching id set from the index maps,
// in time proportional to the candidate sets, never the whole store.
func (s *Store) candidateIDsLocked(f *filter.Filter) map[string]bool {
	var candidates map[string]bool

	if len(f.Kinds) > 0 {
		set := make(map[string]bool)
		for _, k := range f.Kinds {
			for id := range s.byKind[k] {
				set[id] = true
			}
		}
		candidates = set
	}
	if len(f.Tags) > 0 {
		set := make(map[string]bool)
		for _, t := range f.Tags {
			for id := range s.byTag[t] {
				set[id] = true
			}
		}
		candidates = intersect(candidates, set)
	}
	if f.DomainCategory != "" {
		set := make(map[string]bool, len(s.byCategory[f.DomainCategory]))
		for id := range s.byCategory[f.DomainCategory] {
			set[id] = true
		}
		candidates = intersect(candidates, set)
	}

	if candidates == nil {
		candidates = make(map[string]bool, len(s.records))
		for id := range s.records {
			candidates[id] = true
		}
	}
	return candidates
}

func (s *Store) collectLocked(f *filter.Filter) []record.Record {
	ids := s.candidateIDsLocked(f)
	out := make([]record.Record, 0, len(ids))
	for id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

func addMember[K comparable](idx map[K]map[string]bool, key K, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]bool)
		idx[key] = set
	}
	set[id] = true
}

func removeMember[K comparable](idx map[K]map[string]bool, key K, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

func intersect(a, b map[string]bool) map[string]bool {
	if a == nil {
		return b
	}
	out := make(map[string]bool)
	for id := range a {
		if b[id] {
			out[id] = true
		}
	}
	return out
}
