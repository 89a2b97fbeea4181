// Package redis implements the durable context store over a remote key-value
// service. Primary records live under one key per id; secondary indexes are
// remote sets. No operation enumerates the keyspace: candidate ids always come
// from index sets, and records are fetched with a single multi-get.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/db"
	"github.com/kontext-io/kontext/internal/domain"
	"github.com/kontext-io/kontext/internal/domain/filter"
	"github.com/kontext-io/kontext/internal/domain/record"
	"github.com/kontext-io/kontext/internal/domain/record/patch"
	"github.com/kontext-io/kontext/internal/metrics"
	"github.com/kontext-io/kontext/internal/rank"
)

const (
	// readRetries is how many times a read is retried on a transport failure.
	readRetries = 2
	// retryBackoff is the linear backoff step between retries.
	retryBackoff = 50 * time.Millisecond
)

// store is the consumer interface over the db facade (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	SCardMulti(ctx context.Context, keys []string) ([]int64, error)
	Tx(ctx context.Context, fn func(b db.Batch)) error
}

// Config holds durable store settings.
type Config struct {
	KeyPrefix string
	OpTimeout time.Duration
	ChunkSize int
}

// Store is the durable backend. Every logical mutation (record write plus all
// index updates) is submitted as one atomic multi-command batch, so concurrent
// writers across processes never leave a dangling index entry or an orphaned
// record.
type Store struct {
	store     store
	prefix    string
	opTimeout time.Duration
	chunkSize int
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a durable store over s.
func New(s store, cfg Config, logger *zap.Logger) *Store {
	return &Store{
		store:     s,
		prefix:    cfg.KeyPrefix,
		opTimeout: cfg.OpTimeout,
		chunkSize: cfg.ChunkSize,
		now:       time.Now,
		logger:    logger,
	}
}

// Close is a no-op; the underlying client is owned by the composition root.
func (s *Store) Close() {}

// Create persists a new record with all index memberships in one atomic batch.
func (s *Store) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	exists, err := s.existsRead(ctx, s.recordKey(rec.ID()))
	if err != nil {
		return record.Record{}, fmt.Errorf("create %s: %w", rec.ID(), err)
	}
	if exists {
		return record.Record{}, fmt.Errorf("create %s: %w", rec.ID(), domain.ErrAlreadyExists)
	}

	now := s.now()
	rec = rec.WithTimestamps(now, now)
	data, err := marshalRecord(&rec)
	if err != nil {
		return record.Record{}, err
	}

	err = s.write(ctx, "create", func(b db.Batch) {
		s.addToBatch(b, &rec, data)
	})
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// Get returns the record or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (record.Record, error) {
	var data []byte
	err := s.read(ctx, "get", func(ctx context.Context) error {
		var err error
		data, err = s.store.Get(ctx, s.recordKey(id))
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return record.Record{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
		}
		return record.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return unmarshalRecord(data)
}

// Update merges the patch and re-derives index memberships atomically with the
// record write.
func (s *Store) Update(ctx context.Context, id string, p patch.Patch) (record.Record, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return record.Record{}, err
	}

	updated := p.Apply(old).WithTimestamps(old.CreatedAt(), s.now())
	data, err := marshalRecord(&updated)
	if err != nil {
		return record.Record{}, err
	}

	err = s.write(ctx, "update", func(b db.Batch) {
		b.Set(s.recordKey(id), data)
		s.reindexBatch(b, &old, &updated)
	})
	if err != nil {
		return record.Record{}, fmt.Errorf("update %s: %w", id, err)
	}
	return updated, nil
}

// Delete removes the record and all its index memberships. Idempotent.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	err = s.writeRetried(ctx, "delete", func(b db.Batch) {
		s.removeFromBatch(b, &rec)
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	return true, nil
}

// Query computes candidate ids from the index sets, fetches the records with
// one multi-get, ranks locally and returns the requested page plus the total.
func (s *Store) Query(ctx context.Context, f filter.Filter) ([]record.Record, int, error) {
	ids, err := s.candidateIDs(ctx, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("query candidates: %w", err)
	}
	if len(ids) == 0 {
		return nil, 0, nil
	}

	matches, err := s.fetchRecords(ctx, ids, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("query fetch: %w", err)
	}

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

// Count uses set cardinalities when a single index set decides the filter,
// falling back to local set algebra otherwise. Records are never fetched.
func (s *Store) Count(ctx context.Context, f filter.Filter) (int, error) {
	if key, ok := s.singleSetKey(&f); ok {
		var n int64
		err := s.read(ctx, "count", func(ctx context.Context) error {
			var err error
			n, err = s.store.SCard(ctx, key)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		return int(n), nil
	}

	ids, err := s.candidateIDs(ctx, &f)
	if err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return len(ids), nil
}

// BatchCreate ingests records in bounded chunks. Each chunk is one atomic
// batch; a failed chunk does not roll back previously committed chunks.
func (s *Store) BatchCreate(ctx context.Context, recs []record.Record) ([]string, error) {
	ids := make([]string, 0, len(recs))
	for start := 0; start < len(recs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		chunkIDs, err := s.createChunk(ctx, recs[start:end])
		if err != nil {
			return ids, fmt.Errorf("batch chunk at %d: %w", start, err)
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func (s *Store) createChunk(ctx context.Context, recs []record.Record) ([]string, error) {
	keys := make([]string, len(recs))
	for i := range recs {
		keys[i] = s.recordKey(recs[i].ID())
	}
	var existing [][]byte
	err := s.read(ctx, "batch_create", func(ctx context.Context) error {
		var err error
		existing, err = s.store.MGet(ctx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i, data := range existing {
		if data != nil {
			return nil, fmt.Errorf("record %s: %w", recs[i].ID(), domain.ErrAlreadyExists)
		}
	}

	now := s.now()
	ids := make([]string, len(recs))
	payloads := make([][]byte, len(recs))
	for i := range recs {
		recs[i] = recs[i].WithTimestamps(now, now)
		data, err := marshalRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		ids[i] = recs[i].ID()
		payloads[i] = data
	}

	err = s.write(ctx, "batch_create", func(b db.Batch) {
		for i := range recs {
			s.addToBatch(b, &recs[i], payloads[i])
		}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Stats reads cardinalities of the kind sets, the tag registry and the master
// id set; no record payloads are fetched.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{
		ByKind: make(map[string]int),
		ByTag:  make(map[string]int),
	}

	err := s.read(ctx, "stats", func(ctx context.Context) error {
		total, err := s.store.SCard(ctx, s.idsKey())
		if err != nil {
			return err
		}
		stats.Total = int(total)

		kinds := record.Kinds()
		kindKeys := make([]string, len(kinds))
		for i, k := range kinds {
			kindKeys[i] = s.kindKey(k)
		}
		kindCounts, err := s.store.SCardMulti(ctx, kindKeys)
		if err != nil {
			return err
		}
		for i, k := range kinds {
			if kindCounts[i] > 0 {
				stats.ByKind[k.String()] = int(kindCounts[i])
			}
		}

		tags, err := s.store.SMembers(ctx, s.tagNamesKey())
		if err != nil {
			return err
		}
		sort.Strings(tags)
		tagKeys := make([]string, len(tags))
		for i, t := range tags {
			tagKeys[i] = s.tagKey(t)
		}
		tagCounts, err := s.store.SCardMulti(ctx, tagKeys)
		if err != nil {
			return err
		}
		for i, t := range tags {
			// The registry keeps tag names forever; skip ones no record carries.
			if tagCounts[i] > 0 {
				stats.ByTag[t] = int(tagCounts[i])
			}
		}
		return nil
	})
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

// --- candidate computation ---

// candidateIDs combines the relevant index sets locally: union within a
// dimension (kinds OR, tags ANY), intersection across dimensions. With no
// structural conditions, the master id set is the candidate set.
func (s *Store) candidateIDs(ctx context.Context, f *filter.Filter) ([]string, error) {
	var candidates map[string]bool

	if len(f.Kinds) > 0 {
		set, err := s.unionMembers(ctx, kindKeys(s, f.Kinds))
		if err != nil {
			return nil, err
		}
		candidates = set
	}
	if len(f.Tags) > 0 {
		keys := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			keys[i] = s.tagKey(t)
		}
		set, err := s.unionMembers(ctx, keys)
		if err != nil {
			return nil, err
		}
		candidates = intersect(candidates, set)
	}
	if f.DomainCategory != "" {
		set, err := s.unionMembers(ctx, []string{s.categoryKey(f.DomainCategory)})
		if err != nil {
			return nil, err
		}
		candidates = intersect(candidates, set)
	}
	if candidates == nil {
		set, err := s.unionMembers(ctx, []string{s.idsKey()})
		if err != nil {
			return nil, err
		}
		candidates = set
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic multi-get order
	return ids, nil
}

func (s *Store) unionMembers(ctx context.Context, keys []string) (map[string]bool, error) {
	set := make(map[string]bool)
	err := s.read(ctx, "smembers", func(ctx context.Context) error {
		for _, key := range keys {
			members, err := s.store.SMembers(ctx, key)
			if err != nil {
				return err
			}
			for _, m := range members {
				set[m] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// fetchRecords multi-gets candidate records and applies the structural filter
// as a safety net. A nil payload behind an index entry is an inconsistency:
// it is logged, counted and pruned, never returned.
func (s *Store) fetchRecords(ctx context.Context, ids []string, f *filter.Filter) ([]record.Record, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	var payloads [][]byte
	err := s.read(ctx, "mget", func(ctx context.Context) error {
		var err error
		payloads, err = s.store.MGet(ctx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, len(ids))
	var dangling []string
	for i, data := range payloads {
		if data == nil {
			dangling = append(dangling, ids[i])
			continue
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		if f.Matches(&rec) {
			records = append(records, rec)
		}
	}

	if len(dangling) > 0 {
		s.repairIndexes(ctx, dangling, f)
	}
	return records, nil
}

// repairIndexes prunes dangling index entries best-effort. Failures are logged
// and swallowed: repair is observable via logs and metrics only.
func (s *Store) repairIndexes(ctx context.Context, ids []string, f *filter.Filter) {
	s.logger.Warn("pruning dangling index entries",
		zap.Strings("ids", ids),
		zap.Error(domain.ErrIndexInconsistency),
	)
	metrics.IndexRepairsTotal.Add(float64(len(ids)))

	err := s.write(ctx, "index_repair", func(b db.Batch) {
		for _, id := range ids {
			b.SRem(s.idsKey(), id)
			for _, k := range f.Kinds {
				b.SRem(s.kindKey(k), id)
			}
			for _, t := range f.Tags {
				b.SRem(s.tagKey(t), id)
			}
			if f.DomainCategory != "" {
				b.SRem(s.categoryKey(f.DomainCategory), id)
			}
		}
	})
	if err != nil {
		s.logger.Warn("index repair failed", zap.Error(err))
	}
}

// singleSetKey reports whether exactly one index set decides the filter.
func (s *Store) singleSetKey(f *filter.Filter) (string, bool) {
	dims := 0
	var key string
	if len(f.Kinds) > 0 {
		if len(f.Kinds) > 1 {
			return "", false
		}
		dims++
		key = s.kindKey(f.Kinds[0])
	}
	if len(f.Tags) > 0 {
		if len(f.Tags) > 1 {
			return "", false
		}
		dims++
		key = s.tagKey(f.Tags[0])
	}
	if f.DomainCategory != "" {
		dims++
		key = s.categoryKey(f.DomainCategory)
	}
	if dims == 0 {
		return s.idsKey(), true
	}
	return key, dims == 1
}

// --- batch helpers ---

// addToBatch appends the primary write and every index membership for rec.
func (s *Store) addToBatch(b db.Batch, rec *record.Record, data []byte) {
	b.Set(s.recordKey(rec.ID()), data)
	b.SAdd(s.idsKey(), rec.ID())
	b.SAdd(s.kindKey(rec.Kind()), rec.ID())
	for _, t := range rec.Tags() {
		b.SAdd(s.tagKey(t), rec.ID())
		b.SAdd(s.tagNamesKey(), t)
	}
	if cat := rec.DomainCategory(); cat != "" {
		b.SAdd(s.categoryKey(cat), rec.ID())
	}
}

// removeFromBatch appends the primary delete and every index removal for rec.
func (s *Store) removeFromBatch(b db.Batch, rec *record.Record) {
	b.Del(s.recordKey(rec.ID()))
	b.SRem(s.idsKey(), rec.ID())
	b.SRem(s.kindKey(rec.Kind()), rec.ID())
	for _, t := range rec.Tags() {
		b.SRem(s.tagKey(t), rec.ID())
	}
	if cat := rec.DomainCategory(); cat != "" {
		b.SRem(s.categoryKey(cat), rec.ID())
	}
}

// reindexBatch appends set mutations for attributes that changed between old
// and updated.
func (s *Store) reindexBatch(b db.Batch, old, updated *record.Record) {
	if old.Kind() != updated.Kind() {
		b.SRem(s.kindKey(old.Kind()), old.ID())
		b.SAdd(s.kindKey(updated.Kind()), updated.ID())
	}
	for _, t := range old.Tags() {
		if !updated.HasTag(t) {
			b.SRem(s.tagKey(t), old.ID())
		}
	}
	for _, t := range updated.Tags() {
		if !old.HasTag(t) {
			b.SAdd(s.tagKey(t), updated.ID())
			b.SAdd(s.tagNamesKey(), t)
		}
	}
	if old.DomainCategory() != updated.DomainCategory() {
		if cat := old.DomainCategory(); cat != "" {
			b.SRem(s.categoryKey(cat), old.ID())
		}
		if cat := updated.DomainCategory(); cat != "" {
			b.SAdd(s.categoryKey(cat), updated.ID())
		}
	}
}

// --- io helpers ---

// read runs fn under the per-operation timeout, retrying transport failures a
// bounded number of times with linear backoff.
func (s *Store) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= readRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err = fn(opCtx)
		cancel()
		if err == nil || !errors.Is(err, db.ErrUnavailable) {
			return err
		}
		if attempt < readRetries {
			metrics.StoreRetriesTotal.WithLabelValues(op).Inc()
			time.Sleep(retryBackoff * time.Duration(attempt+1))
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
}

// write submits one atomic batch under the per-operation timeout. Writes are
// not retried: only the caller knows whether a retry is safe.
func (s *Store) write(ctx context.Context, op string, fn func(b db.Batch)) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.store.Tx(opCtx, fn); err != nil {
		if errors.Is(err, db.ErrUnavailable) {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrBackendUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// writeRetried is write with read-style retries, for idempotent mutations.
func (s *Store) writeRetried(ctx context.Context, op string, fn func(b db.Batch)) error {
	return s.read(ctx, op, func(ctx context.Context) error {
		return s.store.Tx(ctx, fn)
	})
}

func (s *Store) existsRead(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.read(ctx, "exists", func(ctx context.Context) error {
		var err error
		exists, err = s.store.Exists(ctx, key)
		return err
	})
	return exists, err
}

// --- keys ---

func (s *Store) recordKey(id string) string { return s.prefix + "ctx:" + id }

func (s *Store) idsKey() string { return s.prefix + "ids" }

func (s *Store) tagNamesKey() string { return s.prefix + "tags" }

func (s *Store) kindKey(k record.Kind) string { return s.prefix + "idx:kind:" + k.String() }

func (s *Store) tagKey(t string) string { return s.prefix + "idx:tag:" + t }

func (s *Store) categoryKey(c string) string { return s.prefix + "idx:category:" + c }

func kindKeys(s *Store, kinds []record.Kind) []string {
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = s.kindKey(k)
	}
	return keys
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
