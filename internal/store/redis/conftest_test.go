package redis

import (
	"context"
	"sync"

	"github.com/kontext-io/kontext/internal/db"
)

// fakeDB is an in-memory double for the db facade. Batches submitted through
// Tx apply under one lock, matching the all-or-nothing contract of the real
// transactional driver.
type fakeDB struct {
	mu   sync.Mutex
	kv   map[string][]byte
	sets map[string]map[string]bool

	// skipNext operations succeed, then failNext operations fail with failErr.
	skipNext int
	failNext int
	failErr  error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		kv:   make(map[string][]byte),
		sets: make(map[string]map[string]bool),
	}
}

func (f *fakeDB) failNTimes(n int, err error) {
	f.failAfter(0, n, err)
}

// failAfter lets the next skip operations succeed, then fails the following
// n operations with err.
func (f *fakeDB) failAfter(skip, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipNext = skip
	f.failNext = n
	f.failErr = err
}

// takeFailure must be called with the lock held.
func (f *fakeDB) takeFailure() error {
	if f.skipNext > 0 {
		f.skipNext--
		return nil
	}
	if f.failNext > 0 {
		f.failNext--
		return f.failErr
	}
	return nil
}

func (f *fakeDB) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	data, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (f *fakeDB) MGet(_ context.Context, keys []string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if data, ok := f.kv[key]; ok {
			out[i] = data
		}
	}
	return out, nil
}

func (f *fakeDB) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return false, err
	}
	_, ok := f.kv[key]
	return ok, nil
}

func (f *fakeDB) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (f *fakeDB) SCard(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return 0, err
	}
	return int64(len(f.sets[key])), nil
}

func (f *fakeDB) SCardMulti(_ context.Context, keys []string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	out := make([]int64, len(keys))
	for i, key := range keys {
		out[i] = int64(len(f.sets[key]))
	}
	return out, nil
}

func (f *fakeDB) Tx(_ context.Context, fn func(b db.Batch)) error {
	var b fakeBatch
	fn(&b)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	for _, op := range b.ops {
		op(f)
	}
	return nil
}

// setMember must be called with the lock held.
func (f *fakeDB) setMember(key, member string, present bool) {
	set, ok := f.sets[key]
	if !ok {
		if !present {
			return
		}
		set = make(map[string]bool)
		f.sets[key] = set
	}
	if present {
		set[member] = true
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(f.sets, key)
	}
}

type fakeBatch struct {
	ops []func(f *fakeDB)
}

func (b *fakeBatch) Set(key string, value []byte) {
	data := append([]byte(nil), value...)
	b.ops = append(b.ops, func(f *fakeDB) { f.kv[key] = data })
}

func (b *fakeBatch) Del(key string) {
	b.ops = append(b.ops, func(f *fakeDB) { delete(f.kv, key) })
}

func (b *fakeBatch) SAdd(key string, members ...string) {
	b.ops = append(b.ops, func(f *fakeDB) {
		for _, m := range members {
			f.setMember(key, m, true)
		}
	})
}

func (b *fakeBatch) SRem(key string, members ...string) {
	b.ops = append(b.ops, func(f *fakeDB) {
		for _, m := range members {
			f.setMember(key, m, false)
		}
	})
}
