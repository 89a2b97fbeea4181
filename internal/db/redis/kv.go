package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kontext-io/kontext/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, wrapErr(db.OpGet, err)
	}
	return data, nil
}

// MGet fetches multiple keys in one round-trip. Missing keys yield nil entries.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmd := s.b().Mget().Key(keys...).Build()
	arr, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrapErr(db.OpMGet, err)
	}
	out := make([][]byte, len(arr))
	for i, msg := range arr {
		if msg.IsNil() {
			continue
		}
		data, err := msg.AsBytes()
		if err != nil {
			return nil, wrapErr(db.OpMGet, err)
		}
		out[i] = data
	}
	return out, nil
}

// Exists reports whether a key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, wrapErr(db.OpExists, err)
	}
	return n > 0, nil
}
