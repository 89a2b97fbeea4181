package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kontext-io/kontext/internal/db"
)

// SMembers returns all members of a set. A missing set yields an empty slice.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Smembers().Key(key).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, wrapErr(db.OpSMembers, err)
	}
	return members, nil
}

// SCard returns the cardinality of a set. A missing set yields 0.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Scard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, wrapErr(db.OpSCard, err)
	}
	return n, nil
}

// SCardMulti returns cardinalities for multiple sets in a single DoMulti round-trip.
func (s *Store) SCardMulti(ctx context.Context, keys []string) ([]int64, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Scard().Key(key).Build()
	}
	results := s.client.DoMulti(ctx, cmds...)
	out := make([]int64, len(results))
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return nil, wrapErr(db.OpSCard, err)
		}
		out[i] = n
	}
	return out, nil
}
