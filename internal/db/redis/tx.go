package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kontext-io/kontext/internal/db"
)

// txBatch buffers write commands until Tx wraps them in MULTI/EXEC.
// Commands are built lazily against the dedicated connection's builder.
type txBatch struct {
	build []func(b rueidis.Builder) rueidis.Completed
}

func (t *txBatch) Set(key string, value []byte) {
	t.build = append(t.build, func(b rueidis.Builder) rueidis.Completed {
		return b.Set().Key(key).Value(string(value)).Build()
	})
}

func (t *txBatch) Del(key string) {
	t.build = append(t.build, func(b rueidis.Builder) rueidis.Completed {
		return b.Del().Key(key).Build()
	})
}

func (t *txBatch) SAdd(key string, members ...string) {
	t.build = append(t.build, func(b rueidis.Builder) rueidis.Completed {
		return b.Sadd().Key(key).Member(members...).Build()
	})
}

func (t *txBatch) SRem(key string, members ...string) {
	t.build = append(t.build, func(b rueidis.Builder) rueidis.Completed {
		return b.Srem().Key(key).Member(members...).Build()
	})
}

// Tx executes all commands collected by fn inside one MULTI/EXEC block on a
// dedicated connection, so they either all apply or none do.
func (s *Store) Tx(ctx context.Context, fn func(b db.Batch)) error {
	batch := &txBatch{}
	fn(batch)
	if len(batch.build) == 0 {
		return nil
	}

	return s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		cmds := make(rueidis.Commands, 0, len(batch.build)+2)
		cmds = append(cmds, c.B().Multi().Build())
		for _, build := range batch.build {
			cmds = append(cmds, build(c.B()))
		}
		cmds = append(cmds, c.B().Exec().Build())

		for _, res := range c.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return wrapErr(db.OpExec, err)
			}
		}
		return nil
	})
}
