package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kontext-io/kontext/internal/config"
	dbredis "github.com/kontext-io/kontext/internal/db/redis"
	"github.com/kontext-io/kontext/internal/store/memory"
	"github.com/kontext-io/kontext/internal/store/redis"
)

// Compile-time checks: both backends implement Store.
var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*redis.Store)(nil)
)

// New selects and builds the configured backend. Called once at startup; the
// choice is fixed for the process lifetime.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		s := memory.New(memory.Config{
			MaxSize:   cfg.Store.Memory.MaxSize,
			Evict:     cfg.Store.Memory.Eviction == config.EvictionFIFO,
			ChunkSize: cfg.Ingest.ChunkSize,
		}, logger)
		return NewInstrumented(s, "memory"), func() {}, nil

	case config.BackendRedis:
		client, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Store.Redis.Addrs,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		readiness := time.Duration(cfg.Store.Redis.ReadinessTimeout) * time.Second
		if err := client.WaitForReady(ctx, readiness); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis not ready: %w", err)
		}
		s := redis.New(client, redis.Config{
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
			OpTimeout: time.Duration(cfg.Store.Redis.OpTimeoutSec) * time.Second,
			ChunkSize: cfg.Ingest.ChunkSize,
		}, logger)
		return NewInstrumented(s, "redis"), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
