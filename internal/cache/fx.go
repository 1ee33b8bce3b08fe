package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paramstore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(NewLayer),
)

// NewRedisClient returns nil when Redis is not configured; consumers treat a
// nil client as "feature disabled".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) redis.UniversalClient {
	if cfg.Cache.RedisAddr == "" {
		return nil
	}
	if cfg.Cache.Backend != config.CacheBackendRedis && !cfg.RateLimit.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// An unreachable Redis degrades to the fallback path; it must not block startup.
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable at startup", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewStore(lc fx.Lifecycle, cfg config.Config, client redis.UniversalClient, log *zap.Logger) Store {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		if client == nil {
			log.Warn("redis cache backend selected without REDIS_ADDR, caching disabled")
			return NoopStore{}
		}
		return NewRedisStore(client)
	case config.CacheBackendMemory:
		store := NewMemoryStore()
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				store.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				store.Stop()
				return nil
			},
		})
		return store
	default:
		return NoopStore{}
	}
}
