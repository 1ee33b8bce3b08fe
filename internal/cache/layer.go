package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smallbiznis/paramstore/internal/observability/logger"
	"github.com/smallbiznis/paramstore/internal/observability/metrics"
	"go.uber.org/zap"
)

// Layer wraps a Store and never lets a backend failure escape: errors are
// logged and counted, reads degrade to misses and writes to no-ops.
type Layer struct {
	store   Store
	metrics *metrics.Metrics
}

func NewLayer(store Store, m *metrics.Metrics) *Layer {
	if store == nil {
		store = NoopStore{}
	}
	return &Layer{store: store, metrics: m}
}

func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.fail(ctx, "get", key, err)
		return nil, false
	}
	if ok {
		l.metrics.RecordCache(ctx, "get", "hit")
	} else {
		l.metrics.RecordCache(ctx, "get", "miss")
	}
	return val, ok
}

func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := l.store.Set(ctx, key, value, ttl); err != nil {
		l.fail(ctx, "set", key, err)
		return
	}
	l.metrics.RecordCache(ctx, "set", "ok")
}

func (l *Layer) Delete(ctx context.Context, key string) {
	if err := l.store.Delete(ctx, key); err != nil {
		l.fail(ctx, "delete", key, err)
		return
	}
	l.metrics.RecordCache(ctx, "delete", "ok")
}

func (l *Layer) DeletePattern(ctx context.Context, pattern string) int {
	n, err := l.store.DeletePattern(ctx, pattern)
	if err != nil {
		l.fail(ctx, "scan_delete", pattern, err)
		return n
	}
	l.metrics.RecordCache(ctx, "scan_delete", "ok")
	return n
}

// InvalidateClientConfig drops every cached client configuration snapshot.
func (l *Layer) InvalidateClientConfig(ctx context.Context) {
	l.Delete(ctx, ClientConfigKey(""))
	removed := l.DeletePattern(ctx, ClientConfigPattern())
	logger.FromContext(ctx).Debug("client config cache invalidated", zap.Int("removed", removed))
}

func (l *Layer) fail(ctx context.Context, op, key string, err error) {
	l.metrics.RecordCache(ctx, op, "error")
	logger.FromContext(ctx).Warn("cache backend error, falling back",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

// GetOrCompute returns the cached value for key, or computes, stores and returns it.
// An undecodable cached entry counts as a miss.
func GetOrCompute[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if raw, ok := l.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		logger.FromContext(ctx).Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if raw, err := json.Marshal(value); err == nil {
		l.Set(ctx, key, raw, ttl)
	}
	return value, nil
}
