package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func limiterConfig(rate float64, burst int) config.Config {
	return config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ClientRate: rate, ClientBurst: burst}}
}

func TestClientLimiterExhaustsBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewClientLimiter(limiterConfig(0.001, 3), client, zaptest.NewLogger(t))
	require.True(t, limiter.Enabled())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := limiter.Allow(ctx, "key-a")
		assert.True(t, res.Allowed, "request %d", i)
	}
	denied := limiter.Allow(ctx, "key-a")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 3, denied.Limit)
	assert.Positive(t, denied.RetryAfter)

	assert.True(t, limiter.Allow(ctx, "key-b").Allowed, "buckets are per key")
}

func TestClientLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewClientLimiter(limiterConfig(1, 1), client, zaptest.NewLogger(t))
	mr.Close()

	assert.True(t, limiter.Allow(context.Background(), "key-a").Allowed)
}

func TestClientLimiterDisabled(t *testing.T) {
	log := zaptest.NewLogger(t)

	var limiter *ClientLimiter
	assert.False(t, limiter.Enabled())
	assert.True(t, limiter.Allow(context.Background(), "k").Allowed)

	assert.Nil(t, NewClientLimiter(config.Config{}, nil, log))
	assert.Nil(t, NewClientLimiter(limiterConfig(1, 1), nil, log))
	assert.Nil(t, NewClientLimiter(limiterConfig(0, 1), redis.NewClient(&redis.Options{Addr: "localhost:0"}), log))
}

func TestClientKeyHidesSecret(t *testing.T) {
	key := clientKey("super-secret")
	assert.NotContains(t, key, "super-secret")
	assert.Equal(t, key, clientKey(" super-secret "))
}

func TestTokenBucketRefills(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket := NewTokenBucket(client)
	ctx := context.Background()

	res, err := bucket.Take(ctx, "bucket", 0.5, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = bucket.Take(ctx, "bucket", 0.5, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.InDelta(t, 2*time.Second, res.RetryAfter, float64(100*time.Millisecond))
	assert.Positive(t, mr.TTL("bucket"))

	_, err = bucket.Take(ctx, "", 1, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 80*time.Second, bucketTTL(1, 40))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
