package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket state lives in one hash per key. Fractional tokens are stored
// as strings because Redis truncates Lua numbers in replies; the reply only
// carries integers: allowed flag, whole tokens left, and the wait in ms until
// the next token.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), wait}
`

var errBucketReply = errors.New("ratelimit: unexpected token bucket reply")

// TokenBucket is a Redis-backed token bucket shared by every replica.
type TokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(tokenBucketScript)}
}

// Take consumes one token from the bucket at key, refilling at rate tokens
// per second up to burst.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	if t == nil {
		return nil, errors.New("ratelimit: bucket not configured")
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid bucket key=%q rate=%v burst=%d", key, rate, burst)
	}

	reply, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(reply) != 3 {
		return nil, errBucketReply
	}

	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Limit:      burst,
		Remaining:  int(reply[1]),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket for twice the time it takes to refill fully.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
