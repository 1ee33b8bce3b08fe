package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paramstore/internal/config"
	"go.uber.org/zap"
)

const keyClientConfig = "ratelimit:client_config:"

// ClientLimiter throttles the public configuration endpoint per API key.
// A nil limiter allows everything.
type ClientLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewClientLimiter(cfg config.Config, client redis.UniversalClient, log *zap.Logger) *ClientLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Warn("rate limiting enabled without redis, requests will not be limited")
		return nil
	}
	if limitCfg.ClientRate <= 0 || limitCfg.ClientBurst <= 0 {
		log.Warn("client rate limit must be positive, requests will not be limited",
			zap.Float64("rate", limitCfg.ClientRate),
			zap.Int("burst", limitCfg.ClientBurst),
		)
		return nil
	}
	return &ClientLimiter{
		bucket: NewTokenBucket(client),
		log:    log.Named("ratelimit.client"),
		rate:   limitCfg.ClientRate,
		burst:  limitCfg.ClientBurst,
	}
}

func (l *ClientLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for apiKey. Backend failures fail open.
func (l *ClientLimiter) Allow(ctx context.Context, apiKey string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}
	res, err := l.bucket.Take(ctx, clientKey(apiKey), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return &RateLimitResult{Allowed: true, Limit: l.burst}
	}
	return res
}

// clientKey stores a digest so raw API keys never reach Redis.
func clientKey(apiKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(apiKey)))
	return keyClientConfig + hex.EncodeToString(sum[:8])
}
