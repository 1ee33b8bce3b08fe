package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paramstore/internal/observability/logger"
	"go.uber.org/zap"
)

// ClientRateLimit applies the per-API-key token bucket. It must run after
// ClientAPIKeyRequired.
func (s *Server) ClientRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.clientLimiter.Enabled() {
			c.Next()
			return
		}

		res := s.clientLimiter.Allow(c.Request.Context(), c.GetString(contextAPIKey))
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		}
		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logger.FromContext(c.Request.Context()).Warn("client rate limit exceeded",
				zap.String("route", c.FullPath()),
				zap.Int("retry_after_seconds", retryAfter),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
