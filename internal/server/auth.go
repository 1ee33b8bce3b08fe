package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
)

const (
	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
	contextAPIKey       = "api_key"
)

// AdminAuthRequired resolves the bearer token to an editor and stores it on
// the request context.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader(headerAuthorization))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var (
			actor obscontext.Actor
			found bool
		)
		// Compare against every configured token so the match position does not leak through timing.
		for _, candidate := range s.cfg.AdminTokens {
			if subtle.ConstantTimeCompare([]byte(candidate.Token), []byte(token)) == 1 && !found {
				actor = obscontext.Actor{EditorID: candidate.EditorID, Role: candidate.Role}
				found = true
			}
		}
		if !found {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// ClientAPIKeyRequired gates the client configuration route.
func (s *Server) ClientAPIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerAPIKey))
		if key == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		matched := false
		for _, candidate := range s.cfg.ClientAPIKeys {
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
				matched = true
			}
		}
		if !matched {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextAPIKey, key)
		c.Next()
	}
}

// authorize checks the authenticated editor against the RBAC policy.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := obscontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}
