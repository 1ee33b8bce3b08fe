package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	parameterdomain "github.com/smallbiznis/paramstore/internal/parameter/domain"
)

// queryBool parses an optional boolean query value; empty means unset.
func queryBool(field, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+strings.ToLower(field), "invalid "+field)
	}
	return &parsed, nil
}

// mergeVersionGuardQuery fills the guard from lastKnownVersion/forceUpdate
// query values when the body did not set them. Body values win.
func mergeVersionGuardQuery(c *gin.Context, guard *parameterdomain.VersionGuard) error {
	if guard.LastKnownVersion == nil {
		if raw := strings.TrimSpace(c.Query("lastKnownVersion")); raw != "" {
			version, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return parameterdomain.Invalid("lastKnownVersion", parameterdomain.ErrInvalidVersion)
			}
			guard.LastKnownVersion = &version
		}
	}
	if !guard.ForceUpdate {
		force, err := queryBool("forceUpdate", c.Query("forceUpdate"))
		if err != nil {
			return err
		}
		guard.ForceUpdate = force != nil && *force
	}
	return nil
}
