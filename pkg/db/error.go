package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver messages for the failures callers branch on. gorm only translates
// duplicate keys, and only when TranslateError is set.
var (
	duplicateKeyMarkers = []string{
		"duplicate key value violates unique constraint", // postgres 23505
		"Error 1062",               // mysql
		"UNIQUE constraint failed", // sqlite 2067
	}
	timeoutMarkers = []string{
		"canceling statement due to statement timeout", // postgres 57014
		"canceling statement due to lock timeout",      // postgres 55P03
		"Error 1205",                                   // mysql lock wait timeout
		"database is locked",                           // sqlite busy
	}
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return containsAny(err.Error(), duplicateKeyMarkers)
}

// IsTimeoutErr reports a statement that was abandoned because it ran out of
// time, either through the context deadline or a server-side lock/statement
// timeout.
func IsTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return containsAny(err.Error(), timeoutMarkers)
}

func containsAny(msg string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
