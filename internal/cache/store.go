package cache

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"
	"time"
)

// Store is a fallible key/value backend with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a glob pattern and reports how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

const (
	clientConfigPrefix = "client_config:"
	identityPrefix     = "identity:"
)

// ClientConfigKey is the key for the resolved client configuration of locale.
// An empty locale maps to the locale-independent snapshot.
func ClientConfigKey(locale string) string {
	if locale == "" {
		return clientConfigPrefix + "default"
	}
	return clientConfigPrefix + locale
}

// ClientConfigPattern matches every client configuration snapshot.
func ClientConfigPattern() string {
	return clientConfigPrefix + "*"
}

func IdentityKey(editorID string) string {
	return identityPrefix + editorID
}
