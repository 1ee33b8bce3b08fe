package cache

import (
	"context"
	"time"
)

// NoopStore always misses. It backs cache-less deployments.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopStore) Delete(context.Context, string) error { return nil }

func (NoopStore) DeletePattern(context.Context, string) (int, error) { return 0, nil }
