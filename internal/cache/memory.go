package cache

import (
	"context"
	"path"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	items *ttlcache.Cache[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	return &MemoryStore{items: items}
}

// Start runs the expiry loop until Stop is called.
func (s *MemoryStore) Start() {
	go s.items.Start()
}

func (s *MemoryStore) Stop() {
	s.items.Stop()
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.items.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range s.items.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			s.items.Delete(key)
			removed++
		}
	}
	return removed, nil
}
