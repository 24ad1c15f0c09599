package intended

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the intended route in process, expiring it after ttl.
type MemoryStore struct {
	mu    sync.Mutex // makes Consume a single read-then-delete
	key   string
	cache *cache.Cache
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(key string, ttl time.Duration) *MemoryStore {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		key:   key,
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (m *MemoryStore) Set(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(m.key, path, cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Consume(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, found := m.cache.Get(m.key)
	if !found {
		return "", false, nil
	}
	m.cache.Delete(m.key)
	path, ok := v.(string)
	return path, ok && path != "", nil
}
