package cache

import (
	stderrors "errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"nolcrawler/pkg/errors"
)

// MemcacheService backs the rate-limit guard with a shared memcache
// instance so every crawler process backs off together.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService connects to the memcache server at serverAddr
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
	}
}

// Get returns the stored value. A miss surfaces as memcache's own
// sentinel so callers can tell "guard not armed" from a broken store.
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if stderrors.Is(err, memcache.ErrCacheMiss) {
			return nil, err
		}
		return nil, errors.NewCache("memcache", "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return errors.NewCache("memcache", "set "+key, err)
	}
	return nil
}

// Delete drops a key. A key that already expired is not an error.
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err != nil && !stderrors.Is(err, memcache.ErrCacheMiss) {
		return errors.NewCache("memcache", "delete "+key, err)
	}
	return nil
}
