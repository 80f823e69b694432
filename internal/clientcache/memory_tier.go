package clientcache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// memoryTier is the volatile, session-scoped backend. Entries live only as
// long as the process; per-item TTLs are enforced by the underlying cache.
type memoryTier struct {
	cache *ttlcache.Cache[string, Entry]
}

func newMemoryTier() *memoryTier {
	cache := ttlcache.New[string, Entry](
		ttlcache.WithDisableTouchOnHit[string, Entry](),
	)
	go cache.Start()

	return &memoryTier{cache: cache}
}

func (m *memoryTier) name() Tier {
	return TierVolatile
}

func (m *memoryTier) set(entry Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	m.cache.Set(entry.Key, entry, ttl)
	return nil
}

func (m *memoryTier) get(key string) (Entry, bool) {
	item := m.cache.Get(key)
	if item == nil {
		return Entry{}, false
	}
	return item.Value(), true
}

func (m *memoryTier) remove(key string) {
	m.cache.Delete(key)
}

func (m *memoryTier) entries() []Entry {
	collected := make([]Entry, 0, m.cache.Len())
	m.cache.Range(func(item *ttlcache.Item[string, Entry]) bool {
		collected = append(collected, item.Value())
		return true
	})
	return collected
}

func (m *memoryTier) clear() {
	m.cache.DeleteAll()
}

func (m *memoryTier) close() error {
	m.cache.Stop()
	return nil
}
