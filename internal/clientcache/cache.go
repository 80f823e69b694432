package clientcache

import (
	"encoding/json"
	"path/filepath"
	"time"

	"collabhub.app/config"
	"collabhub.app/pkg/errors"
	"collabhub.app/pkg/validation"
)

const defaultEntryTTL = time.Hour

// TieredCache unifies three storage backends behind one API: a volatile
// in-memory tier, a durable sqlite tier and a filesystem large-object tier.
// Placement is a write-time policy; readers never need to know which tier a
// key landed in. The cache is never a system of record: an absent entry
// means "unknown", not "does not exist".
type TieredCache struct {
	memory    *memoryTier
	durable   *durableTier
	blob      *blobTier
	threshold int
}

// New creates a tiered cache rooted at the configured directory.
func New(cfg *config.ClientCacheConfig) (*TieredCache, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError("client cache config cannot be nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blob, err := newBlobTier(filepath.Join(cfg.Dir, "blobs"))
	if err != nil {
		return nil, err
	}

	durable, err := newDurableTier(filepath.Join(cfg.Dir, cfg.DurableFile))
	if err != nil {
		return nil, err
	}

	return &TieredCache{
		memory:    newMemoryTier(),
		durable:   durable,
		blob:      blob,
		threshold: cfg.LargeObjectThreshold,
	}, nil
}

// Close releases tier resources.
func (t *TieredCache) Close() error {
	_ = t.memory.close()
	_ = t.blob.close()
	return t.durable.close()
}

func (t *TieredCache) tiers() []tier {
	return []tier{t.memory, t.durable, t.blob}
}

// selectTier applies the placement policy: oversized or explicitly flagged
// values go to the large-object tier regardless of persistence; otherwise
// persistence decides between the durable and volatile tiers.
func (t *TieredCache) selectTier(size int, opts Options) tier {
	if opts.ForceLargeObject || size > t.threshold {
		return t.blob
	}
	if opts.Persistent {
		return t.durable
	}
	return t.memory
}

// Set serializes value and stores it in the tier the options and payload
// size select. A key lives in exactly one tier; re-setting moves it if the
// placement changes.
func (t *TieredCache) Set(key string, value interface{}, opts Options) error {
	if !validation.IsNotEmpty(key) {
		return errors.NewValidationError("cache key cannot be empty")
	}
	if opts.Category != "" && !validation.IsValidCacheCategory(string(opts.Category)) {
		return errors.NewValidationError("unknown cache category: " + string(opts.Category))
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewSerializationError("failed to encode cache value", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultEntryTTL
	}

	now := time.Now()
	entry := Entry{
		Key:       key,
		Value:     data,
		Category:  opts.Category,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	target := t.selectTier(len(data), opts)
	for _, tr := range t.tiers() {
		if tr != target {
			tr.remove(key)
		}
	}

	return target.set(entry)
}

// Get looks the key up across all tiers and unmarshals the payload into
// dest. Expired entries are evicted and treated as absent.
func (t *TieredCache) Get(key string, dest interface{}) bool {
	for _, tr := range t.tiers() {
		entry, found := tr.get(key)
		if !found {
			continue
		}
		if entry.expired() {
			tr.remove(key)
			return false
		}
		return json.Unmarshal(entry.Value, dest) == nil
	}
	return false
}

// GetOrDefault behaves like Get but writes the supplied default into dest
// when the key is absent or expired. The returned bool reports whether the
// value came from the cache.
func (t *TieredCache) GetOrDefault(key string, dest, def interface{}) bool {
	if t.Get(key, dest) {
		return true
	}

	if data, err := json.Marshal(def); err == nil {
		_ = json.Unmarshal(data, dest)
	}
	return false
}

// Remove deletes the key from every tier.
func (t *TieredCache) Remove(key string) {
	for _, tr := range t.tiers() {
		tr.remove(key)
	}
}

// ClearByCategory removes every entry tagged with the category across all
// three tiers, returning how many entries were dropped.
func (t *TieredCache) ClearByCategory(category Category) int {
	removed := 0
	for _, tr := range t.tiers() {
		for _, entry := range tr.entries() {
			if entry.Category == category {
				tr.remove(entry.Key)
				removed++
			}
		}
	}
	return removed
}

// ClearAll empties every tier.
func (t *TieredCache) ClearAll() {
	for _, tr := range t.tiers() {
		tr.clear()
	}
}

// Keys returns the keys of all live entries across tiers.
func (t *TieredCache) Keys() []string {
	keys := make([]string, 0)
	for _, tr := range t.tiers() {
		for _, entry := range tr.entries() {
			if entry.expired() {
				continue
			}
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

// TierStats summarizes one tier's live contents.
type TierStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// StorageStats reports per-tier entry counts and payload sizes.
type StorageStats struct {
	Volatile    TierStats `json:"volatile"`
	Durable     TierStats `json:"durable"`
	LargeObject TierStats `json:"largeObject"`
}

// Stats gathers storage statistics across all tiers.
func (t *TieredCache) Stats() StorageStats {
	collect := func(tr tier) TierStats {
		stats := TierStats{}
		for _, entry := range tr.entries() {
			if entry.expired() {
				continue
			}
			stats.Entries++
			stats.Bytes += int64(len(entry.Value))
		}
		return stats
	}

	return StorageStats{
		Volatile:    collect(t.memory),
		Durable:     collect(t.durable),
		LargeObject: collect(t.blob),
	}
}
