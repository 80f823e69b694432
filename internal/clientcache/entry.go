package clientcache

import "time"

// Category tags an entry with the domain it caches. Categories are entry
// metadata, not part of the key, so clearing a category means enumerating
// stored entries rather than pattern-matching keys.
type Category string

const (
	CategoryUser      Category = "user"
	CategoryTeam      Category = "team"
	CategoryTask      Category = "task"
	CategoryMessage   Category = "message"
	CategoryDashboard Category = "dashboard"
	CategorySettings  Category = "settings"
)

// Tier names the storage backend an entry landed in.
type Tier string

const (
	TierVolatile    Tier = "volatile"
	TierDurable     Tier = "durable"
	TierLargeObject Tier = "large-object"
)

// Entry is a stored cache record: a serialized payload plus the metadata the
// cache needs for category invalidation and expiry enforcement.
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Category  Category  `json:"category"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e Entry) expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Options controls placement and lifetime of a stored value.
type Options struct {
	Category Category
	// TTL for the entry; defaults to one hour.
	TTL time.Duration
	// Persistent routes the entry to the durable tier so it survives
	// across sessions.
	Persistent bool
	// ForceLargeObject routes the entry to the large-object tier
	// regardless of size and persistence.
	ForceLargeObject bool
}

// tier is the common surface the three storage backends implement. All
// methods operate on whole entries; expiry policy lives in TieredCache.
type tier interface {
	name() Tier
	set(entry Entry) error
	get(key string) (Entry, bool)
	remove(key string)
	entries() []Entry
	clear()
	close() error
}
