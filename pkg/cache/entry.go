package cache

import (
	"time"

	"github.com/Sternrassler/appliance-stats/pkg/jsonutil"
)

// CacheEntry is the serialized form of a resolved response in a shared store.
type CacheEntry struct {
	// Data is the fully resolved response as JSON.
	Data []byte `json:"data"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry encodes data into an entry valid for ttl.
func NewEntry(data any, ttl time.Duration) (*CacheEntry, error) {
	encoded, err := jsonutil.Marshal(data)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &CacheEntry{
		Data:     encoded,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}, nil
}

// Value decodes the stored response.
func (e *CacheEntry) Value() (any, error) {
	return jsonutil.Unmarshal(e.Data)
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
