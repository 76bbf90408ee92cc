package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one cached entity.
type Entry struct {
	// Data is the JSON encoded entity
	Data json.RawMessage `json:"data"`

	// CachedAt is when the entity was stored
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry stops being served
	Expires time.Time `json:"expires"`
}

// NewEntry encodes v into an entry living for ttl.
func NewEntry(v any, ttl time.Duration) (*Entry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entity: %w", err)
	}
	now := time.Now()
	return &Entry{
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}, nil
}

// Decode unmarshals the cached entity into v.
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
