package cache

import (
	"strings"
)

// KeyPrefix is the namespace of every cache key.
const KeyPrefix = "falcon"

// CacheKey identifies one cached entity.
type CacheKey struct {
	// Resource is the entity kind, e.g. "device".
	Resource string

	// ID is the entity id, e.g. a device aid.
	ID string

	// Variant distinguishes representations of the same entity (api version,
	// facets). Optional.
	Variant string
}

// String generates a deterministic cache key string.
// Format: falcon:resource:id[:variant]
//
// Example:
//
//	falcon:device:4f1a9c:v2
func (k CacheKey) String() string {
	parts := []string{KeyPrefix, normalize(k.Resource), strings.TrimSpace(k.ID)}
	if v := normalize(k.Variant); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, ":")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
