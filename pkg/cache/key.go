// Package cache provides the durable result cache for the gateway.
// Entries are keyed by resource category, owning user, and an optional
// sub-resource id, with category-specific fixed-window expiration.
package cache

import (
	"errors"
	"fmt"
	"strings"
)

// keySeparator delimits the segments of a cache key.
const keySeparator = ":"

// Well-known categories.
const (
	CategoryCalendars   = "calendars"
	CategoryEvents      = "events"
	CategoryPreferences = "preferences"
)

// ErrInvalidKey is returned for keys that do not follow the
// category:owner[:resource] shape.
var ErrInvalidKey = errors.New("invalid cache key")

// Key is a parsed cache key. Owner matching during invalidation uses
// the parsed owner segment, never a raw substring test, so clearing
// "bob" can never touch "bobby".
type Key struct {
	Category string
	Owner    string
	Resource string
}

// NewKey builds a key from its segments.
func NewKey(category, owner, resource string) Key {
	return Key{Category: category, Owner: owner, Resource: resource}
}

// ParseKey splits a raw key into its delimiter-bounded segments.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, keySeparator)
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, raw)
	}
	k := Key{Category: parts[0], Owner: parts[1]}
	if len(parts) == 3 {
		k.Resource = parts[2]
	}
	return k, nil
}

// String renders the key in its wire form.
func (k Key) String() string {
	if k.Resource == "" {
		return k.Category + keySeparator + k.Owner
	}
	return k.Category + keySeparator + k.Owner + keySeparator + k.Resource
}

// OwnedBy reports whether the key belongs to the given owner. The
// comparison is against the whole owner segment.
func (k Key) OwnedBy(owner string) bool {
	return k.Owner == owner
}
