package cache

import "time"

// Default TTLs. Preferences change rarely, so they live a full day;
// everything else is capped at five minutes.
const (
	DefaultTTL     = 5 * time.Minute
	PreferencesTTL = 24 * time.Hour
)

// TTLPolicy maps categories to their fixed expiration windows. The TTL
// is never stored with an entry; callers resolve it from the key's
// category at read time.
type TTLPolicy struct {
	Default    time.Duration
	Categories map[string]time.Duration
}

// DefaultPolicy returns the standard policy: 5 minutes for everything,
// 24 hours for the preferences category.
func DefaultPolicy() TTLPolicy {
	return TTLPolicy{
		Default: DefaultTTL,
		Categories: map[string]time.Duration{
			CategoryPreferences: PreferencesTTL,
		},
	}
}

// TTLFor returns the expiration window for a category.
func (p TTLPolicy) TTLFor(category string) time.Duration {
	if ttl, ok := p.Categories[category]; ok {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTTL
}
