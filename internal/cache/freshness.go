package cache

import (
	"time"

	"github.com/bazaarlabs/go-market-sync/models"
)

// Freshness classifies how trustworthy a cached value still is.
type Freshness string

const (
	FreshnessFresh   Freshness = "fresh"
	FreshnessStale   Freshness = "stale"
	FreshnessExpired Freshness = "expired"
	// FreshnessUnknown is returned when cachedAt lies in the future,
	// i.e. the device clock moved backwards since the write.
	FreshnessUnknown Freshness = "unknown"
)

// DefaultTTL applies to entity types missing from the TTL table.
const DefaultTTL = 5 * time.Minute

// staleFraction of the TTL marks the stale threshold.
const staleFraction = 0.70

// ttlTable holds the per-entity-type freshness budget. Chat messages churn
// fastest, profiles slowest.
var ttlTable = map[string]time.Duration{
	models.EntityTypeListing:  5 * time.Minute,
	models.EntityTypePost:     10 * time.Minute,
	models.EntityTypeFavorite: 2 * time.Minute,
	models.EntityTypeReview:   15 * time.Minute,
	models.EntityTypeProfile:  30 * time.Minute,
	models.EntityTypeMessage:  1 * time.Minute,
}

// TTLFor returns the freshness budget for an entity type.
func TTLFor(entityType string) time.Duration {
	if ttl, ok := ttlTable[entityType]; ok {
		return ttl
	}
	return DefaultTTL
}

// StaleThreshold returns the age at which a cached value of the given type
// turns stale (70% of its TTL).
func StaleThreshold(entityType string) time.Duration {
	return time.Duration(staleFraction * float64(TTLFor(entityType)))
}

// State classifies a cache timestamp. Boundary semantics: age == TTL is
// already expired, age == stale threshold is already stale.
func State(cachedAt time.Time, entityType string, now time.Time) Freshness {
	if cachedAt.After(now) {
		return FreshnessUnknown
	}

	age := now.Sub(cachedAt)
	switch {
	case age >= TTLFor(entityType):
		return FreshnessExpired
	case age >= StaleThreshold(entityType):
		return FreshnessStale
	default:
		return FreshnessFresh
	}
}

// Score maps a cache timestamp to [0,1]: 1 is freshly written, 0 is at or
// past its TTL.
func Score(cachedAt time.Time, entityType string, now time.Time) float64 {
	age := now.Sub(cachedAt)
	score := 1 - float64(age)/float64(TTLFor(entityType))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ShouldRevalidate reports whether cached data of the given age should be
// re-fetched. Expired, stale and unknown states always revalidate. Fresh data
// revalidates early when the user is actively viewing it and the score has
// dropped below 0.5.
func ShouldRevalidate(cachedAt time.Time, entityType string, now time.Time, userFocused bool) bool {
	switch State(cachedAt, entityType, now) {
	case FreshnessExpired, FreshnessStale, FreshnessUnknown:
		return true
	}
	return userFocused && Score(cachedAt, entityType, now) < 0.5
}
