// Package cache holds the pure cache-key, freshness and invalidation policy
// for the local entity cache. Nothing in this package performs I/O; every
// function maps inputs to outputs so the policy can be unit-tested in
// isolation and reused by the store and sync layers.
package cache

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Key namespace. Bumping KeyVersion invalidates every previously generated
// key at once.
const (
	KeyPrefix  = "mkt"
	KeyVersion = "v1"
)

var ErrMalformedKey = errors.New("malformed cache key")

// KeyInfo is the decomposition of a generated cache key. Purely derived,
// never persisted on its own.
type KeyInfo struct {
	EntityType string
	EntityID   string
	Variant    string
	IsListKey  bool
	IsQueryKey bool
}

// EntityKey builds the cache key for a single entity:
// prefix:version:entityType:entityID.
func EntityKey(entityType, entityID string) string {
	return strings.Join([]string{KeyPrefix, KeyVersion, entityType, entityID}, ":")
}

// ListKey builds the cache key for one page of a listing/feed query:
// prefix:version:entityType:list:pN:lM.
func ListKey(entityType string, page, limit int) string {
	return fmt.Sprintf("%s:%s:%s:list:p%d:l%d", KeyPrefix, KeyVersion, entityType, page, limit)
}

// QueryKey builds the cache key for an arbitrary search query. The query
// string is reduced to a short stable hash so keys stay bounded:
// prefix:version:entityType:query:hash.
func QueryKey(entityType, query string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(query))
	return fmt.Sprintf("%s:%s:%s:query:%x", KeyPrefix, KeyVersion, entityType, h.Sum64())
}

// ParseKey decomposes a key produced by EntityKey, ListKey or QueryKey back
// into its parts. Keys from a different prefix or version are rejected with
// ErrMalformedKey.
func ParseKey(key string) (KeyInfo, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 3 || parts[0] != KeyPrefix || parts[1] != KeyVersion {
		return KeyInfo{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}

	info := KeyInfo{EntityType: parts[2]}
	rest := parts[3:]
	if len(rest) == 0 {
		return info, nil
	}

	switch rest[0] {
	case "list":
		if len(rest) != 3 {
			return KeyInfo{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		if err := validateListVariant(rest[1], rest[2]); err != nil {
			return KeyInfo{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		info.IsListKey = true
		info.Variant = rest[1] + ":" + rest[2]
	case "query":
		if len(rest) != 2 || rest[1] == "" {
			return KeyInfo{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		info.IsQueryKey = true
		info.Variant = rest[1]
	default:
		if len(rest) != 1 || rest[0] == "" {
			return KeyInfo{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		info.EntityID = rest[0]
	}

	return info, nil
}

func validateListVariant(page, limit string) error {
	if !strings.HasPrefix(page, "p") || !strings.HasPrefix(limit, "l") {
		return ErrMalformedKey
	}
	if _, err := strconv.Atoi(page[1:]); err != nil {
		return ErrMalformedKey
	}
	if _, err := strconv.Atoi(limit[1:]); err != nil {
		return ErrMalformedKey
	}
	return nil
}
