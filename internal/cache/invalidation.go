package cache

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bazaarlabs/go-market-sync/models"
)

// Event describes a cache invalidation: the entity that changed plus every
// key or glob pattern that must be dropped because of it.
type Event struct {
	EntityType   string
	EntityID     string
	AffectedKeys []string
}

// InvalidationFor builds the invalidation event for a changed entity,
// including the cascades the marketplace domain requires:
//
//   - a listing invalidates every feed page and search result that could
//     contain it;
//   - a review invalidates the reviewed profile (passed as relatedIDs[0];
//     without it, every cached profile is dropped);
//   - a favorite invalidates the favorited listing (the favorite shares the
//     listing's id).
func InvalidationFor(entityType, entityID string, relatedIDs ...string) Event {
	keys := []string{EntityKey(entityType, entityID)}

	switch entityType {
	case models.EntityTypeListing:
		keys = append(keys,
			listPattern(models.EntityTypeListing),
			queryPattern(models.EntityTypeListing),
		)
	case models.EntityTypeReview:
		if len(relatedIDs) > 0 && relatedIDs[0] != "" {
			keys = append(keys, EntityKey(models.EntityTypeProfile, relatedIDs[0]))
		} else {
			keys = append(keys, typePattern(models.EntityTypeProfile))
		}
	case models.EntityTypeFavorite:
		keys = append(keys,
			EntityKey(models.EntityTypeListing, entityID),
			listPattern(models.EntityTypeFavorite),
		)
	case models.EntityTypePost:
		keys = append(keys, listPattern(models.EntityTypePost))
	}

	return Event{EntityType: entityType, EntityID: entityID, AffectedKeys: keys}
}

func typePattern(entityType string) string {
	return strings.Join([]string{KeyPrefix, KeyVersion, entityType, "*"}, ":")
}

func listPattern(entityType string) string {
	return strings.Join([]string{KeyPrefix, KeyVersion, entityType, "list", "*"}, ":")
}

func queryPattern(entityType string) string {
	return strings.Join([]string{KeyPrefix, KeyVersion, entityType, "query", "*"}, ":")
}

// CompilePattern turns a glob-style pattern (only `*` is special, matching
// any run of characters) into an anchored regular expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(pattern, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile invalidation pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Matches reports whether key matches the glob pattern. A pattern that fails
// to compile matches nothing.
func Matches(pattern, key string) bool {
	re, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(key)
}

// FilterKeys returns the subset of keys affected by the event. Entries in
// AffectedKeys without a wildcard are compared literally.
func FilterKeys(ev Event, keys []string) []string {
	var matched []string
	for _, key := range keys {
		for _, pattern := range ev.AffectedKeys {
			if !strings.Contains(pattern, "*") {
				if pattern == key {
					matched = append(matched, key)
					break
				}
				continue
			}
			if Matches(pattern, key) {
				matched = append(matched, key)
				break
			}
		}
	}
	return matched
}
