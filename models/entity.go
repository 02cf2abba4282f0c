package models

import (
	"encoding/json"
	"time"
)

// Well-known marketplace entity types eligible for synchronization.
const (
	EntityTypeListing  = "listing"
	EntityTypePost     = "post"
	EntityTypeFavorite = "favorite"
	EntityTypeReview   = "review"
	EntityTypeProfile  = "profile"
	EntityTypeMessage  = "message"
)

// Entity is the envelope for any syncable marketplace object held in the
// local cache. Domain fields live in Payload as opaque JSON; the engine only
// reads and writes the sync metadata around it.
//
// Version is server-assigned and monotonically increasing. LocallyModified
// and PendingSync are client-only flags and are never sent to the backend:
// LocallyModified means the payload diverged from the last synced snapshot,
// PendingSync means the entity is queued for the next push phase.
type Entity struct {
	EntityType      string          `json:"entity_type"`
	ID              string          `json:"id"`
	Payload         json.RawMessage `json:"payload"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CachedAt        time.Time       `json:"cached_at"`
	LocallyModified bool            `json:"locally_modified"`
	PendingSync     bool            `json:"pending_sync"`
	Deleted         bool            `json:"deleted"`
}

// Key returns the (entityType, id) identity of the entity as a single string,
// used for per-entity serialization and map indexing.
func (e Entity) Key() string {
	return e.EntityType + "/" + e.ID
}

// IsDirty reports whether the entity carries local edits that still need to
// reach the backend.
func (e Entity) IsDirty() bool {
	return e.LocallyModified || e.PendingSync
}
