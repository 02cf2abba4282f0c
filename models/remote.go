package models

import "time"

// Ack is the backend's acknowledgement of a push, insert or delete. It must
// carry enough to update the local sync metadata: the server-assigned version
// and the authoritative update timestamp.
type Ack struct {
	EntityID  string    `json:"entity_id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
