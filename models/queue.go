package models

import (
	"encoding/json"
	"time"
)

// Offline queue entry statuses. A dead entry has exhausted its retries; it is
// retained for inspection but never picked up by a flush again.
const (
	QueueStatusPending = "pending"
	QueueStatusSending = "sending"
	QueueStatusSent    = "sent"
	QueueStatusFailed  = "failed"
	QueueStatusDead    = "dead"
)

// QueuedOperation is the durable retry unit for a mutation made while the
// backend was unreachable. It is distinct from an OptimisticUpdate: the
// update tracks the client-visible state transition, the queued operation
// tracks the deferred network call.
type QueuedOperation struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	Status     string          `json:"status"`
}

// Retryable reports whether a flush may still attempt this operation.
func (q QueuedOperation) Retryable(maxRetries int) bool {
	if q.Status == QueueStatusDead || q.Status == QueueStatusSent {
		return false
	}
	return q.RetryCount < maxRetries
}
