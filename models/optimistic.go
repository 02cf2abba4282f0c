package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of user mutation an optimistic update or queued
// operation represents.
type Operation string

const (
	OperationCreate     Operation = "create"
	OperationUpdate     Operation = "update"
	OperationDelete     Operation = "delete"
	OperationFavorite   Operation = "favorite"
	OperationUnfavorite Operation = "unfavorite"
)

// UpdateState is the lifecycle state of an optimistic update.
//
// Legal transitions:
//
//	Pending → Applied → Syncing → Confirmed
//	Pending/Applied → RolledBack
//	Applied/Syncing → Failed → Pending (retry) | RolledBack (terminal)
//
// Confirmed and RolledBack are terminal; no further transition is accepted.
type UpdateState string

const (
	UpdateStatePending    UpdateState = "pending"
	UpdateStateApplied    UpdateState = "applied"
	UpdateStateSyncing    UpdateState = "syncing"
	UpdateStateConfirmed  UpdateState = "confirmed"
	UpdateStateFailed     UpdateState = "failed"
	UpdateStateRolledBack UpdateState = "rolled_back"
)

// Terminal reports whether no further state transition is accepted.
func (s UpdateState) Terminal() bool {
	return s == UpdateStateConfirmed || s == UpdateStateRolledBack
}

// OptimisticUpdate records a client-visible speculative mutation: the value
// shown to the user before the backend confirmed it, plus the original value
// needed to roll it back.
type OptimisticUpdate struct {
	ID              string          `json:"id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Operation       Operation       `json:"operation"`
	OriginalValue   json.RawMessage `json:"original_value,omitempty"`
	OptimisticValue json.RawMessage `json:"optimistic_value"`
	CreatedAt       time.Time       `json:"created_at"`
	State           UpdateState     `json:"state"`
	RetryCount      int             `json:"retry_count"`
}

// ErrorCategory classifies a failed backend call for retry-vs-rollback
// decisions.
type ErrorCategory string

const (
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryServerError   ErrorCategory = "server_error"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConflict      ErrorCategory = "conflict"
	ErrorCategoryAuthorization ErrorCategory = "authorization"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// Retryable reports whether updates failing with this category may be retried
// at all. Validation, conflict, authorization and unknown failures always
// roll back.
func (c ErrorCategory) Retryable() bool {
	return c == ErrorCategoryNetwork || c == ErrorCategoryServerError
}

// RollbackDecision is the outcome of the retry/rollback decision table.
type RollbackDecision struct {
	ShouldRollback bool          `json:"should_rollback"`
	Category       ErrorCategory `json:"category"`
	RetryDelay     time.Duration `json:"retry_delay"`
}
