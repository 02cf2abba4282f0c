package models

import "time"

// ConflictStrategy selects how a detected write-write conflict is resolved.
type ConflictStrategy string

const (
	// StrategyLastWriteWins compares UpdatedAt timestamps; the later write
	// wins, ties are broken in favor of the remote copy.
	StrategyLastWriteWins ConflictStrategy = "last_write_wins"
	// StrategyClientWins always keeps the local copy.
	StrategyClientWins ConflictStrategy = "client_wins"
	// StrategyServerWins always keeps the remote copy.
	StrategyServerWins ConflictStrategy = "server_wins"
	// StrategyManual defers resolution: the conflict is persisted to the
	// conflict queue and the local copy is left untouched until a human
	// picks a winner.
	StrategyManual ConflictStrategy = "manual"
)

// ConflictChoice names the side a human picked when manually resolving.
type ConflictChoice string

const (
	ChoiceLocal  ConflictChoice = "local"
	ChoiceRemote ConflictChoice = "remote"
	// ChoiceCustom replaces the payload with an explicit value supplied by
	// the caller.
	ChoiceCustom ConflictChoice = "custom"
)

// Conflict queue entry statuses.
const (
	ConflictStatusPending  = "pending"
	ConflictStatusResolved = "resolved"
)

// ConflictInfo pairs the local and remote snapshots of one entity, captured
// when a dirty local copy meets a materially different remote version in the
// same sync pass. It is transient: created and consumed within one resolution
// call. Deferred (manual) conflicts are persisted through the conflict
// repository instead.
type ConflictInfo struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Local      Entity    `json:"local"`
	Remote     Entity    `json:"remote"`
	DetectedAt time.Time `json:"detected_at"`
	Status     string    `json:"status"`
}
