package models

import (
	"fmt"
	"time"
)

// SyncPhase is the coarse outcome of a full sync attempt.
type SyncPhase string

const (
	SyncPhaseIdle             SyncPhase = "idle"
	SyncPhaseSyncing          SyncPhase = "syncing"
	SyncPhaseOffline          SyncPhase = "offline"
	SyncPhaseError            SyncPhase = "error"
	SyncPhaseConflictsPending SyncPhase = "conflicts_pending"
)

// SyncState is reported to callers after (or during) a full sync.
// Message is set only for SyncPhaseError; PendingConflicts only for
// SyncPhaseConflictsPending.
type SyncState struct {
	Phase            SyncPhase `json:"phase"`
	Message          string    `json:"message,omitempty"`
	PendingConflicts int       `json:"pending_conflicts,omitempty"`
}

func (s SyncState) String() string {
	switch s.Phase {
	case SyncPhaseError:
		return fmt.Sprintf("error(%s)", s.Message)
	case SyncPhaseConflictsPending:
		return fmt.Sprintf("conflicts_pending(%d)", s.PendingConflicts)
	default:
		return string(s.Phase)
	}
}

// SyncStats counts what happened during one full sync. Collected for
// observability only; control flow never depends on it.
type SyncStats struct {
	Created           int           `json:"created"`
	Updated           int           `json:"updated"`
	ConflictsDetected int           `json:"conflicts_detected"`
	ConflictsResolved int           `json:"conflicts_resolved"`
	Errors            int           `json:"errors"`
	Duration          time.Duration `json:"duration"`
}
