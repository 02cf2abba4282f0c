// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaar Labs

// Package adapter provides transport-layer abstractions for communicating
// with the marketplace backend.
//
// The primary abstraction is [RemoteBackend], which decouples the sync engine
// from the backend's wire format. The package ships an HTTP/REST
// implementation ([NewHTTPBackend]) plus a polling [Reachability] observer.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrVersionConflict] for 409, [ErrUnauthorized] for
// 401).
package adapter

import (
	"context"
	"time"

	"github.com/bazaarlabs/go-market-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/backend_mock.go -package=mock

// RemoteBackend defines transport-agnostic communication with the
// marketplace API. Implementations are responsible for serialisation and for
// mapping transport-level errors to the sentinel values defined in this
// package.
type RemoteBackend interface {
	// FetchBatch retrieves up to limit entities of the given type, ordered
	// newest-first by server update time. A non-zero updatedSince narrows
	// the batch to entities changed after that instant. Returned entities
	// carry the server-assigned Version and UpdatedAt; the local-only dirty
	// flags are always false.
	FetchBatch(ctx context.Context, entityType string, updatedSince time.Time, limit int) ([]models.Entity, error)

	// Push sends a locally modified entity to the backend. Returns
	// [ErrVersionConflict] (wrapped) if the server detects that another
	// device updated the entity first.
	Push(ctx context.Context, entity models.Entity) (models.Ack, error)

	// Insert creates an entity that does not exist on the backend yet.
	Insert(ctx context.Context, entity models.Entity) (models.Ack, error)

	// Delete removes an entity on the backend. version is the last version
	// observed locally; [ErrVersionConflict] is returned on a mismatch.
	Delete(ctx context.Context, entityType, id string, version int64) error
}

// Reachability observes backend connectivity. The sync orchestrator
// subscribes and triggers a full sync on every offline→online transition.
type Reachability interface {
	// Online reports the last observed connectivity state.
	Online() bool

	// Subscribe returns a channel that receives the new state on every
	// transition. The channel is closed when the observer stops.
	Subscribe() <-chan bool
}
